package registry

// suggestThreshold is the minimum similarity for a "did you mean" hint.
const suggestThreshold = 0.6

// Suggest returns the registered name closest to name, or "" when nothing
// is similar enough.
func (r *Registry) Suggest(name string) string {
	target := fold(name)
	best := ""
	bestScore := 0.0
	for _, candidate := range r.names {
		score := similarity(target, fold(candidate))
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	if bestScore >= suggestThreshold {
		return best
	}
	return ""
}

// similarity returns a normalized score between 0.0 and 1.0.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(editDistance(ra, rb))/float64(maxLen)
}

// editDistance computes the Damerau-Levenshtein (optimal string alignment)
// distance: insertions, deletions, substitutions and adjacent
// transpositions each cost one.
func editDistance(a, b []rune) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prevprev := make([]int, lb+1)
	prev := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr := make([]int, lb+1)
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			best := min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				best = min(best, prevprev[j-2]+1)
			}
			curr[j] = best
		}
		prevprev, prev = prev, curr
	}

	return prev[lb]
}
