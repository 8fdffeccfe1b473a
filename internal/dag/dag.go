// Package dag provides the field dependency graph used to order
// recomputation. Nodes are field ids; an edge runs from a dependency to the
// field whose formula reads it.
//
// A Graph is not safe for concurrent use. The engine owns one graph, clones
// it before every change and swaps the clone in only when it is acyclic.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

// Node is a field in the graph.
type Node struct {
	// ID is the field id.
	ID string
	// Formula marks computed fields. Other nodes are plain input fields
	// that exist because some formula references them.
	Formula bool
}

// Graph is a directed graph of field dependencies.
type Graph struct {
	nodes   map[string]*Node
	edges   map[string][]string // dependency -> dependents
	parents map[string][]string // dependent -> dependencies
}

// CycleError is returned by operations that require an acyclic graph.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node or updates its Formula flag.
func (g *Graph) AddNode(id string, formula bool) {
	if n, exists := g.nodes[id]; exists {
		n.Formula = formula
		return
	}
	g.nodes[id] = &Node{ID: id, Formula: formula}
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// SetParents replaces the dependencies of id. Missing nodes are created as
// input fields; id itself is created as a formula field.
func (g *Graph) SetParents(id string, parents []string) error {
	if slices.Contains(parents, id) {
		return fmt.Errorf("self-loop detected: %s", id)
	}
	if n, exists := g.nodes[id]; !exists || !n.Formula {
		g.AddNode(id, true)
	}
	for _, old := range g.parents[id] {
		g.edges[old] = slices.DeleteFunc(g.edges[old], func(c string) bool { return c == id })
	}
	g.parents[id] = []string{}
	for _, p := range parents {
		if _, exists := g.nodes[p]; !exists {
			g.AddNode(p, false)
		}
		if err := g.AddEdge(p, id); err != nil {
			return err
		}
	}
	return nil
}

// RemoveNode deletes id and every edge touching it.
func (g *Graph) RemoveNode(id string) {
	if _, exists := g.nodes[id]; !exists {
		return
	}
	for _, p := range g.parents[id] {
		g.edges[p] = slices.DeleteFunc(g.edges[p], func(c string) bool { return c == id })
	}
	for _, c := range g.edges[id] {
		g.parents[c] = slices.DeleteFunc(g.parents[c], func(p string) bool { return p == id })
	}
	delete(g.nodes, id)
	delete(g.edges, id)
	delete(g.parents, id)
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes:   make(map[string]*Node, len(g.nodes)),
		edges:   make(map[string][]string, len(g.edges)),
		parents: make(map[string][]string, len(g.parents)),
	}
	for id, n := range g.nodes {
		cp := *n
		c.nodes[id] = &cp
		c.edges[id] = slices.Clone(g.edges[id])
		c.parents[id] = slices.Clone(g.parents[id])
	}
	return c
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (Node, bool) {
	n, exists := g.nodes[id]
	if !exists {
		return Node{}, false
	}
	return *n, true
}

// Has reports whether id is in the graph.
func (g *Graph) Has(id string) bool {
	_, exists := g.nodes[id]
	return exists
}

// Parents returns the direct dependencies of id, sorted.
func (g *Graph) Parents(id string) []string {
	return sorted(g.parents[id])
}

// Children returns the direct dependents of id, sorted.
func (g *Graph) Children(id string) []string {
	return sorted(g.edges[id])
}

// Nodes returns all node ids, sorted.
func (g *Graph) Nodes() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// FormulaNodes returns the ids of formula fields, sorted.
func (g *Graph) FormulaNodes() []string {
	var ids []string
	for id, n := range g.nodes {
		if n.Formula {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// FindCycle returns a cycle as a path of ids that starts and ends with the
// same id, following edges from dependency to dependent. It returns nil
// when the graph is acyclic. Nodes and edges are visited in sorted order
// so the reported cycle is deterministic.
func (g *Graph) FindCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = grey
		stack = append(stack, id)
		for _, child := range g.Children(id) {
			switch color[child] {
			case grey:
				start := slices.Index(stack, child)
				cycle := slices.Clone(stack[start:])
				return append(cycle, child)
			case white:
				if cycle := visit(child); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, id := range g.Nodes() {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// CycleThrough returns a dependency path from id back to id, following
// edges from dependent to dependency, or nil when id is on no cycle. For
// A reading B and B reading A it returns [A B A].
func (g *Graph) CycleThrough(id string) []string {
	visited := make(map[string]bool)
	var path []string

	var walk func(cur string) bool
	walk = func(cur string) bool {
		path = append(path, cur)
		for _, dep := range g.Parents(cur) {
			if dep == id {
				path = append(path, id)
				return true
			}
			if !visited[dep] {
				visited[dep] = true
				if walk(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if !g.Has(id) || !walk(id) {
		return nil
	}
	return path
}

// TopoSort returns all node ids with dependencies before dependents, using
// Kahn's algorithm. Among nodes that are ready at the same time the
// lexically smallest comes first.
func (g *Graph) TopoSort() ([]string, error) {
	_, order, err := g.kahn()
	return order, err
}

// Levels groups nodes by depth: level 0 holds nodes with no dependencies and
// every other node sits one level below its deepest dependency. Nodes in a
// level do not depend on each other.
func (g *Graph) Levels() ([][]string, error) {
	levels, _, err := g.kahn()
	return levels, err
}

func (g *Graph) kahn() ([][]string, []string, error) {
	indegree := make(map[string]int, len(g.nodes))
	level := make(map[string]int, len(g.nodes))
	var ready []string
	for id := range g.nodes {
		indegree[id] = len(g.parents[id])
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(g.nodes))
	var levels [][]string
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		lv := level[id]
		for len(levels) <= lv {
			levels = append(levels, nil)
		}
		levels[lv] = append(levels[lv], id)

		for _, child := range g.edges[id] {
			level[child] = max(level[child], lv+1)
			indegree[child]--
			if indegree[child] == 0 {
				pos, _ := slices.BinarySearch(ready, child)
				ready = slices.Insert(ready, pos, child)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, nil, &CycleError{Path: g.FindCycle()}
	}
	for i := range levels {
		slices.Sort(levels[i])
	}
	return levels, order, nil
}

// Affected returns the given nodes plus everything downstream of them,
// sorted. Unknown ids are ignored.
func (g *Graph) Affected(changed ...string) []string {
	affected := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		if affected[id] {
			return
		}
		affected[id] = true
		for _, child := range g.edges[id] {
			mark(child)
		}
	}

	for _, id := range changed {
		if g.Has(id) {
			mark(id)
		}
	}
	return keys(affected)
}

// Upstream returns every transitive dependency of id, sorted.
func (g *Graph) Upstream(id string) []string {
	upstream := make(map[string]bool)

	var mark func(nodeID string)
	mark = func(nodeID string) {
		for _, parentID := range g.parents[nodeID] {
			if !upstream[parentID] {
				upstream[parentID] = true
				mark(parentID)
			}
		}
	}

	mark(id)
	return keys(upstream)
}

// Subgraph returns a new graph containing only the given nodes and the
// edges between them.
func (g *Graph) Subgraph(nodeIDs []string) *Graph {
	sub := NewGraph()
	include := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		if n, exists := g.nodes[id]; exists {
			include[id] = true
			sub.AddNode(id, n.Formula)
		}
	}
	for id := range include {
		for _, child := range g.edges[id] {
			if include[child] {
				_ = sub.AddEdge(id, child)
			}
		}
	}
	return sub
}

func sorted(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
