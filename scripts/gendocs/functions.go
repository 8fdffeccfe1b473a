package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapformula/pkg/registry"
)

var categoryDescriptions = map[registry.Category]string{
	registry.CategoryNumeric: "Arithmetic, rounding and aggregation over numbers.",
	registry.CategoryText:    "String building, searching and formatting.",
	registry.CategoryLogical: "Conditionals and boolean logic. Branches that are not taken are never evaluated.",
	registry.CategoryDate:    "Date construction, arithmetic and formatting.",
	registry.CategoryArray:   "Operations on multi-select and other list values.",
}

// generateFunctionDocs writes the function reference from the default
// registry.
func generateFunctionDocs(outDir string) error {
	log.Printf("Generating function docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	reg := registry.Default()
	w := NewMarkdownWriter()
	w.Frontmatter("Functions", "Built-in formula functions")
	w.GeneratedMarker()

	w.Header(1, "Functions")
	w.Paragraph(fmt.Sprintf("Formulas can call %d built-in functions. Names are case-insensitive.", reg.Len()))

	titleCaser := cases.Title(language.English)
	var index []string
	for _, cat := range registry.Categories {
		index = append(index, fmt.Sprintf("[%s](#%s)", titleCaser.String(string(cat)), cat))
	}
	w.BulletList(index)

	for _, cat := range registry.Categories {
		fns := reg.ByCategory(cat)
		if len(fns) == 0 {
			continue
		}
		w.Line(fmt.Sprintf("## %s {#%s}", titleCaser.String(string(cat)), cat))
		w.Newline()
		if desc := categoryDescriptions[cat]; desc != "" {
			w.Paragraph(desc)
		}

		rows := make([][]string, 0, len(fns))
		for _, fn := range fns {
			name := InlineCode(fn.Signature())
			if len(fn.Aliases) > 0 {
				name += " (also " + InlineCode(fn.Aliases[0]) + ")"
			}
			rows = append(rows, []string{name, fn.Arity(), cleanDescription(fn.Description)})
		}
		w.Table([]string{"Function", "Arguments", "Description"}, rows)
	}

	return os.WriteFile(filepath.Join(outDir, "functions.md"), w.Bytes(), 0600)
}
