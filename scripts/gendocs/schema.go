package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapformula/internal/config"
	"github.com/leapstack-labs/leapformula/pkg/core"
)

// ConfigField represents a configuration field definition.
type ConfigField struct {
	Name        string
	Type        string
	Default     string
	Description string
}

// getConfigSchema describes the keys of leapformula.yaml.
func getConfigSchema() []ConfigField {
	d := config.Default()
	return []ConfigField{
		{Name: "workbook", Type: "string", Description: "Workbook used when a command gets no path argument"},
		{Name: "state_path", Type: "string", Default: d.StatePath, Description: "SQLite database for saved programs and values"},
		{Name: "timezone", Type: "string", Default: d.Timezone, Description: "IANA zone for dates written without an offset"},
		{Name: "max_depth", Type: "int", Default: fmt.Sprint(d.MaxDepth), Description: "Evaluation recursion limit"},
		{Name: "workers", Type: "int", Default: fmt.Sprint(d.Workers), Description: "Rows recomputed in parallel"},
		{Name: "output", Type: "string", Default: d.OutputFormat, Description: "Output format: auto, text, markdown, json"},
		{Name: "log_level", Type: "string", Default: d.LogLevel, Description: "Log level: debug, info, warn, error"},
		{Name: "log_format", Type: "string", Default: d.LogFormat, Description: "Log format: text, json"},
		{Name: "verbose", Type: "bool", Default: "false", Description: "Debug logging"},
		{Name: "disabled_functions", Type: "[]string", Description: "Functions formulas may not call"},
		{Name: "watch.debounce", Type: "duration", Default: d.Watch.Debounce.String(), Description: "Quiet period before watch recomputes"},
	}
}

// generateSchemaDocs writes the configuration and workbook references.
func generateSchemaDocs(outDir string) error {
	log.Printf("Generating schema docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := generateConfigurationDoc(outDir); err != nil {
		return fmt.Errorf("failed to generate configuration.md: %w", err)
	}
	log.Printf("  Generated configuration.md")

	if err := generateWorkbookDoc(outDir); err != nil {
		return fmt.Errorf("failed to generate workbook.md: %w", err)
	}
	log.Printf("  Generated workbook.md")

	return nil
}

func generateConfigurationDoc(outDir string) error {
	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "leapformula configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("leapformula reads %s from the working directory or the nearest parent directory. Paths in it are relative to the file.", InlineCode(config.ConfigFileName)))

	var rows [][]string
	for _, f := range getConfigSchema() {
		def := "-"
		if f.Default != "" {
			def = InlineCode(f.Default)
		}
		rows = append(rows, []string{InlineCode(f.Name), f.Type, def, f.Description})
	}
	w.Table([]string{"Field", "Type", "Default", "Description"}, rows)

	w.Header(2, "Full Configuration Example")
	w.CodeBlock("yaml", `# leapformula.yaml
workbook: invoices.yaml
state_path: .leapformula/state.db
timezone: Europe/Berlin
max_depth: 128
workers: 8
output: auto
log_level: warn
disabled_functions:
  - NOW
  - TODAY
watch:
  debounce: 500ms`)

	w.Header(2, "Precedence")
	w.BulletList([]string{
		"Command-line flags",
		fmt.Sprintf("Environment variables (%s, nested keys joined with %s)", InlineCode(config.EnvPrefix+"*"), InlineCode("__")),
		InlineCode(config.ConfigFileName),
		"Built-in defaults",
	})

	return os.WriteFile(filepath.Join(outDir, "configuration.md"), w.Bytes(), 0600)
}

var fieldTypeDescriptions = map[core.FieldType]string{
	core.FieldText:        "Single line of text",
	core.FieldLongText:    "Multi-line text",
	core.FieldNumber:      "Number",
	core.FieldCurrency:    "Number shown as money",
	core.FieldPercent:     "Number where 1 is 100%",
	core.FieldRating:      "Whole number rating",
	core.FieldDate:        "Date, optionally with a time",
	core.FieldCreatedTime: "Creation timestamp",
	core.FieldBoolean:     "true or false",
	core.FieldCheckbox:    "true or false",
	core.FieldSelect:      "One option",
	core.FieldMultiSelect: "List of options",
	core.FieldFormula:     "Computed from its formula",
}

var fieldTypeOrder = []core.FieldType{
	core.FieldText, core.FieldLongText, core.FieldNumber, core.FieldCurrency,
	core.FieldPercent, core.FieldRating, core.FieldDate, core.FieldCreatedTime,
	core.FieldBoolean, core.FieldCheckbox, core.FieldSelect, core.FieldMultiSelect,
	core.FieldFormula,
}

func generateWorkbookDoc(outDir string) error {
	w := NewMarkdownWriter()
	w.Frontmatter("Workbooks", "Workbook file format")
	w.GeneratedMarker()

	w.Header(1, "Workbooks")
	w.Paragraph("A workbook is a YAML file with a list of fields and a list of rows. Formula fields reference other fields as " + InlineCode("{fldId}") + ".")

	var rows [][]string
	for _, ft := range fieldTypeOrder {
		rows = append(rows, []string{InlineCode(string(ft)), ft.ValueType().String(), fieldTypeDescriptions[ft]})
	}
	w.Header(2, "Field Types")
	w.Table([]string{"Type", "Value type", "Description"}, rows)

	w.Header(2, "Example")
	w.CodeBlock("yaml", `name: orders
fields:
  - id: fldPrice
    name: Price
    type: currency
  - id: fldQty
    type: number
  - id: fldTotal
    type: formula
    formula: "{fldPrice} * {fldQty}"
rows:
  - id: rec1
    values:
      fldPrice: 12.5
      fldQty: 2`)

	return os.WriteFile(filepath.Join(outDir, "workbook.md"), w.Bytes(), 0600)
}
