package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapformula/internal/cli/output"
	"github.com/leapstack-labs/leapformula/internal/engine"
	"github.com/leapstack-labs/leapformula/internal/loader"
	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/formula"
)

const replPrompt = "formula> "

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl [workbook]",
		Short: "Evaluate formulas interactively",
		Long: `Start an interactive session that evaluates one formula per line.

With a workbook, field references resolve against its fields and .row
selects the record formulas are evaluated against.`,
		Example: `  # Start a session on the configured workbook
  leapformula repl

  # Start without a workbook
  leapformula repl --workbook ''`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, args)
		},
	}
	return cmd
}

func runREPL(cmd *cobra.Command, args []string) error {
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()

	s := &replSession{ctx: ctx, r: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ModeText)}
	historyFile := ""
	if path, err := cc.workbookPath(args); err == nil {
		proj, err := cc.LoadProject(ctx, path)
		if err != nil {
			return err
		}
		s.eng, s.wb = proj.Engine, proj.Workbook
		historyFile = filepath.Join(filepath.Dir(cc.Cfg.StatePath), "repl_history")
	} else {
		eng, err := cc.newEngine(core.MapSchema{})
		if err != nil {
			return err
		}
		s.eng = eng
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	if s.wb != nil {
		s.r.Printf("leapformula REPL (workbook: %s)\n", s.wb.Path)
	} else {
		s.r.Println("leapformula REPL (no workbook)")
	}
	s.r.Println("Type .help for commands, .quit to exit")
	s.r.Println()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if quit := s.handle(line); quit {
			return nil
		}
	}
}

// replSession holds the state of one REPL session.
type replSession struct {
	ctx   context.Context
	r     *output.Renderer
	eng   *engine.Engine
	wb    *loader.Workbook
	rowID string
	row   formula.Row
}

// handle processes one input line and reports whether the session ends.
func (s *replSession) handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, ".") {
		return s.command(line)
	}
	s.eval(line)
	return false
}

func (s *replSession) eval(source string) {
	styles := s.r.Styles()
	prog, err := s.eng.Compile(source)
	if err != nil {
		s.r.Error(err.Error())
		return
	}
	row := s.row
	if row == nil {
		row = formula.Row{}
	}
	v := s.eng.Evaluate(prog, row)
	if v.IsError() {
		s.r.Println(styles.Error.Render(describeValue(v)))
		return
	}
	s.r.Printf("%s %s\n", output.FormatValue(v), styles.Muted.Render("("+prog.ResultType().String()+")"))
}

func (s *replSession) command(line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		s.r.Println(replHelp)

	case ".fields":
		if s.wb == nil {
			s.r.Error("no workbook loaded")
			return false
		}
		rows := make([][]string, 0, len(s.wb.Fields))
		for _, f := range s.wb.Fields {
			rows = append(rows, []string{f.ID, f.Name, string(f.Type), f.Formula})
		}
		s.r.Table([]string{"id", "name", "type", "formula"}, rows)

	case ".functions":
		names := make([]string, 0)
		for _, fn := range s.eng.Registry().Functions() {
			names = append(names, fn.Name)
		}
		s.r.Println(strings.Join(names, " "))

	case ".row":
		s.selectRow(parts[1:])

	default:
		s.r.Error(fmt.Sprintf("unknown command: %s (type .help for commands)", parts[0]))
	}
	return false
}

func (s *replSession) selectRow(args []string) {
	if len(args) == 0 {
		if s.rowID == "" {
			s.r.Println("no row selected")
		} else {
			s.r.Printf("row %s\n", s.rowID)
		}
		return
	}
	if s.wb == nil {
		s.r.Error("no workbook loaded")
		return
	}
	if args[0] == "-" {
		s.rowID, s.row = "", nil
		s.r.Println("row cleared")
		return
	}
	wr, ok := s.wb.Row(args[0])
	if !ok {
		s.r.Error(fmt.Sprintf("row %q not found", args[0]))
		return
	}
	row, err := s.eng.Recompute(s.ctx, wr.Values)
	if err != nil {
		s.r.Error(err.Error())
		return
	}
	s.rowID, s.row = wr.ID, row
	s.r.Printf("row %s\n", wr.ID)
}

// completer completes dot-commands, function names and field references.
func (s *replSession) completer() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".fields"),
		readline.PcItem(".functions"),
		readline.PcItem(".quit"),
	}
	if s.wb != nil {
		rowItems := make([]readline.PrefixCompleterInterface, 0, len(s.wb.Rows))
		for _, row := range s.wb.Rows {
			rowItems = append(rowItems, readline.PcItem(row.ID))
		}
		items = append(items, readline.PcItem(".row", rowItems...))
		for _, f := range s.wb.Fields {
			items = append(items, readline.PcItem("{"+f.ID+"}"))
		}
	}
	for _, name := range s.eng.Registry().Names() {
		items = append(items, readline.PcItem(name+"("))
	}
	return readline.NewPrefixCompleter(items...)
}

const replHelp = `
Commands:
  .help           Show this help message
  .fields         List the workbook's fields
  .functions      List function names
  .row <id>       Evaluate against a row (.row - clears it)
  .quit / .exit   Exit the REPL

Tips:
  - Each line is one formula, e.g. ROUND({fldPrice} * 1.2, 2)
  - Use arrow keys to navigate history
  - Tab completes functions and {field} references
`
