package commands

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapformula/internal/config"
)

//go:embed all:templates
var templateFS embed.FS

// Project templates shipped with init.
const (
	templateMinimal = "minimal"
	templateExample = "example"
)

// fileKind groups template files in the init report.
type fileKind string

const (
	kindConfig   fileKind = "config"
	kindWorkbook fileKind = "workbook"
)

// Install outcomes per file.
const (
	fileCreated     = "created"
	fileOverwritten = "overwritten"
	fileKept        = "kept"
)

// templateFile is one file of a project template.
type templateFile struct {
	src  string // path inside the template
	Path string // path relative to the project directory
	Kind fileKind
}

// installedFile reports what Install did with a template file.
type installedFile struct {
	templateFile
	Status string
}

// projectTemplate is an embedded project skeleton.
type projectTemplate struct {
	name  string
	fsys  fs.FS
	files []templateFile
}

// loadTemplate opens the embedded template called name.
func loadTemplate(name string) (*projectTemplate, error) {
	sub, err := fs.Sub(templateFS, path.Join("templates", name))
	if err != nil {
		return nil, err
	}
	t := &projectTemplate{name: name, fsys: sub}

	err = fs.WalkDir(sub, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		installed := installedName(p)
		t.files = append(t.files, templateFile{src: p, Path: installed, Kind: kindOf(installed)})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(t.files) == 0) {
		return nil, fmt.Errorf("unknown project template %q", name)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// installedName maps an embedded file name to the name written to disk.
// Dotfiles are stored without the dot so go:embed keeps them visible.
func installedName(p string) string {
	dir, base := path.Split(p)
	if base == "gitignore" {
		base = ".gitignore"
	}
	return path.Join(dir, base)
}

func kindOf(p string) fileKind {
	switch ext := path.Ext(p); {
	case p == config.ConfigFileName, strings.HasPrefix(path.Base(p), "."):
		return kindConfig
	case ext == ".yaml" || ext == ".yml":
		return kindWorkbook
	default:
		return kindConfig
	}
}

// Files returns the template's files, config first, each group sorted.
func (t *projectTemplate) Files() []templateFile {
	files := slices.Clone(t.files)
	slices.SortFunc(files, func(a, b templateFile) int {
		if a.Kind != b.Kind {
			return strings.Compare(string(a.Kind), string(b.Kind))
		}
		return strings.Compare(a.Path, b.Path)
	})
	return files
}

// Install writes the template into dir. Existing files are kept unless
// force is set.
func (t *projectTemplate) Install(dir string, force bool) ([]installedFile, error) {
	var out []installedFile
	for _, f := range t.Files() {
		target := filepath.Join(dir, filepath.FromSlash(f.Path))

		status := fileCreated
		if _, err := os.Stat(target); err == nil {
			if !force {
				out = append(out, installedFile{templateFile: f, Status: fileKept})
				continue
			}
			status = fileOverwritten
		}

		data, err := fs.ReadFile(t.fsys, f.src)
		if err != nil {
			return out, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return out, err
		}
		if err := os.WriteFile(target, data, 0o600); err != nil {
			return out, fmt.Errorf("write %s: %w", f.Path, err)
		}
		out = append(out, installedFile{templateFile: f, Status: status})
	}
	return out, nil
}
