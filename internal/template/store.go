// Package template loads profile templates by name from a directory.
package template

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Well2333/clashprofile/internal/model"
	"github.com/Well2333/clashprofile/internal/profile"
)

//go:embed defaults/*.yaml
var defaults embed.FS

// Store reads <Dir>/<name>.yaml (".yml" is accepted too).
type Store struct {
	Dir string
}

func (s Store) path(name string) (string, bool) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", false
	}
	for _, ext := range []string{".yaml", ".yml"} {
		p := filepath.Join(s.Dir, name+ext)
		if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

func (s Store) Exists(name string) bool {
	_, ok := s.path(name)
	return ok
}

// Load reads, decodes and validates a template.
func (s Store) Load(name string) (*profile.Template, error) {
	p, ok := s.path(name)
	if !ok {
		return nil, newTemplateError("TEMPLATE_NOT_FOUND", name, filepath.Join(s.Dir, name+".yaml"),
			"模板不存在："+name, "模板目录 "+s.Dir+" 下需要 "+name+".yaml 或 "+name+".yml", nil)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, newTemplateError("TEMPLATE_READ_ERROR", name, p, "读取模板失败", "检查文件权限", err)
	}
	tpl, err := profile.Decode(p, b)
	if err != nil {
		return nil, err
	}
	if err := tpl.Validate(); err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			ve.AppError.URL = p
		}
		return nil, err
	}
	return tpl, nil
}

// Seed copies the bundled templates into Dir when it holds no template yet. It
// returns the names written.
func (s Store) Seed() ([]string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() && (strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
			return nil, nil
		}
	}

	var written []string
	err = fs.WalkDir(defaults, "defaults", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := defaults.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(s.Dir, d.Name()), b, 0o644); err != nil {
			return err
		}
		written = append(written, strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())))
		return nil
	})
	return written, err
}
