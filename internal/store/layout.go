// Package store owns the on-disk data directory: rendered profiles, downloaded
// rule-provider files and templates.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Layout is rooted at the data directory:
//
//	<root>/profile/<name>.yaml
//	<root>/provider/<name>.yml
//	<root>/template/<name>.yaml
type Layout struct {
	Root string
}

func (l Layout) ProfileDir() string  { return filepath.Join(l.Root, "profile") }
func (l Layout) ProviderDir() string { return filepath.Join(l.Root, "provider") }
func (l Layout) TemplateDir() string { return filepath.Join(l.Root, "template") }

func (l Layout) ProfilePath(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return filepath.Join(l.ProfileDir(), name+".yaml"), nil
}

func (l Layout) ProviderPath(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return filepath.Join(l.ProviderDir(), name+".yml"), nil
}

// Init creates every directory of the layout.
func (l Layout) Init() error {
	for _, dir := range []string{l.ProfileDir(), l.ProviderDir(), l.TemplateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// WriteProfile atomically replaces the named profile.
func (l Layout) WriteProfile(name string, body []byte) error {
	p, err := l.ProfilePath(name)
	if err != nil {
		return err
	}
	return WriteFile(p, body)
}

// WriteProvider atomically replaces the named rule-provider file.
func (l Layout) WriteProvider(name string, body []byte) error {
	p, err := l.ProviderPath(name)
	if err != nil {
		return err
	}
	return WriteFile(p, body)
}

// WriteFile writes through a temp file in the same directory and renames it over
// path, so readers never see a partial file.
func WriteFile(path string, body []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}
