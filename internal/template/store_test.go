package template

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Well2333/clashprofile/internal/model"
)

func TestSeed_ThenLoadDefault(t *testing.T) {
	s := Store{Dir: filepath.Join(t.TempDir(), "template")}
	written, err := s.Seed()
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, written)
	assert.True(t, s.Exists("default"))

	tpl, err := s.Load("default")
	require.NoError(t, err)
	assert.True(t, tpl.Proxies.Sentinel)
	assert.Equal(t, []string{"reject", "proxy", "direct", "cncidr"}, tpl.RuleProviders.Keys)

	again, err := s.Seed()
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestSeed_SkipsPopulatedDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mine.yml"), []byte("port: 1\n"), 0o644))
	written, err := Store{Dir: dir}.Seed()
	require.NoError(t, err)
	assert.Empty(t, written)
	_, err = os.Stat(filepath.Join(dir, "default.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.yaml"), 0o755))
	s := Store{Dir: dir}
	assert.True(t, s.Exists("a"))
	assert.False(t, s.Exists("b"))
	assert.False(t, s.Exists("d"))
	assert.False(t, s.Exists("../a"))
	assert.False(t, s.Exists(""))
}

func TestTemplateError_WrapsCause(t *testing.T) {
	cause := os.ErrPermission
	te := newTemplateError("TEMPLATE_READ_ERROR", "home", "/srv/template/home.yaml", "读取模板失败", "", cause)
	assert.ErrorIs(t, te, os.ErrPermission)
	assert.Equal(t, `template "home": TEMPLATE_READ_ERROR: 读取模板失败: permission denied`, te.Error())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	s := Store{Dir: dir}

	_, err := s.Load("missing")
	var te *TemplateError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "TEMPLATE_NOT_FOUND", te.AppError.Code)
	assert.Equal(t, "missing", te.Name)
	assert.Equal(t, "load_template", te.AppError.Stage)
	assert.Equal(t, filepath.Join(dir, "missing.yaml"), te.AppError.URL)
	assert.Contains(t, te.AppError.Hint, "missing.yml")
	assert.Equal(t, `template "missing": TEMPLATE_NOT_FOUND: 模板不存在：missing`, te.Error())

	doc := []byte(`port: 7890
socks-port: 7891
mode: rule
log-level: info
external-controller: :9090
proxies: __proxies_list__
proxy-groups:
  - name: Proxy
    type: select
    proxies: __proxies_name_list__
rules:
  - DOMAIN,example.com,Nowhere
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), doc, 0o644))
	_, err = s.Load("bad")
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, filepath.Join(dir, "bad.yaml"), ve.AppError.URL)
	fields := ve.Fields()
	assert.Contains(t, fields, "rules.0")
	assert.Contains(t, fields, "rules")
}
