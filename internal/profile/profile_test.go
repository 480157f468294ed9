package profile

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Well2333/clashprofile/internal/model"
)

const validTemplate = `port: 7890
socks-port: 7891
allow-lan: true
mode: Rule
log-level: info
external-controller: 127.0.0.1:9090
dns:
  enable: true
proxies: __proxies_list__
proxy-groups:
  - name: Proxy
    type: select
    proxies: __proxies_name_list__
  - name: Auto
    type: url-test
    url: http://www.gstatic.com/generate_204
    interval: 300
    proxies: [Proxy]
rule-providers:
  zeta:
    type: http
    behavior: domain
    url: https://example.com/zeta.txt
  alpha:
    type: file
    behavior: ipcidr
    path: ./alpha.yaml
rules:
  - RULE-SET,zeta,Proxy
  - RULE-SET,alpha,DIRECT,no-resolve
  - MATCH,Auto
`

func TestDecode_Template(t *testing.T) {
	tpl, err := Decode("t.yaml", []byte(validTemplate))
	require.NoError(t, err)
	assert.Equal(t, "rule", tpl.Mode)
	assert.True(t, tpl.AllowLAN)
	assert.True(t, tpl.Proxies.Sentinel)
	require.Len(t, tpl.ProxyGroups, 2)
	assert.True(t, tpl.ProxyGroups[0].Members.All)
	assert.Equal(t, []string{"Proxy"}, tpl.ProxyGroups[1].Members.Names)
	assert.Equal(t, []string{"zeta", "alpha"}, tpl.RuleProviders.Keys)
	assert.Contains(t, tpl.Extra, "dns")
	require.NoError(t, tpl.Validate())
}

func TestDecode_ExplicitProxies(t *testing.T) {
	doc := strings.Replace(validTemplate, "proxies: __proxies_list__", `proxies:
  - {name: a, type: ss, server: 1.2.3.4, port: 443, cipher: aes-128-gcm, password: x}`, 1)
	tpl, err := Decode("t.yaml", []byte(doc))
	require.NoError(t, err)
	assert.False(t, tpl.Proxies.Sentinel)
	require.Len(t, tpl.Proxies.List, 1)
	assert.Equal(t, "a", tpl.Proxies.List[0].Base().Name)
}

func TestDecode_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"multi":        "port: 1\n---\nport: 2\n",
		"bad sentinel": strings.Replace(validTemplate, "proxies: __proxies_list__", "proxies: everything", 1),
		"not yaml":     "port: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode("t.yaml", []byte(doc))
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "err=%v", err)
			assert.Equal(t, "TEMPLATE_PARSE_ERROR", pe.AppError.Code)
			assert.Equal(t, "parse_template", pe.AppError.Stage)
		})
	}
}

func TestTemplateValidate_CollectsAll(t *testing.T) {
	doc := strings.NewReplacer(
		"port: 7890", "port: 0",
		"mode: Rule", "mode: fast",
		"MATCH,Auto", "MATCH,Nowhere",
	).Replace(validTemplate)
	tpl, err := Decode("t.yaml", []byte(doc))
	require.NoError(t, err)

	err = tpl.Validate()
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "validate_template", ve.AppError.Stage)
	fields := ve.Fields()
	assert.Contains(t, fields, "port")
	assert.Contains(t, fields, "mode")
	assert.Contains(t, fields, "rules.2")
	assert.NotContains(t, fields, "socks-port")
}

func TestProfileValidate_RejectsLeftoverSentinel(t *testing.T) {
	p, err := DecodeProfile("p.yaml", []byte(strings.Replace(validTemplate, "proxies: __proxies_list__", "proxies: []", 1)))
	require.NoError(t, err)

	err = p.Validate()
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "validate_profile", ve.AppError.Stage)
	assert.Contains(t, ve.Fields(), "proxy-groups.0.proxies")
}

func TestProfileMarshal(t *testing.T) {
	p := &Profile{
		Header: Header{Port: 7890, SocksPort: 7891, Mode: "rule", LogLevel: "info", ExternalController: "127.0.0.1:9090"},
		Proxies: model.ProxyList{&model.ShadowSocks{
			ProxyBase: model.ProxyBase{Name: "a", Type: model.TypeShadowSocks, Server: "1.2.3.4", Port: 443},
			Cipher:    "aes-128-gcm",
			Password:  "x",
		}},
		ProxyGroups: []model.ProxyGroup{{Name: "Proxy", Type: "select", Members: model.GroupMembers{Names: []string{"a"}}}},
		Rules:       []string{"MATCH,Proxy"},
	}
	require.NoError(t, p.Validate())

	b, err := p.Marshal()
	require.NoError(t, err)
	out := string(b)

	order := []string{"port:", "socks-port:", "allow-lan:", "mode:", "log-level:", "external-controller:", "proxies:", "proxy-groups:", "rules:"}
	last := -1
	for _, key := range order {
		i := strings.Index(out, "\n"+key)
		if key == "port:" {
			i = strings.Index(out, key)
		}
		require.GreaterOrEqual(t, i, 0, "missing %s in\n%s", key, out)
		assert.Greater(t, i, last, "%s out of order", key)
		last = i
	}
	assert.NotContains(t, out, "rule-providers")
	assert.Contains(t, out, "  - name: a\n")

	back, err := DecodeProfile("p.yaml", b)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, model.ProxyNames(back.Proxies))
	require.NoError(t, back.Validate())
}

func TestProfileMarshal_EmptyProxies(t *testing.T) {
	p := &Profile{
		Header:      Header{Port: 7890, SocksPort: 7891, Mode: "rule", LogLevel: "info", ExternalController: ":9090"},
		Proxies:     model.ProxyList{},
		ProxyGroups: []model.ProxyGroup{{Name: "Proxy", Type: "select", Members: model.GroupMembers{Names: []string{}}}},
		Rules:       []string{"MATCH,DIRECT"},
	}
	require.NoError(t, p.Validate())
	b, err := p.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(b), "proxies: []")
}

func TestProviderNames(t *testing.T) {
	p, err := DecodeProfile("p.yaml", []byte(strings.Replace(validTemplate, "proxies: __proxies_list__", "proxies: []", 1)))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha"}, p.ProviderNames())
}
