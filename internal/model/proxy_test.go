package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestProxyFromMap_DispatchesOnType(t *testing.T) {
	cases := []struct {
		in   map[string]any
		want any
	}{
		{map[string]any{"name": "a", "type": "ss", "server": "s", "port": 1, "cipher": "aes-128-gcm", "password": "p"}, &ShadowSocks{}},
		{map[string]any{"name": "a", "type": "SSR", "server": "s", "port": 1}, &ShadowSocksR{}},
		{map[string]any{"name": "a", "type": "vmess", "server": "s", "port": 1}, &VMess{}},
		{map[string]any{"name": "a", "type": "socks5", "server": "s", "port": 1}, &Socks5{}},
		{map[string]any{"name": "a", "type": "snell", "server": "s", "port": 1}, &Snell{}},
		{map[string]any{"name": "a", "type": "trojan", "server": "s", "port": 1}, &Trojan{}},
	}
	for _, tc := range cases {
		p, err := ProxyFromMap(tc.in)
		require.NoError(t, err)
		assert.IsType(t, tc.want, p)
	}
}

func TestProxyFromMap_UnknownType(t *testing.T) {
	_, err := ProxyFromMap(map[string]any{"name": "a", "type": "hysteria", "server": "s", "port": 1})
	require.Error(t, err)
	_, err = ProxyFromMap(map[string]any{"name": "a", "server": "s", "port": 1})
	require.Error(t, err)
}

func TestProxyToMap_OmitsUnsetOptionals(t *testing.T) {
	p := &VMess{
		ProxyBase: ProxyBase{Name: "v", Type: TypeVMess, Server: "example.com", Port: 443},
		UUID:      "b831381d-6324-4d53-ad4f-8cda48b30811",
		Cipher:    "auto",
		TLS:       true,
	}
	m, err := ProxyToMap(p)
	require.NoError(t, err)
	assert.Equal(t, "vmess", m["type"])
	assert.Equal(t, 443, m["port"])
	assert.Equal(t, true, m["tls"])
	assert.Contains(t, m, "alterId")
	assert.NotContains(t, m, "udp")
	assert.NotContains(t, m, "ws-opts")
	assert.NotContains(t, m, "servername")
}

func TestProxyFromMap_KeepsUnknownKeys(t *testing.T) {
	p, err := ProxyFromMap(map[string]any{
		"name": "t", "type": "trojan", "server": "s", "port": 443, "password": "x",
		"network": "grpc",
	})
	require.NoError(t, err)
	m, err := ProxyToMap(p)
	require.NoError(t, err)
	assert.Equal(t, "grpc", m["network"])
}

func TestValidate_ReportsAllFields(t *testing.T) {
	p := &ShadowSocks{ProxyBase: ProxyBase{Type: TypeShadowSocks, Port: 0}, Cipher: "rot13"}
	vs := Validate(p)
	fields := map[string]bool{}
	for _, v := range vs {
		fields[v.Field] = true
	}
	for _, f := range []string{"name", "server", "port", "cipher", "password"} {
		assert.True(t, fields[f], "missing violation for %s: %v", f, vs)
	}
}

func TestValidate_Variants(t *testing.T) {
	base := ProxyBase{Name: "n", Server: "example.com", Port: 8388}
	ok := []Proxy{
		&ShadowSocks{ProxyBase: base, Cipher: "aes-256-gcm", Password: "p"},
		&ShadowSocks{ProxyBase: base, Cipher: "aes-256-gcm", Password: "p", Plugin: "obfs", PluginOpts: map[string]any{"mode": "tls"}},
		&ShadowSocksR{ProxyBase: base, Cipher: "aes-256-cfb", Password: "p", Obfs: "plain", Protocol: "origin"},
		&VMess{ProxyBase: base, UUID: "u", Cipher: "auto", Network: "ws", WSOpts: map[string]any{"path": "/"}},
		&Socks5{ProxyBase: base},
		&Socks5{ProxyBase: base, Username: "u", Password: "p"},
		&Snell{ProxyBase: base, PSK: "k", Version: 2, ObfsOpts: &SnellObfs{Mode: "tls"}},
		&Trojan{ProxyBase: base, Password: "p"},
	}
	for _, p := range ok {
		assert.Empty(t, Validate(p), "%T", p)
	}

	bad := []Proxy{
		&ShadowSocks{ProxyBase: base, Cipher: "aes-256-gcm", Password: "p", Plugin: "kcptun"},
		&ShadowSocksR{ProxyBase: base, Cipher: "aes-256-cfb", Password: "p", Obfs: "?", Protocol: "origin"},
		&VMess{ProxyBase: base, UUID: "u", Cipher: "auto", AlterID: -1},
		&Socks5{ProxyBase: base, Username: "u"},
		&Snell{ProxyBase: base, PSK: "k", Version: 9},
		&Trojan{ProxyBase: base},
	}
	for _, p := range bad {
		assert.NotEmpty(t, Validate(p), "%T", p)
	}
}

func TestProxyList_YAMLRoundTrip(t *testing.T) {
	doc := `
- name: a
  type: ss
  server: 1.2.3.4
  port: 8388
  cipher: aes-128-gcm
  password: pw
  udp: true
- name: b
  type: trojan
  server: t.example.com
  port: 443
  password: pw
  sni: t.example.com
`
	var l ProxyList
	require.NoError(t, yaml.Unmarshal([]byte(doc), &l))
	require.Len(t, l, 2)
	assert.Equal(t, []string{"a", "b"}, ProxyNames(l))
	ss, ok := l[0].(*ShadowSocks)
	require.True(t, ok)
	assert.True(t, ss.UDP)

	out, err := yaml.Marshal(l)
	require.NoError(t, err)
	var back ProxyList
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, l, back)
}

func TestProxyList_RejectsBadEntries(t *testing.T) {
	var l ProxyList
	err := yaml.Unmarshal([]byte("- name: a\n  type: wireguard\n"), &l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxies.0")

	err = yaml.Unmarshal([]byte("name: a\n"), &l)
	require.Error(t, err)
}

func TestGroupMembers_YAML(t *testing.T) {
	var g ProxyGroup
	require.NoError(t, yaml.Unmarshal([]byte("name: Proxy\ntype: select\nproxies: __proxies_name_list__\n"), &g))
	assert.True(t, g.Members.All)

	require.NoError(t, yaml.Unmarshal([]byte("name: Proxy\ntype: select\nproxies: [a, b]\n"), &g))
	assert.Equal(t, GroupMembers{Names: []string{"a", "b"}}, g.Members)

	require.Error(t, yaml.Unmarshal([]byte("name: Proxy\ntype: select\nproxies: other\n"), &g))

	out, err := yaml.Marshal(ProxyGroup{Name: "P", Type: "select", Members: GroupMembers{All: true}})
	require.NoError(t, err)
	assert.Contains(t, string(out), "proxies: __proxies_name_list__")
}

func TestValidateGroup(t *testing.T) {
	assert.Empty(t, ValidateGroup(ProxyGroup{Name: "A", Type: "url-test", URL: "http://www.gstatic.com/generate_204", Interval: 300}))
	assert.Len(t, ValidateGroup(ProxyGroup{Name: "A", Type: "select", URL: "http://x", Interval: 1}), 2)
	assert.Len(t, ValidateGroup(ProxyGroup{Name: "A", Type: "fallback"}), 1)
}

func TestValidationError_Fields(t *testing.T) {
	err := NewValidationError("render", "p", []Violation{
		{Field: "rules.0", Message: "a"},
		{Field: "rules.0", Message: "b"},
		{Field: "port", Message: "c"},
	})
	assert.Equal(t, map[string]string{"rules.0": "a; b", "port": "c"}, err.Fields())
	assert.Equal(t, "VALIDATION_ERROR", err.Payload().Code)
	assert.Len(t, err.Payload().Fields, 2)
	assert.Equal(t, []Violation{{Field: "x.port", Message: "c"}}, Nest("x", []Violation{{Field: "port", Message: "c"}}))
}
