package model

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type ProxyType string

const (
	TypeShadowSocks  ProxyType = "ss"
	TypeShadowSocksR ProxyType = "ssr"
	TypeVMess        ProxyType = "vmess"
	TypeSocks5       ProxyType = "socks5"
	TypeSnell        ProxyType = "snell"
	TypeTrojan       ProxyType = "trojan"
)

// Proxy is one proxy entry of a profile. The set of implementations is closed:
// ShadowSocks, ShadowSocksR, VMess, Socks5, Snell and Trojan.
type Proxy interface {
	Base() *ProxyBase
	validate() []Violation
}

// ProxyBase holds the fields shared by every protocol.
type ProxyBase struct {
	Name   string    `yaml:"name"`
	Type   ProxyType `yaml:"type"`
	Server string    `yaml:"server"`
	Port   int       `yaml:"port"`
}

func (b *ProxyBase) Base() *ProxyBase { return b }

type ShadowSocks struct {
	ProxyBase  `yaml:",inline"`
	Cipher     string         `yaml:"cipher"`
	Password   string         `yaml:"password"`
	UDP        bool           `yaml:"udp,omitempty"`
	Plugin     string         `yaml:"plugin,omitempty"`
	PluginOpts map[string]any `yaml:"plugin-opts,omitempty"`
	Extra      map[string]any `yaml:",inline"`
}

type ShadowSocksR struct {
	ProxyBase     `yaml:",inline"`
	Cipher        string         `yaml:"cipher"`
	Password      string         `yaml:"password"`
	Obfs          string         `yaml:"obfs"`
	Protocol      string         `yaml:"protocol"`
	ObfsParam     string         `yaml:"obfs-param,omitempty"`
	ProtocolParam string         `yaml:"protocol-param,omitempty"`
	UDP           bool           `yaml:"udp,omitempty"`
	Extra         map[string]any `yaml:",inline"`
}

type VMess struct {
	ProxyBase      `yaml:",inline"`
	UUID           string         `yaml:"uuid"`
	AlterID        int            `yaml:"alterId"`
	Cipher         string         `yaml:"cipher"`
	UDP            bool           `yaml:"udp,omitempty"`
	TLS            bool           `yaml:"tls,omitempty"`
	SkipCertVerify bool           `yaml:"skip-cert-verify,omitempty"`
	ServerName     string         `yaml:"servername,omitempty"`
	Network        string         `yaml:"network,omitempty"`
	WSOpts         map[string]any `yaml:"ws-opts,omitempty"`
	Extra          map[string]any `yaml:",inline"`
}

type Socks5 struct {
	ProxyBase      `yaml:",inline"`
	Username       string         `yaml:"username,omitempty"`
	Password       string         `yaml:"password,omitempty"`
	TLS            bool           `yaml:"tls,omitempty"`
	SkipCertVerify bool           `yaml:"skip-cert-verify,omitempty"`
	UDP            bool           `yaml:"udp,omitempty"`
	Extra          map[string]any `yaml:",inline"`
}

type Snell struct {
	ProxyBase `yaml:",inline"`
	PSK       string         `yaml:"psk"`
	Version   int            `yaml:"version,omitempty"`
	ObfsOpts  *SnellObfs     `yaml:"obfs-opts,omitempty"`
	Extra     map[string]any `yaml:",inline"`
}

type SnellObfs struct {
	Mode string `yaml:"mode"`
	Host string `yaml:"host,omitempty"`
}

type Trojan struct {
	ProxyBase      `yaml:",inline"`
	Password       string         `yaml:"password"`
	SNI            string         `yaml:"sni,omitempty"`
	ALPN           []string       `yaml:"alpn,omitempty"`
	SkipCertVerify bool           `yaml:"skip-cert-verify,omitempty"`
	UDP            bool           `yaml:"udp,omitempty"`
	Extra          map[string]any `yaml:",inline"`
}

func newProxy(t ProxyType) (Proxy, error) {
	switch t {
	case TypeShadowSocks:
		return &ShadowSocks{}, nil
	case TypeShadowSocksR:
		return &ShadowSocksR{}, nil
	case TypeVMess:
		return &VMess{}, nil
	case TypeSocks5:
		return &Socks5{}, nil
	case TypeSnell:
		return &Snell{}, nil
	case TypeTrojan:
		return &Trojan{}, nil
	case "":
		return nil, errors.New("type: 缺少节点类型")
	default:
		return nil, fmt.Errorf("type: 不支持的节点类型：%s", t)
	}
}

// DecodeProxyNode instantiates the variant named by the node's "type" key.
func DecodeProxyNode(node *yaml.Node) (Proxy, error) {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, errors.New("节点必须是 key/value 结构")
	}
	var head struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, err
	}
	t := ProxyType(strings.ToLower(strings.TrimSpace(head.Type)))
	p, err := newProxy(t)
	if err != nil {
		return nil, err
	}
	if err := node.Decode(p); err != nil {
		return nil, err
	}
	p.Base().Type = t
	return p, nil
}

// ProxyFromMap parses a generic key/value proxy description.
func ProxyFromMap(m map[string]any) (Proxy, error) {
	var node yaml.Node
	if err := node.Encode(m); err != nil {
		return nil, err
	}
	return DecodeProxyNode(&node)
}

// ProxyToMap serializes p to its generic form; unset optional fields are omitted.
func ProxyToMap(p Proxy) (map[string]any, error) {
	var node yaml.Node
	if err := node.Encode(p); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := node.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProxyNames returns the name of every proxy, in input order.
func ProxyNames(ps []Proxy) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Base().Name)
	}
	return out
}

// ProxyList decodes a YAML sequence of proxies into their variants.
type ProxyList []Proxy

func (l *ProxyList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: proxies 必须是列表", node.Line)
	}
	out := make(ProxyList, 0, len(node.Content))
	for i, item := range node.Content {
		p, err := DecodeProxyNode(item)
		if err != nil {
			return fmt.Errorf("proxies.%d (line %d): %w", i, item.Line, err)
		}
		out = append(out, p)
	}
	*l = out
	return nil
}

func (l ProxyList) MarshalYAML() (any, error) {
	return []Proxy(l), nil
}

// Validate checks the shared fields and the protocol specific field set.
func Validate(p Proxy) []Violation {
	if p == nil {
		return []Violation{{Message: "节点不能为空"}}
	}
	b := p.Base()
	var vs []Violation
	if strings.TrimSpace(b.Name) == "" {
		vs = append(vs, Violation{Field: "name", Message: "节点名称不能为空"})
	}
	if strings.TrimSpace(b.Server) == "" {
		vs = append(vs, Violation{Field: "server", Message: "服务器地址不能为空"})
	}
	if b.Port < 1 || b.Port > 65535 {
		vs = append(vs, Violation{Field: "port", Message: fmt.Sprintf("端口必须在 1-65535 之间，当前为 %d", b.Port)})
	}
	return append(vs, p.validate()...)
}

var ssCiphers = setOf(
	"aes-128-gcm", "aes-192-gcm", "aes-256-gcm",
	"aes-128-cfb", "aes-192-cfb", "aes-256-cfb",
	"aes-128-ctr", "aes-192-ctr", "aes-256-ctr",
	"rc4-md5", "chacha20", "chacha20-ietf", "xchacha20",
	"chacha20-ietf-poly1305", "xchacha20-ietf-poly1305",
	"2022-blake3-aes-128-gcm", "2022-blake3-aes-256-gcm", "2022-blake3-chacha20-poly1305",
	"none",
)

var ssrCiphers = setOf(
	"aes-128-cfb", "aes-192-cfb", "aes-256-cfb",
	"aes-128-ctr", "aes-192-ctr", "aes-256-ctr",
	"rc4-md5", "chacha20", "chacha20-ietf", "xchacha20", "none",
)

var ssrObfs = setOf("plain", "http_simple", "http_post", "random_head", "tls1.2_ticket_auth", "tls1.2_ticket_fastauth")

var ssrProtocols = setOf("origin", "auth_sha1_v4", "auth_aes128_md5", "auth_aes128_sha1", "auth_chain_a", "auth_chain_b")

var vmessCiphers = setOf("auto", "none", "zero", "aes-128-gcm", "chacha20-poly1305")

var vmessNetworks = setOf("tcp", "ws", "http", "h2", "grpc")

func (p *ShadowSocks) validate() []Violation {
	var vs []Violation
	if _, ok := ssCiphers[p.Cipher]; !ok {
		vs = append(vs, Violation{Field: "cipher", Message: fmt.Sprintf("不支持的加密方式：%q", p.Cipher)})
	}
	if p.Password == "" {
		vs = append(vs, Violation{Field: "password", Message: "密码不能为空"})
	}
	switch p.Plugin {
	case "":
		if len(p.PluginOpts) > 0 {
			vs = append(vs, Violation{Field: "plugin-opts", Message: "未设置 plugin 时不允许 plugin-opts"})
		}
	case "obfs", "v2ray-plugin":
		if _, ok := p.PluginOpts["mode"]; !ok {
			vs = append(vs, Violation{Field: "plugin-opts.mode", Message: "plugin 需要 mode 选项"})
		}
	default:
		vs = append(vs, Violation{Field: "plugin", Message: fmt.Sprintf("不支持的 plugin：%s", p.Plugin)})
	}
	return vs
}

func (p *ShadowSocksR) validate() []Violation {
	var vs []Violation
	if _, ok := ssrCiphers[p.Cipher]; !ok {
		vs = append(vs, Violation{Field: "cipher", Message: fmt.Sprintf("不支持的加密方式：%q", p.Cipher)})
	}
	if p.Password == "" {
		vs = append(vs, Violation{Field: "password", Message: "密码不能为空"})
	}
	if _, ok := ssrObfs[p.Obfs]; !ok {
		vs = append(vs, Violation{Field: "obfs", Message: fmt.Sprintf("不支持的 obfs：%q", p.Obfs)})
	}
	if _, ok := ssrProtocols[p.Protocol]; !ok {
		vs = append(vs, Violation{Field: "protocol", Message: fmt.Sprintf("不支持的 protocol：%q", p.Protocol)})
	}
	return vs
}

func (p *VMess) validate() []Violation {
	var vs []Violation
	if strings.TrimSpace(p.UUID) == "" {
		vs = append(vs, Violation{Field: "uuid", Message: "uuid 不能为空"})
	}
	if p.AlterID < 0 {
		vs = append(vs, Violation{Field: "alterId", Message: "alterId 不能为负数"})
	}
	if _, ok := vmessCiphers[p.Cipher]; !ok {
		vs = append(vs, Violation{Field: "cipher", Message: fmt.Sprintf("不支持的加密方式：%q", p.Cipher)})
	}
	if p.Network != "" {
		if _, ok := vmessNetworks[p.Network]; !ok {
			vs = append(vs, Violation{Field: "network", Message: fmt.Sprintf("不支持的传输方式：%s", p.Network)})
		}
	}
	if len(p.WSOpts) > 0 && p.Network != "ws" {
		vs = append(vs, Violation{Field: "ws-opts", Message: "ws-opts 仅在 network=ws 时有效"})
	}
	return vs
}

func (p *Socks5) validate() []Violation {
	if (p.Username == "") != (p.Password == "") {
		return []Violation{{Field: "username", Message: "username 与 password 必须同时设置"}}
	}
	return nil
}

func (p *Snell) validate() []Violation {
	var vs []Violation
	if p.PSK == "" {
		vs = append(vs, Violation{Field: "psk", Message: "psk 不能为空"})
	}
	if p.Version != 0 && (p.Version < 1 || p.Version > 3) {
		vs = append(vs, Violation{Field: "version", Message: fmt.Sprintf("不支持的 snell 版本：%d", p.Version)})
	}
	if p.ObfsOpts != nil && p.ObfsOpts.Mode != "http" && p.ObfsOpts.Mode != "tls" {
		vs = append(vs, Violation{Field: "obfs-opts.mode", Message: fmt.Sprintf("obfs mode 仅支持 http/tls，当前为 %q", p.ObfsOpts.Mode)})
	}
	return vs
}

func (p *Trojan) validate() []Violation {
	if p.Password == "" {
		return []Violation{{Field: "password", Message: "密码不能为空"}}
	}
	return nil
}

func setOf(items ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}
