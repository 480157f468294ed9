// Package profile holds clash templates (unrendered) and profiles (rendered,
// persist-ready), their YAML form and whole-document validation.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/Well2333/clashprofile/internal/model"
	"github.com/Well2333/clashprofile/internal/rules"
)

// ProxiesSentinel stands for "the resolved proxy list" in a template's proxies field.
const ProxiesSentinel = "__proxies_list__"

var (
	modes     = []string{"rule", "global", "direct"}
	logLevels = []string{"info", "warning", "error", "debug", "silent"}
)

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Header is the set of scalar settings shared by templates and profiles.
type Header struct {
	Port               int    `yaml:"port"`
	SocksPort          int    `yaml:"socks-port"`
	AllowLAN           bool   `yaml:"allow-lan"`
	Mode               string `yaml:"mode"`
	LogLevel           string `yaml:"log-level"`
	ExternalController string `yaml:"external-controller"`
}

// TemplateProxies is either the sentinel or an explicit proxy list.
type TemplateProxies struct {
	Sentinel bool
	List     model.ProxyList
}

func (p *TemplateProxies) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if node.Value != ProxiesSentinel {
			return fmt.Errorf("line %d: proxies 只能是列表或 %s", node.Line, ProxiesSentinel)
		}
		*p = TemplateProxies{Sentinel: true}
		return nil
	}
	var l model.ProxyList
	if err := l.UnmarshalYAML(node); err != nil {
		return err
	}
	*p = TemplateProxies{List: l}
	return nil
}

func (p TemplateProxies) MarshalYAML() (any, error) {
	if p.Sentinel {
		return ProxiesSentinel, nil
	}
	return p.List.MarshalYAML()
}

type Template struct {
	Header        `yaml:",inline"`
	Proxies       TemplateProxies                  `yaml:"proxies"`
	ProxyGroups   []model.ProxyGroup               `yaml:"proxy-groups"`
	RuleProviders model.Ordered[model.RuleProvider] `yaml:"rule-providers,omitempty"`
	Rules         []string                         `yaml:"rules"`
	Extra         map[string]any                   `yaml:",inline"`
}

type Profile struct {
	Header        `yaml:",inline"`
	Proxies       model.ProxyList                  `yaml:"proxies"`
	ProxyGroups   []model.ProxyGroup               `yaml:"proxy-groups"`
	RuleProviders model.Ordered[model.RuleProvider] `yaml:"rule-providers,omitempty"`
	Rules         []string                         `yaml:"rules"`
	Extra         map[string]any                   `yaml:",inline"`
}

// Decode parses a template document. It does not validate; see Template.Validate.
func Decode(source string, content []byte) (*Template, error) {
	var t Template
	if err := decodeSingle(content, &t); err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "TEMPLATE_PARSE_ERROR",
				Message: "模板 YAML 解析失败",
				Stage:   "parse_template",
				URL:     source,
				Snippet: truncateSnippet(string(content), 200),
			},
			Cause: err,
		}
	}
	t.Header.normalize()
	return &t, nil
}

// DecodeProfile parses a rendered profile document.
func DecodeProfile(source string, content []byte) (*Profile, error) {
	var p Profile
	if err := decodeSingle(content, &p); err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "PROFILE_PARSE_ERROR",
				Message: "配置文件 YAML 解析失败",
				Stage:   "parse_profile",
				URL:     source,
				Snippet: truncateSnippet(string(content), 200),
			},
			Cause: err,
		}
	}
	p.Header.normalize()
	return &p, nil
}

func (h *Header) normalize() {
	h.Mode = strings.ToLower(strings.TrimSpace(h.Mode))
	h.LogLevel = strings.ToLower(strings.TrimSpace(h.LogLevel))
}

// Validate reports every violation of the template as a *model.ValidationError.
func (t *Template) Validate() error {
	vs := validateDocument(t.Header, t.ProxyGroups, t.RuleProviders, t.Rules)
	if !t.Proxies.Sentinel {
		vs = append(vs, validateProxies(t.Proxies.List)...)
	}
	if len(vs) > 0 {
		return model.NewValidationError("validate_template", "", vs)
	}
	return nil
}

// Validate additionally requires resolved group lists.
func (p *Profile) Validate() error {
	vs := validateDocument(p.Header, p.ProxyGroups, p.RuleProviders, p.Rules)
	vs = append(vs, validateProxies(p.Proxies)...)
	for i, g := range p.ProxyGroups {
		if g.Members.All {
			vs = append(vs, model.Violation{
				Field:   fmt.Sprintf("proxy-groups.%d.proxies", i),
				Message: "渲染后的策略组不能保留 " + model.ProxyNamesSentinel,
			})
		}
	}
	if len(vs) > 0 {
		return model.NewValidationError("validate_profile", "", vs)
	}
	return nil
}

// Marshal renders the profile as YAML with two-space indentation.
func (p *Profile) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ProviderNames lists rule-provider names in document order.
func (p *Profile) ProviderNames() []string {
	return append([]string(nil), p.RuleProviders.Keys...)
}

func validateDocument(h Header, groups []model.ProxyGroup, providers model.Ordered[model.RuleProvider], ruleLines []string) []model.Violation {
	var vs []model.Violation
	checkPort := func(field string, v int) {
		if v < 1 || v > 65535 {
			vs = append(vs, model.Violation{Field: field, Message: fmt.Sprintf("端口必须在 1-65535 之间，当前为 %d", v)})
		}
	}
	checkPort("port", h.Port)
	checkPort("socks-port", h.SocksPort)
	if !lo.Contains(modes, h.Mode) {
		vs = append(vs, model.Violation{Field: "mode", Message: fmt.Sprintf("mode 仅支持 %s，当前为 %q", strings.Join(modes, "/"), h.Mode)})
	}
	if !lo.Contains(logLevels, h.LogLevel) {
		vs = append(vs, model.Violation{Field: "log-level", Message: fmt.Sprintf("log-level 仅支持 %s，当前为 %q", strings.Join(logLevels, "/"), h.LogLevel)})
	}
	if strings.TrimSpace(h.ExternalController) == "" {
		vs = append(vs, model.Violation{Field: "external-controller", Message: "external-controller 不能为空"})
	}

	vs = append(vs, rules.ValidateGroups(groups)...)
	for _, name := range providers.Keys {
		vs = append(vs, model.Nest("rule-providers."+name, model.ValidateRuleProvider(providers.Values[name]))...)
	}

	groupNames := lo.Map(groups, func(g model.ProxyGroup, _ int) string { return g.Name })
	vs = append(vs, rules.Validate(ruleLines, groupNames, providers.Keys).Violations...)
	return vs
}

func validateProxies(ps []model.Proxy) []model.Violation {
	var vs []model.Violation
	for i, p := range ps {
		vs = append(vs, model.Nest(fmt.Sprintf("proxies.%d", i), model.Validate(p))...)
	}
	return vs
}

// decodeSingle rejects multi-document YAML.
func decodeSingle(content []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty document")
		}
		return err
	}
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return errors.New("multiple YAML documents are not allowed")
	} else if !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
