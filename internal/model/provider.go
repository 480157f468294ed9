package model

import "fmt"

// RuleProvider is a clash rule-provider entry.
type RuleProvider struct {
	Type     string         `yaml:"type"`     // "http" | "file"
	Behavior string         `yaml:"behavior"` // "domain" | "ipcidr" | "classical"
	URL      string         `yaml:"url,omitempty"`
	Path     string         `yaml:"path,omitempty"`
	Interval int            `yaml:"interval,omitempty"`
	Extra    map[string]any `yaml:",inline"`
}

func ValidateRuleProvider(p RuleProvider) []Violation {
	var vs []Violation
	switch p.Type {
	case "http":
		if p.URL == "" {
			vs = append(vs, Violation{Field: "url", Message: "http 类型的 rule-provider 必须设置 url"})
		}
	case "file":
		if p.Path == "" {
			vs = append(vs, Violation{Field: "path", Message: "file 类型的 rule-provider 必须设置 path"})
		}
	default:
		vs = append(vs, Violation{Field: "type", Message: fmt.Sprintf("不支持的 rule-provider 类型：%q", p.Type)})
	}
	switch p.Behavior {
	case "domain", "ipcidr", "classical":
	default:
		vs = append(vs, Violation{Field: "behavior", Message: fmt.Sprintf("不支持的 behavior：%q", p.Behavior)})
	}
	if p.Interval < 0 {
		vs = append(vs, Violation{Field: "interval", Message: "interval 不能为负数"})
	}
	return vs
}
