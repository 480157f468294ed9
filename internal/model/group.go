package model

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProxyNamesSentinel stands for "every proxy of the rendered profile" in a group's
// proxies field.
const ProxyNamesSentinel = "__proxies_name_list__"

// GroupMembers is either the sentinel (All) or an explicit list of proxy / group names.
type GroupMembers struct {
	All   bool
	Names []string
}

func (m *GroupMembers) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value != ProxyNamesSentinel {
			return fmt.Errorf("line %d: proxies 只能是列表或 %s", node.Line, ProxyNamesSentinel)
		}
		*m = GroupMembers{All: true}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		*m = GroupMembers{Names: names}
		return nil
	default:
		return fmt.Errorf("line %d: proxies 只能是列表或 %s", node.Line, ProxyNamesSentinel)
	}
}

func (m GroupMembers) MarshalYAML() (any, error) {
	if m.All {
		return ProxyNamesSentinel, nil
	}
	if m.Names == nil {
		return []string{}, nil
	}
	return m.Names, nil
}

// ProxyGroup is a clash proxy-group.
type ProxyGroup struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"` // "select" | "url-test"
	Members  GroupMembers   `yaml:"proxies"`
	URL      string         `yaml:"url,omitempty"`      // url-test only
	Interval int            `yaml:"interval,omitempty"` // url-test only, seconds
	Extra    map[string]any `yaml:",inline"`
}

// ValidateGroup checks the shape of a single group.
func ValidateGroup(g ProxyGroup) []Violation {
	var vs []Violation
	if strings.TrimSpace(g.Name) == "" {
		vs = append(vs, Violation{Field: "name", Message: "策略组名称不能为空"})
	}
	switch g.Type {
	case "select":
		if g.URL != "" {
			vs = append(vs, Violation{Field: "url", Message: "select 策略组不允许设置 url"})
		}
		if g.Interval != 0 {
			vs = append(vs, Violation{Field: "interval", Message: "select 策略组不允许设置 interval"})
		}
	case "url-test":
		if strings.TrimSpace(g.URL) == "" {
			vs = append(vs, Violation{Field: "url", Message: "url-test 策略组必须设置 url"})
		}
		if g.Interval <= 0 {
			vs = append(vs, Violation{Field: "interval", Message: "url-test 策略组必须设置正数 interval"})
		}
	default:
		vs = append(vs, Violation{Field: "type", Message: fmt.Sprintf("不支持的策略组类型：%q（仅支持 select/url-test）", g.Type)})
	}
	if g.Members.All && len(g.Members.Names) > 0 {
		vs = append(vs, Violation{Field: "proxies", Message: "proxies 不能同时是占位符和列表"})
	}
	return vs
}
