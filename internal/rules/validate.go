package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/Well2333/clashprofile/internal/model"
)

const Stage = "validate_rules"

// Builtin targets are valid without a declared group.
var builtinTargets = []string{"DIRECT", "REJECT"}

var keywords = map[string]struct{}{
	"DOMAIN":         {},
	"DOMAIN-SUFFIX":  {},
	"DOMAIN-KEYWORD": {},
	"GEOIP":          {},
	"IP-CIDR":        {},
	"IP-CIDR6":       {},
	"SRC-IP-CIDR":    {},
	"PROCESS-NAME":   {},
	"RULE-SET":       {},
}

// Rule types that may carry a trailing no-resolve after the target.
var noResolveTypes = map[string]struct{}{
	"GEOIP":    {},
	"IP-CIDR":  {},
	"IP-CIDR6": {},
	"RULE-SET": {},
}

type Result struct {
	Violations []model.Violation
}

func (r Result) OK() bool { return len(r.Violations) == 0 }

// Err returns a *model.ValidationError, or nil when the rules are valid.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return model.NewValidationError(Stage, "", r.Violations)
}

// Validate checks every rule against the declared groups and rule providers.
// All violations are collected; a rule may yield more than one.
func Validate(lines []string, groupNames, providerNames []string) Result {
	if len(lines) == 0 {
		return Result{Violations: []model.Violation{{Field: "rules", Message: "rules 不能为空"}}}
	}

	targets := lo.SliceToMap(append(lo.Map(groupNames, func(n string, _ int) string {
		return strings.ToUpper(n)
	}), builtinTargets...), func(n string) (string, struct{}) {
		return n, struct{}{}
	})
	isTarget := func(tok string) bool {
		_, ok := targets[strings.ToUpper(tok)]
		return ok
	}
	providers := lo.SliceToMap(providerNames, func(n string) (string, struct{}) {
		return n, struct{}{}
	})

	var vs []model.Violation
	matches := 0
	for i, line := range lines {
		r := Parse(line)
		field := fmt.Sprintf("rules.%d", i)
		report := func(msg string) {
			vs = append(vs, model.Violation{Field: field, Message: msg + ": " + truncateSnippet(r.Raw, 200)})
		}

		typ := r.Type()
		if !isTarget(r.Target()) {
			_, optional := noResolveTypes[typ]
			n := len(r.Tokens)
			if !(r.NoResolve() && optional && n >= 2 && isTarget(r.Tokens[n-2])) {
				report(fmt.Sprintf("未定义的策略组 %q", r.Target()))
			}
		}

		switch typ {
		case "RULE-SET":
			if _, ok := providers[r.Payload()]; !ok {
				report(fmt.Sprintf("未定义的 rule-provider %q", r.Payload()))
			}
		case "SRC-PORT", "DST-PORT":
			if p := r.Payload(); isDigits(p) {
				if n, err := strconv.Atoi(p); err != nil || n < 1 || n > 65535 {
					report(fmt.Sprintf("端口必须在 1-65535 之间，当前为 %s", p))
				}
			}
		case "MATCH":
			matches++
			if i != len(lines)-1 {
				report("MATCH 必须是最后一条规则")
			}
		default:
			if _, ok := keywords[typ]; !ok {
				report(fmt.Sprintf("不支持的规则类型 %q", r.Tokens[0]))
			}
		}
	}
	if matches == 0 {
		vs = append(vs, model.Violation{Field: "rules", Message: "缺少 MATCH 规则（用于兜底匹配剩余流量）"})
	}
	return Result{Violations: vs}
}

// ValidateGroups checks each group's shape plus name uniqueness across groups.
func ValidateGroups(groups []model.ProxyGroup) []model.Violation {
	var vs []model.Violation
	seen := make(map[string]int, len(groups))
	for i, g := range groups {
		field := fmt.Sprintf("proxy-groups.%d", i)
		vs = append(vs, model.Nest(field, model.ValidateGroup(g))...)
		if lo.Contains(builtinTargets, strings.ToUpper(g.Name)) {
			vs = append(vs, model.Violation{Field: field + ".name", Message: fmt.Sprintf("策略组名称 %q 为保留字", g.Name)})
			continue
		}
		if j, ok := seen[g.Name]; ok {
			vs = append(vs, model.Violation{Field: field + ".name", Message: fmt.Sprintf("策略组名称 %q 与 proxy-groups.%d 重复", g.Name, j)})
			continue
		}
		seen[g.Name] = i
	}
	return vs
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
