package model

import "strings"

// Rule is one comma separated clash rule, e.g. "DOMAIN-SUFFIX,google.com,Proxy".
type Rule struct {
	Raw    string
	Tokens []string // trimmed, original case
}

// Type is the first token, upper-cased.
func (r Rule) Type() string {
	if len(r.Tokens) == 0 {
		return ""
	}
	return strings.ToUpper(r.Tokens[0])
}

// Target is the final token (group name, DIRECT, REJECT or an option such as no-resolve).
func (r Rule) Target() string {
	if len(r.Tokens) == 0 {
		return ""
	}
	return r.Tokens[len(r.Tokens)-1]
}

// Payload is the second token when the rule has one.
func (r Rule) Payload() string {
	if len(r.Tokens) < 2 {
		return ""
	}
	return r.Tokens[1]
}

func (r Rule) NoResolve() bool {
	return len(r.Tokens) > 0 && strings.EqualFold(r.Target(), "no-resolve")
}
