package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/Well2333/clashprofile/internal/model"
)

var groups = []string{"Proxy", "Auto"}
var providers = []string{"reject", "cncidr"}

func TestParse_TrimsTokens(t *testing.T) {
	r := Parse(" DOMAIN-SUFFIX , google.com , Proxy \r")
	if r.Type() != "DOMAIN-SUFFIX" {
		t.Fatalf("type=%q, want=%q", r.Type(), "DOMAIN-SUFFIX")
	}
	if r.Payload() != "google.com" {
		t.Fatalf("payload=%q, want=%q", r.Payload(), "google.com")
	}
	if r.Target() != "Proxy" {
		t.Fatalf("target=%q, want=%q", r.Target(), "Proxy")
	}
	if r.NoResolve() {
		t.Fatalf("unexpected no-resolve")
	}
}

func TestValidate_Accepts(t *testing.T) {
	res := Validate([]string{
		"DOMAIN,example.com,DIRECT",
		"DOMAIN-SUFFIX,google.com,proxy",
		"DOMAIN-KEYWORD,ads,REJECT",
		"GEOIP,CN,DIRECT,no-resolve",
		"IP-CIDR,10.0.0.0/8,DIRECT,no-resolve",
		"IP-CIDR6,2001:db8::/32,Auto",
		"SRC-IP-CIDR,192.168.1.2/32,DIRECT",
		"PROCESS-NAME,curl,Proxy",
		"RULE-SET,reject,REJECT",
		"RULE-SET,cncidr,DIRECT,no-resolve",
		"DST-PORT,443,Proxy",
		"SRC-PORT,8000-9000,DIRECT",
		"MATCH,Proxy",
	}, groups, providers)
	if !res.OK() {
		t.Fatalf("unexpected violations: %v", res.Violations)
	}
	if res.Err() != nil {
		t.Fatalf("Err()=%v, want nil", res.Err())
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		rules []string
		field string
	}{
		{"undefined group", []string{"DOMAIN,example.com,Nope", "MATCH,DIRECT"}, "rules.0"},
		{"no-resolve on domain", []string{"DOMAIN,example.com,DIRECT,no-resolve", "MATCH,DIRECT"}, "rules.0"},
		{"undefined provider", []string{"RULE-SET,missing,DIRECT", "MATCH,DIRECT"}, "rules.0"},
		{"port zero", []string{"DST-PORT,0,DIRECT", "MATCH,DIRECT"}, "rules.0"},
		{"port too large", []string{"SRC-PORT,70000,DIRECT", "MATCH,DIRECT"}, "rules.0"},
		{"unknown type", []string{"URL-REGEX,^http,DIRECT", "MATCH,DIRECT"}, "rules.0"},
		{"match not last", []string{"MATCH,DIRECT", "DOMAIN,example.com,DIRECT"}, "rules.0"},
		{"missing match", []string{"DOMAIN,example.com,DIRECT"}, "rules"},
		{"empty", nil, "rules"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Validate(tc.rules, groups, providers)
			if res.OK() {
				t.Fatalf("expected violations")
			}
			found := false
			for _, v := range res.Violations {
				if v.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("violations=%v, want field %q", res.Violations, tc.field)
			}
		})
	}
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	res := Validate([]string{
		"DOMAIN,a.com,Nope",
		"FOO,bar,DIRECT",
		"DOMAIN,b.com,DIRECT",
	}, groups, providers)
	if len(res.Violations) != 3 {
		t.Fatalf("violations=%d, want=3: %v", len(res.Violations), res.Violations)
	}

	var ve *model.ValidationError
	if !errors.As(res.Err(), &ve) {
		t.Fatalf("expected *model.ValidationError, got %T", res.Err())
	}
	fields := ve.Fields()
	for _, k := range []string{"rules.0", "rules.1", "rules"} {
		if _, ok := fields[k]; !ok {
			t.Fatalf("fields=%v, missing %q", fields, k)
		}
	}
	if !strings.Contains(fields["rules.0"], "DOMAIN,a.com,Nope") {
		t.Fatalf("message=%q, want rule text", fields["rules.0"])
	}
}

func TestValidate_DuplicateMatchRejected(t *testing.T) {
	res := Validate([]string{"MATCH,DIRECT", "MATCH,Proxy"}, groups, providers)
	if len(res.Violations) != 1 || res.Violations[0].Field != "rules.0" {
		t.Fatalf("violations=%v, want one at rules.0", res.Violations)
	}
}

func TestValidateGroups(t *testing.T) {
	vs := ValidateGroups([]model.ProxyGroup{
		{Name: "Proxy", Type: "select", Members: model.GroupMembers{All: true}},
		{Name: "Auto", Type: "url-test", Members: model.GroupMembers{All: true}},
		{Name: "Proxy", Type: "select", Members: model.GroupMembers{Names: []string{"Auto"}}},
		{Name: "DIRECT", Type: "select", Members: model.GroupMembers{Names: []string{"Auto"}}},
	})
	want := map[string]bool{
		"proxy-groups.1.url":      true,
		"proxy-groups.1.interval": true,
		"proxy-groups.2.name":     true,
		"proxy-groups.3.name":     true,
	}
	if len(vs) != len(want) {
		t.Fatalf("violations=%v, want fields %v", vs, want)
	}
	for _, v := range vs {
		if !want[v.Field] {
			t.Fatalf("unexpected violation %v", v)
		}
	}
}
