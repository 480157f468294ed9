package rules

import (
	"strings"
	"testing"
)

func FuzzValidate(f *testing.F) {
	seed := []string{
		"",
		"  \n",
		"MATCH,DIRECT",
		"DOMAIN,example.com,DIRECT",
		"DOMAIN-SUFFIX,example.com,Proxy",
		"GEOIP,CN,DIRECT,no-resolve",
		"RULE-SET,reject,REJECT",
		"DST-PORT,99999999999999999999,DIRECT",
		"IP-CIDR6,2001:db8::/32,REJECT,no-resolve",
	}
	for _, s := range seed {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, line string) {
		res := Validate([]string{line, "MATCH,DIRECT"}, []string{"Proxy"}, []string{"reject"})
		for _, v := range res.Violations {
			if v.Field != "rules.0" && v.Field != "rules" {
				t.Fatalf("unexpected field %q", v.Field)
			}
		}
		if strings.EqualFold(strings.TrimSpace(line), "MATCH,DIRECT") && res.OK() {
			t.Fatalf("MATCH before last accepted")
		}
	})
}
