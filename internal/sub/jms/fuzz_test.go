package jms

import "testing"

func FuzzParse(f *testing.F) {
	seed := []string{
		"",
		"   \n",
		"ss://YWVzLTI1Ni1nY206cGFzcw==@example.com:8388#tag\n",
		"c3M6Ly9ZV1Z6TFRJMU5pMW5ZMjA2Y0dGemN3PT1AZXhhbXBsZS5jb206ODM4OCN0YWc=",
		"vmess://e30=",
		"ss://YWVzLTI1Ni1nY206cGFzcw==@[::1]:8388#ipv6\n",
	}
	for _, s := range seed {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, content string) {
		proxies, _, err := Parse("https://example.com/sub", []byte(content))
		if err != nil {
			return
		}
		for _, p := range proxies {
			b := p.Base()
			if b.Server == "" {
				t.Fatalf("empty server")
			}
			if b.Port < 1 || b.Port > 65535 {
				t.Fatalf("port out of range: %d", b.Port)
			}
			if len(b.Name) < len(namePrefix) || b.Name[:len(namePrefix)] != namePrefix {
				t.Fatalf("name without prefix: %q", b.Name)
			}
		}
	})
}
