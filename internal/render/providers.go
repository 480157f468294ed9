package render

import (
	"fmt"
	"strings"

	"github.com/Well2333/clashprofile/internal/profile"
)

// RewriteProviders points every remote rule-provider of p at base/<file>.yml and
// returns file -> original URL for download. file is the provider name reduced to a
// path-safe form. Providers without a url are left alone.
func RewriteProviders(p *profile.Profile, base string) map[string]string {
	out := make(map[string]string, p.RuleProviders.Len())
	used := make(map[string]int, p.RuleProviders.Len())
	base = strings.TrimRight(base, "/")
	for _, name := range p.RuleProviders.Keys {
		rp := p.RuleProviders.Values[name]
		if strings.TrimSpace(rp.URL) == "" {
			continue
		}
		file := providerFileName(name, used)
		out[file] = rp.URL
		rp.URL = base + "/" + file + ".yml"
		p.RuleProviders.Values[name] = rp
	}
	return out
}

func providerFileName(name string, used map[string]int) string {
	base := sanitizeProviderName(name)
	if base == "" {
		base = "provider"
	}
	name = base
	for n := used[base]; used[name] > 0; {
		n++
		used[base] = n
		name = fmt.Sprintf("%s-%d", base, n)
	}
	// Generated names are recorded too, so a later literal "x-2" cannot reuse one.
	used[name]++
	return name
}

func sanitizeProviderName(s string) string {
	// Safe as a file name and as a URL path segment.
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-.")
	if len(out) > 60 {
		out = out[:60]
	}
	return out
}
