package ingest

import (
	"regexp"
	"strings"
)

const (
	FallbackEmail     = "no-reply@zionstore.com.br"
	PlaceholderDomain = "zionstore.com.br"
	PlaceholderLocal  = "no-reply"
)

var (
	atTokens      = regexp.MustCompile(`(?i)\(at\)|\[at\]| at `)
	junk          = strings.NewReplacer(" ", "", ",", "", ";", "", "<", "", ">", "")
	repeatedDots  = regexp.MustCompile(`\.{2,}`)
	reservedHosts = map[string]bool{
		"localhost": true,
		"local":     true,
		"example":   true,
		"invalid":   true,
		"test":      true,
	}
)

// NormalizeEmail turns loosely written addresses into a syntactically valid
// one. NormalizeEmail(NormalizeEmail(s)) == NormalizeEmail(s).
func NormalizeEmail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 7 && strings.EqualFold(s[:7], "mailto:") {
		s = strings.TrimSpace(s[7:])
	}
	s = atTokens.ReplaceAllString(s, "@")
	s = junk.Replace(s)
	if !strings.Contains(s, "@") {
		return FallbackEmail
	}

	at := strings.LastIndex(s, "@")
	local, domain := s[:at], cleanDomain(s[at+1:])

	if domain == "" || reservedHosts[domain] || strings.HasSuffix(domain, ".local") {
		domain = PlaceholderDomain
	}
	if !strings.Contains(domain, ".") || !alphaLabel(domain[strings.LastIndex(domain, ".")+1:]) {
		domain += ".com"
	}

	local = cleanLocal(local)
	if local == "" {
		local = PlaceholderLocal
	}
	return local + "@" + domain
}

func cleanLocal(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '+', r == '-':
			return r
		}
		return -1
	}, s)
	return strings.Trim(repeatedDots.ReplaceAllString(s, "."), ".")
}

func cleanDomain(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		}
		return -1
	}, s)
	labels := strings.Split(s, ".")
	kept := labels[:0]
	for _, l := range labels {
		// hostname labels may not start or end with a hyphen
		if l = strings.Trim(l, "-"); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, ".")
}

func alphaLabel(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
