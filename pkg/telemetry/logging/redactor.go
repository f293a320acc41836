package logging

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/wasilibs/go-re2"

	"mercator-hq/mailsweep/pkg/config"
)

// Redactor removes personal data and credentials from log attributes.
// Sender addresses are the main concern: message metadata is logged while
// cleaning up, and addresses must not end up in log storage.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	name    string
	regex   *re2.Regexp
	replace func(string) string
}

// Built-in pattern names.
const (
	PatternEmail       = "email"
	PatternBearerToken = "bearer_token"
	PatternBotToken    = "bot_token"
	PatternPassword    = "password"
	PatternAWSKey      = "aws_access_key"
)

var defaultPatterns = []struct {
	name    string
	regex   string
	replace func(string) string
}{
	{PatternEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, RedactEmail},
	{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, fixed("Bearer ***")},
	// Telegram bot tokens: <bot id>:<35 char secret>
	{PatternBotToken, `\b\d{6,12}:[A-Za-z0-9_-]{30,}\b`, fixed("***:***")},
	{PatternAWSKey, `\b(AKIA|ASIA)[A-Z0-9]{16}\b`, fixed("AKIA***")},
	{PatternPassword, `(?i)(password|passwd|pwd)[:=]\s*\S+`, nil},
}

func fixed(s string) func(string) string {
	return func(string) string { return s }
}

// NewRedactor creates a redactor with the built-in patterns plus custom ones.
// Invalid custom patterns are reported as an error.
func NewRedactor(custom []config.RedactPattern) (*Redactor, error) {
	r := &Redactor{}
	for _, p := range defaultPatterns {
		re := re2.MustCompile(p.regex)
		replace := p.replace
		if replace == nil {
			replace = func(m string) string {
				return re.ReplaceAllString(m, "$1: ***")
			}
		}
		r.patterns = append(r.patterns, redactPattern{name: p.name, regex: re, replace: replace})
	}

	for _, p := range custom {
		re, err := re2.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, redactPattern{name: p.Name, regex: re, replace: fixed(p.Replacement)})
	}
	return r, nil
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllStringFunc(value, p.replace)
	}
	return value
}

// RedactAttr returns a with sensitive content removed. Values under
// sensitive keys are masked entirely; strings, errors and groups are
// scanned for patterns.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if isSensitiveKey(a.Key) && a.Value.Kind() != slog.KindGroup {
		return slog.String(a.Key, maskValue(a.Value.String()))
	}

	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(r.RedactString(a.Value.String()))
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = r.RedactAttr(ga)
		}
		a.Value = slog.GroupValue(out...)
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case error:
			a.Value = slog.StringValue(r.RedactString(v.Error()))
		case fmt.Stringer:
			a.Value = slog.StringValue(r.RedactString(v.String()))
		case []string:
			out := make([]string, len(v))
			for i, s := range v {
				out[i] = r.RedactString(s)
			}
			a.Value = slog.AnyValue(out)
		}
	}
	return a
}

var sensitiveKeys = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"authorization", "credential", "private_key",
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func maskValue(v string) string {
	if v == "" {
		return ""
	}
	return "***"
}

// RedactEmail keeps the first character of the local part and the domain.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}
