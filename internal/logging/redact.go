// Package logging builds the application's slog loggers and keeps personally
// identifiable information out of them. Redaction happens as a formatting
// step: either on the rendered line (FilterDatum, RedactingHandler) or on
// individual attributes before the handler renders them (RedactAttrs).
package logging

import (
	"log/slog"
	"strings"
)

// Redaction is the marker that replaces redacted values.
const Redaction = "***"

// PIIFields are the user attributes redacted by default.
var PIIFields = []string{
	"email",
	"first_name",
	"last_name",
	"hashed_password",
	"password",
	"session_id",
	"reset_token",
}

// FilterDatum replaces the value of every key=value token in message whose
// key is listed in fields. Tokens are delimited by separator; a value runs
// up to the next separator. The key is the word immediately before the
// first "=" of a token, so a leading log prefix or a space after the
// separator does not prevent a match. Order and separators are preserved.
func FilterDatum(fields []string, redaction, message, separator string) string {
	if len(fields) == 0 || message == "" {
		return message
	}

	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}

	var tokens []string
	if separator == "" {
		tokens = []string{message}
	} else {
		tokens = strings.Split(message, separator)
	}

	for i, tok := range tokens {
		eq := strings.IndexByte(tok, '=')
		if eq < 0 {
			continue
		}
		key := tok[:eq]
		name := key[strings.LastIndexAny(key, " \t")+1:]
		if _, ok := set[name]; ok {
			tokens[i] = tok[:eq+1] + redaction
		}
	}

	return strings.Join(tokens, separator)
}

// RedactAttrs returns a slog ReplaceAttr hook that masks the value of any
// attribute whose key is in fields, at any group depth.
func RedactAttrs(fields []string) func(groups []string, a slog.Attr) slog.Attr {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return func(_ []string, a slog.Attr) slog.Attr {
		if _, ok := set[a.Key]; ok {
			return slog.String(a.Key, Redaction)
		}
		return a
	}
}
