package logging

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultTimeFormat mirrors the classic "asctime" layout.
const DefaultTimeFormat = "2006-01-02 15:04:05,000"

// HandlerOptions configures a RedactingHandler.
type HandlerOptions struct {
	// Name is printed in brackets at the start of every line.
	Name string

	// Fields lists the keys whose values are redacted. Defaults to PIIFields.
	Fields []string

	// Redaction replaces redacted values. Defaults to Redaction.
	Redaction string

	// Separator delimits key=value tokens. Defaults to ";".
	Separator string

	// Level is the minimum level emitted. Defaults to slog.LevelInfo.
	Level slog.Leveler

	// TimeFormat defaults to DefaultTimeFormat.
	TimeFormat string
}

// RedactingHandler is a slog.Handler that renders each record as
//
//	[name] LEVEL time: message key=value;key=value;
//
// and runs the whole line through FilterDatum before it reaches the writer.
type RedactingHandler struct {
	opts   HandlerOptions
	fields map[string]struct{}
	mu     *sync.Mutex
	w      io.Writer
	attrs  []slog.Attr
	groups []string
}

// NewRedactingHandler returns a handler writing redacted lines to w.
func NewRedactingHandler(w io.Writer, opts HandlerOptions) *RedactingHandler {
	if opts.Fields == nil {
		opts.Fields = PIIFields
	}
	if opts.Redaction == "" {
		opts.Redaction = Redaction
	}
	if opts.Separator == "" {
		opts.Separator = ";"
	}
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = DefaultTimeFormat
	}
	fields := make(map[string]struct{}, len(opts.Fields))
	for _, f := range opts.Fields {
		fields[f] = struct{}{}
	}
	return &RedactingHandler{opts: opts, fields: fields, mu: &sync.Mutex{}, w: w}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(h.opts.Name)
	b.WriteString("] ")
	b.WriteString(r.Level.String())
	b.WriteString(" ")
	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	b.WriteString(t.Format(h.opts.TimeFormat))
	b.WriteString(": ")
	b.WriteString(r.Message)

	first := true
	write := func(groups []string, a slog.Attr) {
		if first && r.Message != "" {
			b.WriteString(" ")
		}
		first = false
		h.appendAttr(&b, groups, a)
	}
	for _, a := range h.attrs {
		write(nil, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(h.groups, a)
		return true
	})

	line := FilterDatum(h.opts.Fields, h.opts.Redaction, b.String(), h.opts.Separator)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line+"\n")
	return err
}

func (h *RedactingHandler) appendAttr(b *strings.Builder, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			groups = append(groups[:len(groups):len(groups)], a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, groups, ga)
		}
		return
	}

	for _, g := range groups {
		b.WriteString(g)
		b.WriteString(".")
	}
	b.WriteString(a.Key)
	b.WriteString("=")
	b.WriteString(h.formatValue(a))
	b.WriteString(h.opts.Separator)
}

// formatValue renders an attribute value. Listed keys are redacted here
// rather than by FilterDatum, which cannot tell where a value containing
// the separator ends. Other values containing it are quoted.
func (h *RedactingHandler) formatValue(a slog.Attr) string {
	if _, ok := h.fields[a.Key]; ok {
		return h.opts.Redaction
	}
	var v string
	if a.Value.Kind() == slog.KindTime {
		v = a.Value.Time().Format(h.opts.TimeFormat)
	} else {
		v = a.Value.String()
	}
	if h.opts.Separator != "" && strings.Contains(v, h.opts.Separator) {
		v = strconv.Quote(v)
	}
	return v
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		// Pre-bound attrs keep the group prefix active when they were added.
		for i := len(h.groups) - 1; i >= 0; i-- {
			a = slog.Group(h.groups[i], a)
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(h.groups[:len(h.groups):len(h.groups)], name)
	return &h2
}
