// Package logbuf keeps the most recent log records in memory so the ops API
// can serve them without touching disk. A Handler tees every slog record into
// a fixed-size ring while still delegating to the real output handler.
package logbuf

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   slog.Level     `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Ring holds the last N entries.
type Ring struct {
	mu   sync.Mutex
	buf  []Entry
	next int
	full bool
}

// NewRing creates a ring holding up to n entries.
func NewRing(n int) *Ring {
	return &Ring{buf: make([]Entry, n)}
}

func (r *Ring) add(e Entry) {
	r.mu.Lock()
	r.buf[r.next] = e
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
}

// Tail returns up to limit entries at or above minLevel and not older than
// since, in chronological order. A zero since means no time filter; a
// non-positive limit means no cap.
func (r *Ring) Tail(minLevel slog.Level, since time.Time, limit int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	start := 0
	if r.full {
		n = len(r.buf)
		start = r.next
	}

	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		e := r.buf[(start+i)%len(r.buf)]
		if e.Level < minLevel {
			continue
		}
		if !since.IsZero() && e.Time.Before(since) {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Handler captures every record into a Ring and forwards records the inner
// handler accepts. Capture ignores the inner handler's level so the ring
// keeps debug records even when stdout does not print them.
type Handler struct {
	inner  slog.Handler
	ring   *Ring
	bound  []slog.Attr
	prefix string // dotted group path applied to attr keys
}

// NewHandler wraps inner with ring capture.
func NewHandler(inner slog.Handler, ring *Ring) *Handler {
	return &Handler{inner: inner, ring: ring}
}

func (h *Handler) Enabled(context.Context, slog.Level) bool { return true }

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	attrs := make(map[string]any, rec.NumAttrs()+len(h.bound))
	// Bound attrs carry the prefix current when they were attached.
	for _, a := range h.bound {
		attrs[a.Key] = flatten(a.Value)
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[h.prefix+a.Key] = flatten(a.Value)
		return true
	})
	if len(attrs) == 0 {
		attrs = nil
	}
	h.ring.add(Entry{Time: rec.Time, Level: rec.Level, Message: rec.Message, Attrs: attrs})

	if h.inner.Enabled(ctx, rec.Level) {
		return h.inner.Handle(ctx, rec)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make([]slog.Attr, 0, len(h.bound)+len(attrs))
	bound = append(bound, h.bound...)
	for _, a := range attrs {
		bound = append(bound, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &Handler{inner: h.inner.WithAttrs(attrs), ring: h.ring, bound: bound, prefix: h.prefix}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		inner:  h.inner.WithGroup(name),
		ring:   h.ring,
		bound:  h.bound,
		prefix: h.prefix + name + ".",
	}
}

// flatten makes a value JSON-safe; errors marshal as their message instead
// of an empty object.
func flatten(v slog.Value) any {
	raw := v.Resolve().Any()
	if err, ok := raw.(error); ok {
		return err.Error()
	}
	return raw
}
