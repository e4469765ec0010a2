package logbuf

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing(3)
	now := time.Now()

	for i := 0; i < 5; i++ {
		r.add(Entry{
			Time:    now.Add(time.Duration(i) * time.Second),
			Level:   slog.LevelInfo,
			Message: "msg",
			Attrs:   map[string]any{"i": i},
		})
	}

	got := r.Tail(slog.LevelDebug, time.Time{}, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Attrs["i"] != 2 || got[2].Attrs["i"] != 4 {
		t.Fatalf("wrong window: first=%v last=%v", got[0].Attrs["i"], got[2].Attrs["i"])
	}
}

func TestRingFilters(t *testing.T) {
	r := NewRing(10)
	now := time.Now()

	r.add(Entry{Time: now, Level: slog.LevelDebug, Message: "debug"})
	r.add(Entry{Time: now.Add(time.Second), Level: slog.LevelInfo, Message: "info"})
	r.add(Entry{Time: now.Add(2 * time.Second), Level: slog.LevelWarn, Message: "warn"})
	r.add(Entry{Time: now.Add(3 * time.Second), Level: slog.LevelError, Message: "error"})

	got := r.Tail(slog.LevelWarn, time.Time{}, 0)
	if len(got) != 2 || got[0].Message != "warn" || got[1].Message != "error" {
		t.Fatalf("level filter: %+v", got)
	}

	got = r.Tail(slog.LevelDebug, now.Add(2*time.Second), 0)
	if len(got) != 2 {
		t.Fatalf("since filter: expected 2, got %d", len(got))
	}

	got = r.Tail(slog.LevelDebug, time.Time{}, 1)
	if len(got) != 1 || got[0].Message != "error" {
		t.Fatalf("limit should keep newest: %+v", got)
	}
}

func TestHandlerCaptures(t *testing.T) {
	ring := NewRing(10)
	logger := slog.New(NewHandler(slog.NewTextHandler(io.Discard, nil), ring))

	logger.Info("hello", "key", "value")
	logger.Warn("careful")

	got := ring.Tail(slog.LevelDebug, time.Time{}, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Message != "hello" || got[0].Attrs["key"] != "value" {
		t.Fatalf("entry 0: %+v", got[0])
	}
	if got[1].Level != slog.LevelWarn {
		t.Fatalf("entry 1 level: %v", got[1].Level)
	}
}

func TestHandlerBoundAttrsAndGroups(t *testing.T) {
	ring := NewRing(10)
	logger := slog.New(NewHandler(slog.NewTextHandler(io.Discard, nil), ring))

	logger.With("component", "sweep").WithGroup("db").Info("msg", "rows", 3)

	got := ring.Tail(slog.LevelDebug, time.Time{}, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].Attrs["component"] != "sweep" {
		t.Fatalf("bound attr missing: %v", got[0].Attrs)
	}
	if got[0].Attrs["db.rows"] != int64(3) {
		t.Fatalf("grouped attr: %v", got[0].Attrs)
	}
}

func TestHandlerCapturesBelowInnerLevel(t *testing.T) {
	ring := NewRing(10)
	inner := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn})
	h := NewHandler(inner, ring)
	logger := slog.New(h)

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("handler must accept all levels")
	}

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")

	if got := ring.Tail(slog.LevelDebug, time.Time{}, 0); len(got) != 3 {
		t.Fatalf("expected all 3 captured, got %d", len(got))
	}
}

func TestHandlerFlattensErrors(t *testing.T) {
	ring := NewRing(10)
	logger := slog.New(NewHandler(slog.NewTextHandler(io.Discard, nil), ring))

	logger.Error("boom", "error", errors.New("disk full"))

	got := ring.Tail(slog.LevelError, time.Time{}, 0)
	if len(got) != 1 || got[0].Attrs["error"] != "disk full" {
		t.Fatalf("error attr not flattened: %+v", got)
	}
}
