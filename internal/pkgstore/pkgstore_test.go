package pkgstore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "pkg.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPackageCRUD(t *testing.T) {
	s := newTestStore(t)

	p := &Package{Key: "emote-pack", Title: "Emote Pack", Description: "10 custom emotes", Price: 40, Currency: "USD"}
	if err := s.Create(p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(p); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("duplicate create: %v", err)
	}

	got, err := s.Get("emote-pack")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Emote Pack" || got.Price != 40 {
		t.Errorf("get: %+v", got)
	}

	got.Price = 45
	if err := s.Update(got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.Get("emote-pack")
	if got.Price != 45 {
		t.Errorf("update not applied: %v", got.Price)
	}

	s.Create(&Package{Key: "banner", Title: "Banner"})
	all, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].Key != "banner" {
		t.Errorf("list order: %+v", all)
	}

	if err := s.Delete("banner"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete("banner"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: %v", err)
	}
	if _, err := s.Get("banner"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: %v", err)
	}
}

func TestSendSessions(t *testing.T) {
	s := newTestStore(t)
	s.Create(&Package{Key: "emote-pack", Title: "Emote Pack"})

	if _, err := s.StartSession("missing", "u1", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("session for missing package: %v", err)
	}

	sess, err := s.StartSession("emote-pack", "u1", "c1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.ID == "" || sess.CompletedAt != nil {
		t.Errorf("fresh session: %+v", sess)
	}

	if err := s.CompleteSession(sess.ID, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := s.StartSession("emote-pack", "u1", "c2"); err != nil {
		t.Fatalf("second start: %v", err)
	}

	got, err := s.SessionsFor("u1")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(got))
	}
	var completed, open int
	for _, se := range got {
		if se.CompletedAt != nil {
			completed++
		} else {
			open++
		}
	}
	if completed != 1 || open != 1 {
		t.Errorf("completed=%d open=%d", completed, open)
	}
}
