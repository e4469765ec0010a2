package market

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nordshop/nsbot/internal/notify"
	"github.com/nordshop/nsbot/internal/platform"
)

// sendRecorder stubs the one platform call the poller exercises.
type sendRecorder struct {
	platform.Client
	sent []platform.Outbound
}

func (r *sendRecorder) SendMessage(channelID string, msg platform.Outbound) (string, error) {
	r.sent = append(r.sent, msg)
	return fmt.Sprintf("msg-%d", len(r.sent)), nil
}

type fakeMarket struct {
	purchases []Purchase
	status    int
	requests  int
}

func (m *fakeMarket) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.requests++
		if r.Header.Get("Authorization") != "test-key" {
			t.Error("missing Authorization header")
		}
		if !strings.HasSuffix(r.URL.Path, "/shops/shop-1/purchases") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if m.status != 0 {
			w.WriteHeader(m.status)
			return
		}
		json.NewEncoder(w).Encode(purchaseList{Purchases: m.purchases})
	}
}

func newTestPoller(t *testing.T, m *fakeMarket) (*Poller, *sendRecorder) {
	t.Helper()
	srv := httptest.NewServer(m.handler(t))
	t.Cleanup(srv.Close)

	rec := &sendRecorder{}
	p := New("test-key", "shop-1", "chan-market", notify.New(rec, nil), nil,
		WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	return p, rec
}

func TestPollPrimesThenAnnounces(t *testing.T) {
	m := &fakeMarket{purchases: []Purchase{
		{ID: "p-2", Product: "Logo Pack", Buyer: "dana", Price: 25, Currency: "USD"},
		{ID: "p-1", Product: "Banner", Buyer: "kim", Price: 10, Currency: "USD"},
	}}
	p, rec := newTestPoller(t, m)

	// First poll primes the cursor without announcing history.
	p.Poll()
	if len(rec.sent) != 0 {
		t.Fatalf("priming poll announced %d purchases", len(rec.sent))
	}

	// Two new purchases arrive, newest first.
	m.purchases = append([]Purchase{
		{ID: "p-4", Product: "Emotes", Buyer: "lee", Price: 40, Currency: "USD"},
		{ID: "p-3", Product: "Overlay", Buyer: "sam", Price: 15, Currency: "USD"},
	}, m.purchases...)

	p.Poll()
	if len(rec.sent) != 2 {
		t.Fatalf("expected 2 announcements, got %d", len(rec.sent))
	}
	// Oldest first.
	if !strings.Contains(rec.sent[0].Content, "Overlay") || !strings.Contains(rec.sent[1].Content, "Emotes") {
		t.Errorf("wrong order: %q, %q", rec.sent[0].Content, rec.sent[1].Content)
	}

	// Nothing new: no announcements.
	p.Poll()
	if len(rec.sent) != 2 {
		t.Errorf("duplicate announcements: %d", len(rec.sent))
	}
}

func TestPollRateLimitCooldown(t *testing.T) {
	m := &fakeMarket{status: http.StatusTooManyRequests}
	p, _ := newTestPoller(t, m)

	p.Poll()
	if m.requests != 1 {
		t.Fatalf("expected 1 request, got %d", m.requests)
	}

	// While cooling down no requests go out.
	p.Poll()
	if m.requests != 1 {
		t.Fatalf("poll during cooldown reached the API: %d requests", m.requests)
	}

	// After the cooldown expires polling resumes.
	p.mu.Lock()
	p.cooldownUntil = time.Now().Add(-time.Second)
	p.mu.Unlock()
	m.status = 0
	p.Poll()
	if m.requests != 2 {
		t.Errorf("poll after cooldown did not resume: %d requests", m.requests)
	}
}

func TestPollServerErrorLeavesCursor(t *testing.T) {
	m := &fakeMarket{purchases: []Purchase{{ID: "p-1", Product: "Banner", Buyer: "kim"}}}
	p, rec := newTestPoller(t, m)

	p.Poll() // prime
	m.status = http.StatusInternalServerError
	p.Poll() // logged, swallowed
	m.status = 0
	m.purchases = append([]Purchase{{ID: "p-2", Product: "Logo", Buyer: "dana"}}, m.purchases...)
	p.Poll()

	if len(rec.sent) != 1 || !strings.Contains(rec.sent[0].Content, "Logo") {
		t.Fatalf("expected the new purchase after recovery, got %+v", rec.sent)
	}
}
