// Package market polls the marketplace REST API for new purchases and posts
// a notification for each. Retries live here, not in the lifecycle core: the
// only policy is a hard cooldown when the marketplace rate-limits us.
package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nordshop/nsbot/internal/notify"
	"github.com/nordshop/nsbot/internal/platform"
)

// rateLimitCooldown is how long polling pauses after an HTTP 429.
const rateLimitCooldown = 10 * time.Minute

// Purchase is one marketplace purchase event.
type Purchase struct {
	ID        string  `json:"id"`
	Product   string  `json:"product_title"`
	Buyer     string  `json:"buyer_name"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	CreatedAt string  `json:"created_at"`
}

// Poller fetches purchases and announces the new ones.
type Poller struct {
	client        *http.Client
	baseURL       string
	apiKey        string
	shopID        string
	notifyChannel string
	sink          *notify.Sink
	logger        *slog.Logger

	mu            sync.Mutex
	lastSeen      string
	primed        bool
	cooldownUntil time.Time
}

// Option configures a Poller.
type Option func(*Poller)

// WithBaseURL overrides the marketplace API base URL.
func WithBaseURL(url string) Option {
	return func(p *Poller) { p.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Poller) { p.client = c }
}

// New creates a poller that posts notifications to notifyChannel.
func New(apiKey, shopID, notifyChannel string, sink *notify.Sink, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		client:        &http.Client{Timeout: 30 * time.Second},
		baseURL:       "https://api.shoppy.gg",
		apiKey:        apiKey,
		shopID:        shopID,
		notifyChannel: notifyChannel,
		sink:          sink,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll fetches the recent purchase list once and announces anything newer
// than the last seen event. The first successful poll only primes the cursor
// so a restart does not re-announce history. Safe to call from a cron job;
// errors are logged, never returned.
func (p *Poller) Poll() {
	p.mu.Lock()
	if time.Now().Before(p.cooldownUntil) {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	purchases, err := p.fetch()
	if err != nil {
		if errors.Is(err, errRateLimited) {
			p.mu.Lock()
			p.cooldownUntil = time.Now().Add(rateLimitCooldown)
			p.mu.Unlock()
			p.logger.Warn("marketplace rate limited, pausing polls", "cooldown", rateLimitCooldown)
			return
		}
		p.logger.Error("marketplace poll failed", "error", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.primed {
		p.primed = true
		if len(purchases) > 0 {
			p.lastSeen = purchases[0].ID
		}
		p.logger.Info("marketplace cursor primed", "last_seen", p.lastSeen)
		return
	}

	// Newest first; everything before the cursor is new.
	var fresh []Purchase
	for _, pu := range purchases {
		if pu.ID == p.lastSeen {
			break
		}
		fresh = append(fresh, pu)
	}
	if len(fresh) == 0 {
		return
	}
	p.lastSeen = purchases[0].ID

	// Announce oldest first so the channel reads chronologically.
	for i := len(fresh) - 1; i >= 0; i-- {
		pu := fresh[i]
		p.sink.LogEvent(p.notifyChannel, platform.Outbound{
			Content: fmt.Sprintf("New purchase: **%s** by %s (%.2f %s)",
				pu.Product, pu.Buyer, pu.Price, pu.Currency),
		})
		p.logger.Info("purchase announced", "purchase", pu.ID, "product", pu.Product)
	}
}

var errRateLimited = errors.New("market: rate limited")

type purchaseList struct {
	Purchases []Purchase `json:"purchases"`
}

// fetch returns the shop's recent purchases, newest first.
func (p *Poller) fetch() ([]Purchase, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/v1/shops/%s/purchases", p.baseURL, p.shopID), nil)
	if err != nil {
		return nil, fmt.Errorf("market: create request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, errRateLimited
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("market: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market: api error (status %d): %s", resp.StatusCode, string(body))
	}

	var list purchaseList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("market: unmarshal response: %w", err)
	}
	return list.Purchases, nil
}
