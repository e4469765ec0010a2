package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config is the top-level nsbot configuration. A loaded Config is an
// immutable snapshot; edits to the file take effect only through an
// explicit Manager.Reload.
type Config struct {
	Discord DiscordConfig `json:"discord"`
	Data    DataConfig    `json:"data"`
	Tickets TicketsConfig `json:"tickets"`
	Orders  OrdersConfig  `json:"orders"`
	Market  *MarketConfig `json:"market,omitempty"`
	API     APIConfig     `json:"api"`
}

// DiscordConfig holds bot credentials and the home guild.
type DiscordConfig struct {
	Token   string `json:"token"`
	AppID   string `json:"app_id"`
	GuildID string `json:"guild_id"`
}

// DataConfig holds filesystem settings.
type DataConfig struct {
	Dir string `json:"dir"`
}

// TicketType is one selectable ticket category on the dashboard.
type TicketType struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	StaffRoleID string `json:"staff_role_id,omitempty"` // falls back to tickets.fallback_staff_role_id
}

// TicketsConfig holds dashboard/ticket settings.
type TicketsConfig struct {
	CategoryID          string       `json:"category_id"`
	LogChannelID        string       `json:"log_channel_id"`
	FallbackStaffRoleID string       `json:"fallback_staff_role_id"`
	NameFormat          string       `json:"name_format,omitempty"` // placeholders: {type}, {user}
	Types               []TicketType `json:"types"`
}

// OrderType is one selectable order category on the order hub.
type OrderType struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	StaffRoleID string `json:"staff_role_id,omitempty"`
}

// PayMethod is one selectable payment method for orders.
type PayMethod struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// OrdersConfig holds order-hub settings.
type OrdersConfig struct {
	CategoryID          string      `json:"category_id"`
	LogChannelID        string      `json:"log_channel_id"`
	FallbackStaffRoleID string      `json:"fallback_staff_role_id"`
	NameFormat          string      `json:"name_format,omitempty"`
	Types               []OrderType `json:"types"`
	PayMethods          []PayMethod `json:"pay_methods"`
}

// MarketConfig holds marketplace purchase-polling settings.
type MarketConfig struct {
	BaseURL         string `json:"base_url"`
	APIKey          string `json:"api_key"`
	ShopID          string `json:"shop_id"`
	NotifyChannelID string `json:"notify_channel_id"`
	Schedule        string `json:"schedule,omitempty"` // cron expression, default @every 2m
}

// APIConfig holds ops API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a minimal config from environment variables with
// NSBOT_ prefix. Ticket and order types cannot be expressed in env form;
// this mode exists for smoke tests and the ops API only.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Discord: DiscordConfig{
			Token:   os.Getenv("NSBOT_DISCORD_TOKEN"),
			AppID:   os.Getenv("NSBOT_DISCORD_APP_ID"),
			GuildID: os.Getenv("NSBOT_DISCORD_GUILD_ID"),
		},
		Data: DataConfig{
			Dir: getenv("NSBOT_DATA_DIR", "/data"),
		},
		Tickets: TicketsConfig{
			CategoryID:          os.Getenv("NSBOT_TICKET_CATEGORY_ID"),
			LogChannelID:        os.Getenv("NSBOT_TICKET_LOG_CHANNEL_ID"),
			FallbackStaffRoleID: os.Getenv("NSBOT_STAFF_ROLE_ID"),
		},
		Orders: OrdersConfig{
			CategoryID:          os.Getenv("NSBOT_ORDER_CATEGORY_ID"),
			LogChannelID:        os.Getenv("NSBOT_ORDER_LOG_CHANNEL_ID"),
			FallbackStaffRoleID: os.Getenv("NSBOT_STAFF_ROLE_ID"),
		},
		API: APIConfig{
			Host: getenv("NSBOT_API_HOST", "0.0.0.0"),
			Port: getenvInt("NSBOT_API_PORT", 8080),
			Key:  os.Getenv("NSBOT_API_KEY"),
		},
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Tickets.NameFormat == "" {
		cfg.Tickets.NameFormat = "ticket-{type}-{user}"
	}
	if cfg.Orders.NameFormat == "" {
		cfg.Orders.NameFormat = "order-{type}-{user}"
	}
	if cfg.Market != nil && cfg.Market.Schedule == "" {
		cfg.Market.Schedule = "@every 2m"
	}
	if cfg.API.Host == "" {
		cfg.API.Host = "0.0.0.0"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Discord.Token == "" {
		errs = append(errs, "discord.token is required")
	}
	if c.Discord.GuildID == "" {
		errs = append(errs, "discord.guild_id is required")
	}
	if c.Data.Dir == "" {
		errs = append(errs, "data.dir is required")
	}

	for i, tt := range c.Tickets.Types {
		if tt.Key == "" {
			errs = append(errs, fmt.Sprintf("tickets.types[%d].key is required", i))
		}
		if tt.Label == "" {
			errs = append(errs, fmt.Sprintf("tickets.types[%d].label is required", i))
		}
	}
	if len(c.Tickets.Types) > 0 && c.Tickets.CategoryID == "" {
		errs = append(errs, "tickets.category_id is required when ticket types are configured")
	}

	for i, ot := range c.Orders.Types {
		if ot.Key == "" {
			errs = append(errs, fmt.Sprintf("orders.types[%d].key is required", i))
		}
	}
	if len(c.Orders.Types) > 0 && len(c.Orders.PayMethods) == 0 {
		errs = append(errs, "orders.pay_methods is required when order types are configured")
	}

	if c.Market != nil {
		if c.Market.BaseURL == "" {
			errs = append(errs, "market.base_url is required")
		}
		if c.Market.NotifyChannelID == "" {
			errs = append(errs, "market.notify_channel_id is required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// TicketType returns the configured ticket type for a key.
func (c *Config) TicketType(key string) (TicketType, bool) {
	for _, tt := range c.Tickets.Types {
		if tt.Key == key {
			return tt, true
		}
	}
	return TicketType{}, false
}

// OrderType returns the configured order type for a key.
func (c *Config) OrderType(key string) (OrderType, bool) {
	for _, ot := range c.Orders.Types {
		if ot.Key == key {
			return ot, true
		}
	}
	return OrderType{}, false
}

// PayMethod returns the configured payment method for a key.
func (c *Config) PayMethod(key string) (PayMethod, bool) {
	for _, pm := range c.Orders.PayMethods {
		if pm.Key == key {
			return pm, true
		}
	}
	return PayMethod{}, false
}

// StaffRoleIDs returns every role id that marks a member as staff.
func (c *Config) StaffRoleIDs() []string {
	seen := make(map[string]bool)
	var roles []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			roles = append(roles, id)
		}
	}
	add(c.Tickets.FallbackStaffRoleID)
	add(c.Orders.FallbackStaffRoleID)
	for _, tt := range c.Tickets.Types {
		add(tt.StaffRoleID)
	}
	for _, ot := range c.Orders.Types {
		add(ot.StaffRoleID)
	}
	return roles
}

// Manager hands out the current config snapshot and reloads it on an
// explicit trigger. Operations read a snapshot once at their start, so a
// reload never changes a transition mid-flight.
type Manager struct {
	mu   sync.RWMutex
	path string
	cur  *Config
}

// NewManager loads the initial snapshot from path.
func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, cur: cfg}, nil
}

// NewStaticManager wraps an already-built config; Reload is a no-op.
// Used for env-only configurations and tests.
func NewStaticManager(cfg *Config) *Manager {
	return &Manager{cur: cfg}
}

// Current returns the active snapshot.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Reload re-reads the file and swaps in the new snapshot. On error the
// previous snapshot stays active.
func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Current(), nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cur = cfg
	m.mu.Unlock()
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
