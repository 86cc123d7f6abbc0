// Package config provides configuration types and loading for linebridge.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Server, Line, DirectLine, Session, Store.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Line       LineConfig       `json:"line"`
	DirectLine DirectLineConfig `json:"directline"`
	Session    SessionConfig    `json:"session"`
	Store      StoreConfig      `json:"store"`
}

// ServerConfig groups HTTP listener settings.
type ServerConfig struct {
	ListenAddr string `json:"listenAddr" envconfig:"LISTEN_ADDR"`
}

// LineConfig configures the LINE platform side: webhook verification and
// the reply API.
type LineConfig struct {
	AccessToken   string `json:"accessToken" envconfig:"ACCESS_TOKEN"`
	ChannelSecret string `json:"channelSecret" envconfig:"CHANNEL_SECRET"`
	APIBase       string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// DirectLineConfig configures the Direct Line backend side: session
// endpoints, the reply polling budget, and user-facing fallback texts.
type DirectLineConfig struct {
	TokenURL     string        `json:"tokenUrl" envconfig:"TOKEN_URL"`
	BaseURL      string        `json:"baseUrl,omitempty" envconfig:"BASE_URL"`
	HTTPTimeout  time.Duration `json:"httpTimeout,omitempty" envconfig:"HTTP_TIMEOUT"`
	ReplyBudget  time.Duration `json:"replyBudget,omitempty" envconfig:"REPLY_BUDGET"`
	PollInitial  time.Duration `json:"pollInitial,omitempty" envconfig:"POLL_INITIAL"`
	PollMax      time.Duration `json:"pollMax,omitempty" envconfig:"POLL_MAX"`
	FallbackText string        `json:"fallbackText,omitempty" envconfig:"FALLBACK_TEXT"`
	ApologyText  string        `json:"apologyText,omitempty" envconfig:"APOLOGY_TEXT"`
}

// SessionConfig configures per-user session caching.
type SessionConfig struct {
	// TTL bounds how long a cached (token, conversation) pair is reused.
	// Zero disables expiry.
	TTL time.Duration `json:"ttl,omitempty" envconfig:"TTL"`
}

// StoreConfig configures the sqlite exchange log.
type StoreConfig struct {
	Path     string `json:"path,omitempty" envconfig:"PATH"`
	Disabled bool   `json:"disabled,omitempty" envconfig:"DISABLED"`
}

// Defaults. Listen addr and user-facing texts mirror the upstream service.
const (
	DefaultListenAddr     = ":4000"
	DefaultLineAPIBase    = "https://api.line.me"
	DefaultDirectLineBase = "https://directline.botframework.com/v3/directline/conversations"
	DefaultHTTPTimeout    = 20 * time.Second
	DefaultReplyBudget    = 10 * time.Second
	DefaultPollInitial    = 500 * time.Millisecond
	DefaultPollMax        = 4 * time.Second
	DefaultSessionTTL     = 30 * time.Minute
	DefaultFallbackText   = "No response from bot."
	DefaultApologyText    = "Sorry, something went wrong."
)

// DefaultConfig returns a config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{ListenAddr: DefaultListenAddr},
		Line:   LineConfig{APIBase: DefaultLineAPIBase},
		DirectLine: DirectLineConfig{
			BaseURL:      DefaultDirectLineBase,
			HTTPTimeout:  DefaultHTTPTimeout,
			ReplyBudget:  DefaultReplyBudget,
			PollInitial:  DefaultPollInitial,
			PollMax:      DefaultPollMax,
			FallbackText: DefaultFallbackText,
			ApologyText:  DefaultApologyText,
		},
		Session: SessionConfig{TTL: DefaultSessionTTL},
	}
}
