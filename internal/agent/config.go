package agent

import (
	"fmt"
	"time"
)

// Credentials is one platform's stored credential blob. Password holds either
// plaintext or a vault ciphertext token depending on whether a cipher was
// attached when it was stored.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// Config is an agent's configuration snapshot. It is immutable by convention:
// only the owning Record mutates it, refreshing UpdatedAt on every change.
// Timestamps are RFC 3339 strings so the persisted document is stable.
type Config struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// Chat account and the group identifiers it monitors.
	ChatAccount string   `json:"chat_account"`
	Groups      []string `json:"groups"`

	// Target platforms and their stored credentials.
	Platforms map[string]Credentials `json:"platforms"`

	// Posting behavior.
	AutoCaption    bool     `json:"auto_caption"`
	DefaultCaption string   `json:"default_caption"`
	Hashtags       []string `json:"hashtags"`

	CheckIntervalMinutes int `json:"check_interval_minutes"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// NewConfig creates a validated Config. Callers must supply the collection
// fields explicitly, even when empty; nil slices/maps are normalized so two
// configs built from equivalent inputs serialize identically.
func NewConfig(name, description, chatAccount string, groups []string, hashtags []string, now time.Time) (*Config, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []string{}
	}
	if hashtags == nil {
		hashtags = []string{}
	}
	ts := now.UTC().Format(time.RFC3339)
	return &Config{
		Name:                 name,
		Description:          description,
		ChatAccount:          chatAccount,
		Groups:               groups,
		Platforms:            map[string]Credentials{},
		AutoCaption:          true,
		Hashtags:             hashtags,
		CheckIntervalMinutes: DefaultCheckIntervalMinutes,
		CreatedAt:            ts,
		UpdatedAt:            ts,
	}, nil
}

// Validate re-checks the invariants NewConfig establishes. Used when a config
// arrives from disk rather than the constructor.
func (c *Config) Validate() error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	for platform := range c.Platforms {
		if err := ValidatePlatform(platform); err != nil {
			return err
		}
	}
	if c.CheckIntervalMinutes <= 0 {
		return fmt.Errorf("check interval must be positive, got %d", c.CheckIntervalMinutes)
	}
	return nil
}

// Touch refreshes UpdatedAt.
func (c *Config) Touch(now time.Time) {
	c.UpdatedAt = now.UTC().Format(time.RFC3339)
}

// CheckInterval returns the poll interval as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMinutes) * time.Minute
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Groups = append([]string{}, c.Groups...)
	cp.Hashtags = append([]string{}, c.Hashtags...)
	cp.Platforms = make(map[string]Credentials, len(c.Platforms))
	for k, v := range c.Platforms {
		cp.Platforms[k] = v
	}
	return &cp
}

// DefaultCheckIntervalMinutes is the poll interval for new agents.
const DefaultCheckIntervalMinutes = 5
