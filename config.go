package mailmend

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/scy"
	"gopkg.in/yaml.v3"

	"github.com/mailmend/mailmend/service/orchestrator"
	"github.com/mailmend/mailmend/service/watcher"
)

// Duration wraps time.Duration so YAML configs can say "5m" or "90s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	value, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(value)
	return nil
}

// Config is the agent configuration, usually loaded from a YAML file.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	Approval ApprovalConfig `yaml:"approval"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// StorageConfig locates durable state. With an empty BaseURL everything runs
// in memory.
type StorageConfig struct {
	// BaseURL is an afs URL (file path, mem://, s3://...) under which
	// artifacts, proposals and queues are kept.
	BaseURL string `yaml:"baseURL"`
}

// TelegramConfig configures the messaging channel.
type TelegramConfig struct {
	// Token is the bot token in plain text. Prefer TokenURL.
	Token string `yaml:"token"`
	// TokenURL is a scy secret resource holding the bot token, e.g.
	// "file:///etc/mailmend/telegram.enc".
	TokenURL string `yaml:"tokenURL"`
	// TokenKey is the scy encryption key, e.g. "blowfish://default".
	TokenKey string `yaml:"tokenKey"`
	// ChatID is the chat all messages go to.
	ChatID int64 `yaml:"chatID"`
}

// ResolveToken returns the bot token, revealing it from the scy secret
// resource when one is configured.
func (c *TelegramConfig) ResolveToken(ctx context.Context) (string, error) {
	if c.TokenURL == "" {
		return c.Token, nil
	}
	secret, err := scy.New().Load(ctx, scy.NewResource(nil, c.TokenURL, c.TokenKey))
	if err != nil {
		return "", fmt.Errorf("failed to load telegram token from %s: %w", c.TokenURL, err)
	}
	return secret.String(), nil
}

// ApprovalConfig holds approval timing as YAML durations.
type ApprovalConfig struct {
	Timeout       Duration `yaml:"timeout"`
	SweepInterval Duration `yaml:"sweepInterval"`
}

func (c ApprovalConfig) orchestrator() orchestrator.Config {
	config := orchestrator.DefaultConfig()
	if c.Timeout > 0 {
		config.ApprovalTimeout = time.Duration(c.Timeout)
	}
	if c.SweepInterval > 0 {
		config.SweepInterval = time.Duration(c.SweepInterval)
	}
	return config
}

// WatcherConfig holds the mailbox poll cadence.
type WatcherConfig struct {
	PollInterval Duration `yaml:"pollInterval"`
}

func (c WatcherConfig) watcher() watcher.Config {
	config := watcher.DefaultConfig()
	if c.PollInterval > 0 {
		config.PollInterval = time.Duration(c.PollInterval)
	}
	return config
}

// TracingConfig enables span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// OutputFile receives stdout-format spans; empty means stdout.
	OutputFile string `yaml:"outputFile"`
}

// DefaultConfig returns a config running fully in memory.
func DefaultConfig() *Config {
	return &Config{}
}

// Validate checks config consistency.
func (c *Config) Validate() error {
	if c.Telegram.Token != "" && c.Telegram.TokenURL != "" {
		return fmt.Errorf("telegram.token and telegram.tokenURL are mutually exclusive")
	}
	if (c.Telegram.Token != "" || c.Telegram.TokenURL != "") && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chatID is required when a token is configured")
	}
	return nil
}

// LoadConfig reads a YAML config from any location viant/afs understands.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", URL, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
