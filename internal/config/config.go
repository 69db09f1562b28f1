package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	DefaultHistoryLimit     = 50
	DefaultDatabaseView     = 100
	DefaultArchiveMaxRows   = 5000
	DefaultArchiveMaxAge    = 30 * 24 * time.Hour
	DefaultPruneInterval    = time.Hour
	DefaultAITimeout        = 20 * time.Second
	DefaultRateLimit        = 5
	DefaultRateBurst        = 10
	DefaultOperatorTrigger  = "/admin@"
	DefaultStaticDir        = "./public"
	DefaultTheme            = "default"
	DefaultTitle            = "Classroom"
	defaultTokenExpiration  = 24 * time.Hour
	minimumSigningKeyLength = 16
)

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string
	StaticDir      string

	// AuthRequired gates chat behind /login or /register. When false every
	// session may chat under its guest name.
	AuthRequired bool
	// OperatorTrigger is the literal that grants the operator bit. Empty
	// disables it; persisted operator accounts still work.
	OperatorTrigger string

	AIKey     string
	AITimeout time.Duration

	HistoryLimit   int
	DatabaseView   int
	ArchiveMaxRows int
	ArchiveMaxAge  time.Duration
	PruneInterval  time.Duration
	TokenExp       time.Duration

	// RateLimit is the sustained number of envelopes per second a session may
	// send, with bursts up to RateBurst.
	RateLimit float64
	RateBurst int

	DefaultTheme string
	DefaultTitle string
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) < minimumSigningKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes", minimumSigningKeyLength)
	}
	return key, nil
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		DatabaseDSN:     databaseDSN,
		ServerAddr:      serverAddr,
		SigningKey:      signingKey,
		AllowedOrigins:  allowedOrigins,
		StaticDir:       DefaultStaticDir,
		AuthRequired:    true,
		OperatorTrigger: DefaultOperatorTrigger,
		AITimeout:       DefaultAITimeout,
		HistoryLimit:    DefaultHistoryLimit,
		DatabaseView:    DefaultDatabaseView,
		ArchiveMaxRows:  DefaultArchiveMaxRows,
		ArchiveMaxAge:   DefaultArchiveMaxAge,
		PruneInterval:   DefaultPruneInterval,
		TokenExp:        defaultTokenExpiration,
		RateLimit:       DefaultRateLimit,
		RateBurst:       DefaultRateBurst,
		DefaultTheme:    DefaultTheme,
		DefaultTitle:    DefaultTitle,
	}, nil
}

// Validate checks the tunables after callers have overridden defaults.
func (c *Config) Validate() error {
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive")
	}
	if c.DatabaseView <= 0 {
		return fmt.Errorf("database view limit must be positive")
	}
	if c.ArchiveMaxAge <= 0 {
		return fmt.Errorf("archive max age must be positive")
	}
	if c.PruneInterval <= 0 {
		return fmt.Errorf("prune interval must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("rate limit and burst must be positive")
	}
	return nil
}
