package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process level configuration. Every field is populated from
// the environment; defaults live in the struct tags.
type Server struct {
	Addr           string        `env:"IMAGEREF_ADDR" envDefault:":3000"`
	Environment    string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	// TrustedProxies lists CIDRs whose X-Forwarded-For headers are honored.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	Ledger  Ledger
	Storage Storage
	Mirror  Mirror
	Kafka   Kafka
}

// Ledger locates the registration CSV.
type Ledger struct {
	Path string `env:"LEDGER_PATH" envDefault:"data/image-ref-registrations.csv"`
}

// Storage controls where uploads land.
type Storage struct {
	// Root holds one directory per age category.
	Root string `env:"UPLOAD_ROOT" envDefault:"public/uploads"`
	// IncomingDir spools multipart uploads before they are relocated. It
	// must be on the same filesystem as Root and should not be under it.
	IncomingDir    string `env:"INCOMING_DIR" envDefault:"data/incoming"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"4194304"`
	// PublicPrefix is the URL prefix stored files are served under.
	PublicPrefix string `env:"UPLOAD_PUBLIC_PREFIX" envDefault:"/uploads"`
}

// Mirror configures best-effort replication of stored files.
type Mirror struct {
	// Backend is one of "", "http" or "dir". Empty disables mirroring.
	Backend     string        `env:"MIRROR_BACKEND"`
	URL         string        `env:"MIRROR_URL"`
	Token       string        `env:"MIRROR_TOKEN"`
	Dir         string        `env:"MIRROR_DIR"`
	Workers     int           `env:"MIRROR_WORKERS" envDefault:"2"`
	QueueSize   int           `env:"MIRROR_QUEUE_SIZE" envDefault:"64"`
	MaxAttempts int           `env:"MIRROR_MAX_ATTEMPTS" envDefault:"3"`
	Timeout     time.Duration `env:"MIRROR_TIMEOUT" envDefault:"30s"`
}

// Kafka configures the optional audit event sink.
type Kafka struct {
	Brokers    string `env:"KAFKA_BROKERS"`
	AuditTopic string `env:"AUDIT_TOPIC" envDefault:"imageref.submissions"`
}

// Enabled reports whether mirroring has a backend.
func (m Mirror) Enabled() bool {
	return m.Backend != ""
}

// Validate rejects combinations the process cannot start with.
func (c Server) Validate() error {
	switch c.Mirror.Backend {
	case "":
	case "http":
		if c.Mirror.URL == "" {
			return fmt.Errorf("MIRROR_URL is required for the http mirror backend")
		}
	case "dir":
		if c.Mirror.Dir == "" {
			return fmt.Errorf("MIRROR_DIR is required for the dir mirror backend")
		}
	default:
		return fmt.Errorf("unknown MIRROR_BACKEND %q", c.Mirror.Backend)
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("LEDGER_PATH must not be empty")
	}
	if _, err := c.TrustedPrefixes(); err != nil {
		return err
	}
	return nil
}

// TrustedPrefixes parses TrustedProxies. A bare address is treated as a
// single-host prefix.
func (c Server) TrustedPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", raw, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", raw, err)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// LedgerFromEnv parses only the ledger settings, for tools that never serve
// HTTP.
func LedgerFromEnv() (Ledger, error) {
	var l Ledger
	if err := env.Parse(&l); err != nil {
		return Ledger{}, fmt.Errorf("parse env: %w", err)
	}
	return l, nil
}
