// Package config loads service settings from PROJGATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	HTTPAddr        string        `env:"PROJGATE_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr        string        `env:"PROJGATE_GRPC_ADDR" envDefault:":9090"`
	PGDSN           string        `env:"PROJGATE_PG_DSN"`
	AutoMigrate     bool          `env:"PROJGATE_AUTO_MIGRATE" envDefault:"true"`
	ShutdownTimeout time.Duration `env:"PROJGATE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxBodyBytes    int64         `env:"PROJGATE_MAX_BODY_BYTES" envDefault:"1048576"`

	// Either both secrets or a keys directory holding access.key and
	// refresh.key must be provided.
	AccessSecret  string `env:"PROJGATE_JWT_SECRET"`
	RefreshSecret string `env:"PROJGATE_JWT_REFRESH_SECRET"`
	KeysDir       string `env:"PROJGATE_KEYS_DIR"`

	AccessTTL  time.Duration `env:"PROJGATE_ACCESS_TTL" envDefault:"1h"`
	RefreshTTL time.Duration `env:"PROJGATE_REFRESH_TTL" envDefault:"2h"`
	BcryptCost int           `env:"PROJGATE_BCRYPT_COST" envDefault:"10"`

	GeneralLimit  int           `env:"PROJGATE_RATE_GENERAL_LIMIT" envDefault:"100"`
	GeneralWindow time.Duration `env:"PROJGATE_RATE_GENERAL_WINDOW" envDefault:"15m"`
	AuthLimit     int           `env:"PROJGATE_RATE_AUTH_LIMIT" envDefault:"5"`
	AuthWindow    time.Duration `env:"PROJGATE_RATE_AUTH_WINDOW" envDefault:"15m"`

	// CIDRs of reverse proxies whose X-Forwarded-For is trusted. Empty
	// means the peer address is always the rate key.
	TrustedProxies []string `env:"PROJGATE_TRUSTED_PROXIES" envSeparator:","`

	BootstrapAdminEmail    string `env:"PROJGATE_BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `env:"PROJGATE_BOOTSTRAP_ADMIN_PASSWORD"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads settings from the given map instead of the process
// environment.
func LoadFrom(environment map[string]string) (Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.AccessSecret = strings.TrimSpace(cfg.AccessSecret)
	cfg.RefreshSecret = strings.TrimSpace(cfg.RefreshSecret)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.KeysDir == "" {
		if c.AccessSecret == "" || c.RefreshSecret == "" {
			errs = append(errs, errors.New("PROJGATE_JWT_SECRET and PROJGATE_JWT_REFRESH_SECRET are required unless PROJGATE_KEYS_DIR is set"))
		} else if c.AccessSecret == c.RefreshSecret {
			errs = append(errs, errors.New("access and refresh secrets must differ"))
		}
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token ttls must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost must be within [%d,%d]", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.GeneralLimit <= 0 || c.AuthLimit <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if c.GeneralWindow <= 0 || c.AuthWindow <= 0 {
		errs = append(errs, errors.New("rate windows must be positive"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max body bytes must be positive"))
	}
	if _, err := c.ProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if (c.BootstrapAdminEmail == "") != (c.BootstrapAdminPassword == "") {
		errs = append(errs, errors.New("bootstrap admin needs both email and password"))
	}
	return errors.Join(errs...)
}

// ProxyPrefixes parses TrustedProxies. A bare address is treated as a
// single-host prefix.
func (c Config) ProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("PROJGATE_TRUSTED_PROXIES: invalid entry %q", raw)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
