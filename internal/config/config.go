package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"golang.org/x/crypto/bcrypt"
)

// Server is the inventory service configuration, read from the environment.
type Server struct {
	DBPath          string        `env:"DB_PATH, default=./lab_inventory.db"`
	Port            string        `env:"PORT, default=8080"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL, default=15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL, default=168h"`
	BcryptCost      int           `env:"BCRYPT_COST, default=10"`
}

// LoadServer reads Server from the process environment.
func LoadServer(ctx context.Context) (*Server, error) {
	return LoadServerFrom(ctx, envconfig.OsLookuper())
}

// LoadServerFrom reads Server from l and validates it.
func LoadServerFrom(ctx context.Context, l envconfig.Lookuper) (*Server, error) {
	var cfg Server
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL must be positive, got %s", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL < cfg.AccessTokenTTL {
		return nil, fmt.Errorf("REFRESH_TOKEN_TTL (%s) must not be shorter than ACCESS_TOKEN_TTL (%s)",
			cfg.RefreshTokenTTL, cfg.AccessTokenTTL)
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, cfg.BcryptCost)
	}
	return &cfg, nil
}

// ResolveClient applies client configuration precedence where explicit
// flag values override environment values. Empty explicit values are
// treated as unset.
func ResolveClient(flagEndpoint, flagSessionFile, envEndpoint, envSessionFile string) (endpoint, sessionFile string) {
	endpoint = strings.TrimSpace(envEndpoint)
	sessionFile = strings.TrimSpace(envSessionFile)

	if value := strings.TrimSpace(flagEndpoint); value != "" {
		endpoint = value
	}
	if value := strings.TrimSpace(flagSessionFile); value != "" {
		sessionFile = value
	}

	return strings.TrimRight(endpoint, "/"), sessionFile
}
