package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadServer_Defaults(t *testing.T) {
	cfg, err := LoadServerFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath != "./lab_inventory.db" {
		t.Errorf("DB_PATH default: got %q, want ./lab_inventory.db", cfg.DBPath)
	}
	if cfg.Port != "8080" {
		t.Errorf("PORT default: got %q, want 8080", cfg.Port)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("ACCESS_TOKEN_TTL default: got %s, want 15m", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 168*time.Hour {
		t.Errorf("REFRESH_TOKEN_TTL default: got %s, want 168h", cfg.RefreshTokenTTL)
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BCRYPT_COST default: got %d, want 10", cfg.BcryptCost)
	}
}

func TestLoadServer_CustomValues(t *testing.T) {
	cfg, err := LoadServerFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"DB_PATH":           "/data/inv.db",
		"PORT":              "9090",
		"ACCESS_TOKEN_TTL":  "5m",
		"REFRESH_TOKEN_TTL": "1h",
		"BCRYPT_COST":       "4",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath != "/data/inv.db" {
		t.Errorf("DBPath: got %q", cfg.DBPath)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port: got %q", cfg.Port)
	}
	if cfg.AccessTokenTTL != 5*time.Minute || cfg.RefreshTokenTTL != time.Hour {
		t.Errorf("TTLs: got %s / %s", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	if cfg.BcryptCost != 4 {
		t.Errorf("BcryptCost: got %d", cfg.BcryptCost)
	}
}

func TestLoadServer_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric cost", map[string]string{"BCRYPT_COST": "lots"}},
		{"cost too low", map[string]string{"BCRYPT_COST": "1"}},
		{"cost too high", map[string]string{"BCRYPT_COST": "99"}},
		{"zero access ttl", map[string]string{"ACCESS_TOKEN_TTL": "0s"}},
		{"refresh shorter than access", map[string]string{"ACCESS_TOKEN_TTL": "2h", "REFRESH_TOKEN_TTL": "1h"}},
		{"bad duration", map[string]string{"ACCESS_TOKEN_TTL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadServerFrom(context.Background(), envconfig.MapLookuper(tt.env)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestResolveClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		flagEndpoint    string
		flagSession     string
		envEndpoint     string
		envSession      string
		wantEndpoint    string
		wantSessionFile string
	}{
		{
			name:            "uses environment when flags are empty",
			envEndpoint:     "https://env.example",
			envSession:      "/tmp/env.yaml",
			wantEndpoint:    "https://env.example",
			wantSessionFile: "/tmp/env.yaml",
		},
		{
			name:            "flags override environment",
			flagEndpoint:    "https://flag.example",
			flagSession:     "/tmp/flag.yaml",
			envEndpoint:     "https://env.example",
			envSession:      "/tmp/env.yaml",
			wantEndpoint:    "https://flag.example",
			wantSessionFile: "/tmp/flag.yaml",
		},
		{
			name:            "whitespace flags are treated as unset",
			flagEndpoint:    "   ",
			flagSession:     "\t",
			envEndpoint:     "https://env.example",
			envSession:      "/tmp/env.yaml",
			wantEndpoint:    "https://env.example",
			wantSessionFile: "/tmp/env.yaml",
		},
		{
			name:            "strips trailing slash from endpoint",
			flagEndpoint:    " https://flag.example/ ",
			wantEndpoint:    "https://flag.example",
			wantSessionFile: "",
		},
		{
			name: "returns empty values when both sources missing",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gotEndpoint, gotSession := ResolveClient(tt.flagEndpoint, tt.flagSession, tt.envEndpoint, tt.envSession)
			if gotEndpoint != tt.wantEndpoint {
				t.Fatalf("endpoint mismatch: got %q want %q", gotEndpoint, tt.wantEndpoint)
			}
			if gotSession != tt.wantSessionFile {
				t.Fatalf("session file mismatch: got %q want %q", gotSession, tt.wantSessionFile)
			}
		})
	}
}
