package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "deals")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_NAME", "dealfinder")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("Expected default port 8000, got %s", cfg.Port)
	}
	if cfg.DBPort != "3306" {
		t.Errorf("Expected default DB port 3306, got %s", cfg.DBPort)
	}
	if !reflect.DeepEqual(cfg.DealStoreIDs, []int{1, 7, 11}) {
		t.Errorf("Expected default store ids [1 7 11], got %v", cfg.DealStoreIDs)
	}
	if cfg.DealPageSize != 16 {
		t.Errorf("Expected default page size 16, got %d", cfg.DealPageSize)
	}
	if cfg.UpstreamTimeout != 10*time.Second {
		t.Errorf("Expected default upstream timeout 10s, got %s", cfg.UpstreamTimeout)
	}
	if cfg.FetchBackend != "local" {
		t.Errorf("Expected default fetch backend local, got %s", cfg.FetchBackend)
	}
	if cfg.SyncInterval != 0 {
		t.Errorf("Expected periodic sync disabled by default, got %s", cfg.SyncInterval)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should return an error when required variables are missing")
	}
	for _, key := range []string{"DB_USER", "DB_HOST", "DB_NAME", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("Expected error to mention %s, got %v", key, err)
		}
	}
}

func TestLoad_BcryptCostRange(t *testing.T) {
	for _, v := range []string{"3", "32"} {
		setRequired(t)
		t.Setenv("BCRYPT_COST", v)
		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "BCRYPT_COST") {
			t.Errorf("BCRYPT_COST=%s: err = %v", v, err)
		}
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("DEAL_STORE_IDS", "1, 25")
	t.Setenv("UPSTREAM_BASE_URL", "http://localhost:9999/api/")
	t.Setenv("FETCH_BACKEND", "AMQP")
	t.Setenv("SYNC_INTERVAL", "15m")
	t.Setenv("FETCH_WORKERS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cfg.DealStoreIDs, []int{1, 25}) {
		t.Errorf("Expected store ids [1 25], got %v", cfg.DealStoreIDs)
	}
	if cfg.UpstreamBaseURL != "http://localhost:9999/api" {
		t.Errorf("Expected trailing slash trimmed, got %s", cfg.UpstreamBaseURL)
	}
	if cfg.FetchBackend != "amqp" {
		t.Errorf("Expected amqp backend, got %s", cfg.FetchBackend)
	}
	if cfg.SyncInterval != 15*time.Minute {
		t.Errorf("Expected 15m sync interval, got %s", cfg.SyncInterval)
	}
	if cfg.FetchWorkers != 1 {
		t.Errorf("Expected worker count clamped to 1, got %d", cfg.FetchWorkers)
	}
}

func TestLoad_InvalidTypedValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad ttl", "ACCESS_TOKEN_TTL_MIN", "soon"},
		{"bad timeout", "UPSTREAM_TIMEOUT", "ten seconds"},
		{"bad store list", "DEAL_STORE_IDS", "1,steam"},
		{"bad rps", "UPSTREAM_RPS", "fast"},
		{"bad backend", "FETCH_BACKEND", "kafka"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() should fail for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := Config{DBUser: "u", DBPass: "p", DBHost: "db", DBPort: "3306", DBName: "deals"}
	want := "u:p@tcp(db:3306)/deals?charset=utf8mb4&parseTime=true&loc=UTC"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
	cfg.DBPass = ""
	if got := cfg.DSN(); !strings.HasPrefix(got, "u@tcp(") {
		t.Errorf("DSN() without password = %q", got)
	}
}

func TestDSN_ReportsChangedRows(t *testing.T) {
	cfg := Config{DBUser: "u", DBHost: "db", DBPort: "3306", DBName: "deals"}
	parsed, err := mysql.ParseDSN(cfg.DSN())
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if parsed.ClientFoundRows {
		t.Error("clientFoundRows makes the no-op admin claim look successful")
	}
	if !parsed.ParseTime || parsed.Loc != time.UTC {
		t.Errorf("parseTime=%v loc=%v", parsed.ParseTime, parsed.Loc)
	}
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 {
		t.Errorf("Expected capacity clamped to 1, got %d", cfg.Capacity)
	}
	if cfg.TTL != 10*time.Second {
		t.Errorf("Expected TTL raised to 5 refill intervals, got %s", cfg.TTL)
	}
}
