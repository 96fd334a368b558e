package config_test

import (
	"testing"

	"github.com/uwamba/edms/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DMS_STORE", "")
	t.Setenv("OXIDB_PORT", "")
	cfg := config.Load()
	if cfg.Store != config.StoreOxiDB || cfg.OxiDBPort != 4444 || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DMS_STORE", "SQLite")
	t.Setenv("DMS_SQLITE_PATH", ":memory:")
	t.Setenv("OXIDB_PORT", "not-a-port")
	t.Setenv("DMS_POOL_SIZE", "8")
	cfg := config.Load()
	if cfg.Store != config.StoreSQLite || cfg.SQLitePath != ":memory:" {
		t.Fatalf("store = %s %s", cfg.Store, cfg.SQLitePath)
	}
	if cfg.OxiDBPort != 4444 || cfg.PoolSize != 8 {
		t.Fatalf("port = %d, pool = %d", cfg.OxiDBPort, cfg.PoolSize)
	}
}

func TestUnknownStoreFallsBack(t *testing.T) {
	t.Setenv("DMS_STORE", "mongo")
	if cfg := config.Load(); cfg.Store != config.StoreOxiDB {
		t.Fatalf("store = %s", cfg.Store)
	}
}
