package config

import (
	"testing"

	"github.com/rxops/orderlens/internal/database"
)

func validConfig() Config {
	return Config{
		Server:        "sql.example.net",
		Driver:        "sqlserver",
		IntegrationDB: "integration",
		OrderDB:       "orders",
		RunMode:       "local",
		Port:          8080,
	}
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	missing := validConfig()
	missing.Server = ""
	if err := missing.Validate(); err == nil {
		t.Fatal("expected error for missing server")
	}

	badBind := validConfig()
	badBind.Bind = "not-an-ip"
	if err := badBind.Validate(); err == nil {
		t.Fatal("expected error for bad bind address")
	}
}

func TestTargetsShareServerAndMode(t *testing.T) {
	cfg := validConfig()

	integ := cfg.IntegrationConfig()
	orders := cfg.OrderConfig()

	if integ.Server != orders.Server || integ.Server != "sql.example.net" {
		t.Fatalf("expected shared server, got %q and %q", integ.Server, orders.Server)
	}
	if integ.Database != "integration" || orders.Database != "orders" {
		t.Fatalf("unexpected database names: %q, %q", integ.Database, orders.Database)
	}
	if integ.RunMode != database.RunModeLocal {
		t.Fatalf("expected local run mode, got %q", integ.RunMode)
	}

	cfg.RunMode = "platform"
	if cfg.IntegrationConfig().RunMode != database.RunModePlatform {
		t.Fatal("expected platform run mode")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("ORDERLENS_SQL_SERVER", "env.example.net")
	t.Setenv("PORT", "9090")

	cfg := Config{}
	cfg.ApplyEnv()

	if cfg.Server != "env.example.net" {
		t.Fatalf("expected server from env, got %q", cfg.Server)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected port from env, got %d", cfg.Port)
	}

	cfg = Config{Server: "flag.example.net"}
	cfg.ApplyEnv()
	if cfg.Server != "flag.example.net" {
		t.Fatal("flags must win over environment")
	}
}
