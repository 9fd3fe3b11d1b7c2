// Package config holds the runtime configuration supplied on the command
// line. Nothing here is parsed from a file; the database targets and run
// mode come straight from flags and environment variables.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/rxops/orderlens/internal/database"
)

// Config is the full runtime configuration.
type Config struct {
	// Shared SQL server hostname and driver for both logical databases.
	Server string
	Driver string

	// Logical database names.
	IntegrationDB string
	OrderDB       string

	// RunMode: "local" mints an access token, anything else uses managed
	// identity.
	RunMode string

	// Web server.
	Port int
	Bind string

	// Local state.
	HistoryPath string
	QueryDir    string
	LogFile     string

	// Cron spec for scheduled sweeps; empty disables them.
	Schedule string
}

// ApplyEnv fills unset fields from environment variables, mirroring the
// flag names.
func (c *Config) ApplyEnv() {
	setIfEmpty(&c.Server, "ORDERLENS_SQL_SERVER")
	setIfEmpty(&c.IntegrationDB, "ORDERLENS_INTEGRATION_DB")
	setIfEmpty(&c.OrderDB, "ORDERLENS_ORDER_DB")
	setIfEmpty(&c.RunMode, "ORDERLENS_RUN_MODE")
	if c.Port == 0 {
		if envPort := os.Getenv("PORT"); envPort != "" {
			if port, err := strconv.Atoi(envPort); err == nil {
				c.Port = port
			}
		}
	}
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("--server flag or ORDERLENS_SQL_SERVER is required")
	}
	if c.IntegrationDB == "" || c.OrderDB == "" {
		return fmt.Errorf("both --integration-db and --order-db are required")
	}
	if c.Port == 0 {
		return fmt.Errorf("--port flag or PORT environment variable is required")
	}
	if c.Bind != "" {
		if ip := net.ParseIP(c.Bind); ip == nil {
			return fmt.Errorf("invalid bind address: %s", c.Bind)
		}
	}
	return nil
}

// IntegrationConfig returns the database config for the forecast/site
// database.
func (c *Config) IntegrationConfig() database.Config {
	return c.target(c.IntegrationDB)
}

// OrderConfig returns the database config for the purchase-order database.
func (c *Config) OrderConfig() database.Config {
	return c.target(c.OrderDB)
}

func (c *Config) target(name string) database.Config {
	mode := database.RunModePlatform
	if c.RunMode == string(database.RunModeLocal) {
		mode = database.RunModeLocal
	}
	return database.Config{
		Server:   c.Server,
		Database: name,
		Driver:   c.Driver,
		RunMode:  mode,
	}
}

func setIfEmpty(dst *string, key string) {
	if *dst == "" {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}
