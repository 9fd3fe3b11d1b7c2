package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// RunMode selects how a connection authenticates.
type RunMode string

const (
	// RunModeLocal mints an access token locally and attaches it as a
	// driver-level pre-connection attribute. Managed identity is not
	// available outside the platform.
	RunModeLocal RunMode = "local"
	// RunModePlatform relies on the platform's managed identity; the driver
	// attaches the credential itself.
	RunModePlatform RunMode = "platform"
)

// Config describes one logical database target.
type Config struct {
	Server   string
	Database string
	// Driver names the client driver for operators used to picking an ODBC
	// driver, e.g. "ODBC Driver 18 for SQL Server". go-mssqldb implements
	// the TDS protocol itself, so there is nothing to select; the name is
	// recorded in the connect log and kept out of the DSN.
	Driver  string
	RunMode RunMode
}

// DSN builds the connection string for this target.
func (c Config) DSN() string {
	dsn := fmt.Sprintf("server=%s;database=%s;app name=orderlens", c.Server, c.Database)
	if c.RunMode != RunModeLocal {
		dsn += ";fedauth=ActiveDirectoryManagedIdentity"
	}
	return dsn
}

// DB owns at most one live connection to one logical database. It is meant
// for single-consumer, sequential use within one pipeline run; it is not
// safe for concurrent callers.
type DB struct {
	cfg       Config
	connector Connector
	cred      TokenCredential
	conn      Conn
}

// Option overrides a DB collaborator, mainly for tests.
type Option func(*DB)

// WithConnector replaces the production SQL Server connector.
func WithConnector(c Connector) Option {
	return func(db *DB) { db.connector = c }
}

// WithCredential replaces the default Azure credential chain.
func WithCredential(cred TokenCredential) Option {
	return func(db *DB) { db.cred = cred }
}

// Open establishes the single connection for cfg. The returned DB must be
// closed by the caller; Use is the scoped alternative.
func Open(ctx context.Context, cfg Config, opts ...Option) (*DB, error) {
	db := &DB{cfg: cfg, connector: NewMSSQLConnector()}
	for _, opt := range opts {
		opt(db)
	}
	if err := db.connect(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Use opens a connection for cfg, hands it to fn and always closes it
// afterwards, whether fn succeeds or not.
func Use(ctx context.Context, cfg Config, fn func(*DB) error, opts ...Option) error {
	db, err := Open(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func (db *DB) connect(ctx context.Context) error {
	log.Info().
		Str("server", db.cfg.Server).
		Str("database", db.cfg.Database).
		Str("driver", db.cfg.Driver).
		Str("run_mode", string(db.cfg.RunMode)).
		Msg("Initializing database connection")

	cred := db.cred
	if cred == nil {
		var err error
		cred, err = defaultCredential()
		if err != nil {
			cerr := connErr("build credential", err)
			log.Error().Err(err).Msg("Failed to build Azure credential")
			return cerr
		}
	}

	// The token is minted in both modes so credential problems surface
	// before the driver dial; the managed-identity path never uses it.
	token, err := fetchToken(ctx, cred)
	if err != nil {
		cerr := connErr("acquire access token", err)
		log.Error().Err(err).Str("scope", TokenScope).Msg("Failed to acquire access token")
		return cerr
	}

	var conn Conn
	if db.cfg.RunMode != RunModeLocal {
		log.Info().Msg("Connecting with managed identity")
		conn, err = db.connector.Connect(ctx, db.cfg.DSN())
	} else {
		log.Info().Msg("Connecting with access-token pre-connection attribute")
		attrs := map[int][]byte{AttrAccessToken: EncodeAccessToken(token)}
		conn, err = db.connector.ConnectWithAttrs(ctx, db.cfg.DSN(), attrs)
	}
	if err != nil {
		cerr := connErr("connect", err)
		log.Error().Err(err).
			Str("server", db.cfg.Server).
			Str("database", db.cfg.Database).
			Msg("Database connection failed")
		return cerr
	}

	db.conn = conn
	log.Debug().Str("database", db.cfg.Database).Msg("Database connection established")
	return nil
}

// Conn returns the live connection, or ErrNotConnected when there is none.
func (db *DB) Conn() (Conn, error) {
	if db == nil || db.conn == nil {
		return nil, ErrNotConnected
	}
	return db.conn, nil
}

// Name returns the logical database name this DB targets.
func (db *DB) Name() string { return db.cfg.Database }

// Close releases the connection. Closing an already-closed DB is a no-op.
func (db *DB) Close() error {
	if db == nil || db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}
