package app

import (
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/joshuarp/branchdesk/internal/shared/config"
)

// postgresPool opens the database on first use. Only the postgres seen store
// and the postgres staff directory need it, so the default setup never dials.
type postgresPool struct {
	cfg config.ConfigProvider

	once sync.Once
	mu   sync.Mutex
	db   *sqlx.DB
	err  error
	open func(dsn string) (*sqlx.DB, error)
}

func providePostgresPool(cfg config.ConfigProvider) *postgresPool {
	return &postgresPool{cfg: cfg, open: openPostgres}
}

func (p *postgresPool) DB() (*sqlx.DB, error) {
	p.once.Do(func() {
		db, err := p.open(postgresDSN(p.cfg))
		p.mu.Lock()
		p.db, p.err = db, err
		p.mu.Unlock()
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db, p.err
}

// Close is a no-op when the pool was never opened.
func (p *postgresPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func openPostgres(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: failed to open postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("db: failed to ping postgres: %w", err)
	}

	return db, nil
}

func postgresDSN(cfg config.ConfigProvider) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbString(cfg, "host"),
		dbInt(cfg, "port"),
		dbString(cfg, "user"),
		dbString(cfg, "password"),
		dbString(cfg, "name"),
		dbString(cfg, "ssl_mode"),
	)
}

func dbString(cfg config.ConfigProvider, key string) string {
	globalKey := fmt.Sprintf("database.%s", key)
	if cfg.IsSet(globalKey) {
		return cfg.GetString(globalKey)
	}

	return cfg.GetString(dbEnvKey(key))
}

func dbInt(cfg config.ConfigProvider, key string) int {
	globalKey := fmt.Sprintf("database.%s", key)
	if cfg.IsSet(globalKey) {
		return cfg.GetInt(globalKey)
	}

	return cfg.GetInt(dbEnvKey(key))
}

func dbEnvKey(key string) string {
	normalizedKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	return fmt.Sprintf("DATABASE_%s", normalizedKey)
}
