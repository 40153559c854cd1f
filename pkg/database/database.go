package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"hoa-ledger/config"
	"hoa-ledger/internal/domain/outbox"
	"hoa-ledger/internal/domain/poll"
	"hoa-ledger/internal/domain/vote"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Models lists every table owned by the ledger, in migration order.
var Models = []any{
	&poll.Poll{},
	&poll.Option{},
	&vote.Vote{},
	&outbox.OutboxEvent{},
}

// Connect opens the configured database, applies pool settings and installs
// the tracing plugin.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
	if cfg.LogQueries {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic database object: %w", err)
	}

	// Connection pool settings
	if cfg.Driver == config.DriverSQLite {
		// sqlite serializes writers; one connection keeps lock errors away
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("failed to install tracing plugin: %w", err)
	}

	log.Printf("Database connection established (%s)", cfg.Driver)
	return db, nil
}

func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
}

// Migrate creates or updates every ledger table. On postgres it also installs
// triggers that reject updates and direct deletes of committed votes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, stmt := range appendOnlyStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to install append-only trigger: %w", err)
		}
	}
	return nil
}

// appendOnlyStatements reject every UPDATE on votes and every DELETE except
// the cascade from deleting the owning poll, which runs one trigger level down.
var appendOnlyStatements = []string{
	`CREATE OR REPLACE FUNCTION votes_reject_update() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'votes are append-only';
	END;
	$$ LANGUAGE plpgsql;`,
	`CREATE OR REPLACE FUNCTION votes_reject_delete() RETURNS trigger AS $$
	BEGIN
		IF pg_trigger_depth() > 1 THEN
			RETURN OLD;
		END IF;
		RAISE EXCEPTION 'votes are append-only';
	END;
	$$ LANGUAGE plpgsql;`,
	`DROP TRIGGER IF EXISTS votes_append_only ON votes;`,
	`CREATE TRIGGER votes_append_only BEFORE UPDATE ON votes
		FOR EACH ROW EXECUTE FUNCTION votes_reject_update();`,
	`DROP TRIGGER IF EXISTS votes_no_delete ON votes;`,
	`CREATE TRIGGER votes_no_delete BEFORE DELETE ON votes
		FOR EACH ROW EXECUTE FUNCTION votes_reject_delete();`,
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// HealthCheck pings the database and verifies the ledger tables exist.
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	if err := Ping(ctx, db); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	var missing []error
	for _, table := range TableNames() {
		if !db.WithContext(ctx).Migrator().HasTable(table) {
			missing = append(missing, fmt.Errorf("table %s missing", table))
		}
	}
	return errors.Join(missing...)
}

func TableNames() []string {
	return []string{"polls", "poll_options", "votes", "outbox_events"}
}

func TableCount(ctx context.Context, db *gorm.DB, table string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Table(table).Count(&count).Error
	return count, err
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
