package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/drims/backend/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database owns the gorm handle and its connection pool.
type Database struct {
	DB    *gorm.DB
	sqlDB *sql.DB
}

// NewGormConfig returns the gorm settings shared by every connection.
// Driver errors are translated so unique violations surface as
// gorm.ErrDuplicatedKey, and timestamps are generated in UTC.
func NewGormConfig(gormLogger logger.Interface) *gorm.Config {
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}
	return &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}

// NewDatabase connects to PostgreSQL, sizes the pool and verifies the
// connection. A nil gormLogger keeps gorm silent.
func NewDatabase(cfg *config.DatabaseConfig, gormLogger logger.Interface) (*Database, error) {
	gormCfg := NewGormConfig(gormLogger)
	gormCfg.PrepareStmt = true

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	database, err := wrapDatabase(db)
	if err != nil {
		return nil, err
	}

	pool := database.sqlDB
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return database, nil
}

func wrapDatabase(db *gorm.DB) (*Database, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	return &Database{DB: db, sqlDB: sqlDB}, nil
}

// PingContext checks the connection; it backs the /health database check.
func (d *Database) PingContext(ctx context.Context) error {
	return d.sqlDB.PingContext(ctx)
}

// Close closes the connection pool.
func (d *Database) Close() error {
	return d.sqlDB.Close()
}
