package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/murmur/internal/config"
	"github.com/sujalbistaa/murmur/internal/models"
)

// Store is the Post Store contract shared by the SQL and MongoDB backends.
type Store interface {
	Create(ctx context.Context, p *models.Post) (*models.Post, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListFeed(ctx context.Context) ([]*models.Post, error)
	ListReplies(ctx context.Context, parentID string) ([]*models.Post, error)
	ToggleLike(ctx context.Context, postID, author string) (models.LikeState, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Open picks a backend from the DATABASE_URL prefix and migrates it.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	url := cfg.DatabaseURL

	switch {
	case strings.HasPrefix(url, "mongodb://"), strings.HasPrefix(url, "mongodb+srv://"):
		slog.Info("Connecting to MongoDB", "database", cfg.MongoDatabase)
		return OpenMongo(ctx, url, cfg.MongoDatabase)
	case strings.HasPrefix(url, "postgres://"):
		slog.Info("Connecting to PostgreSQL database")
		// pgx understands the full URL, scheme included.
		gdb, err := openGorm(postgres.Open(url), cfg.DBDebug)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		return newMigratedGormStore(gdb)
	case strings.HasPrefix(url, "sqlite://"):
		dsn := strings.TrimPrefix(url, "sqlite://")
		slog.Info("Connecting to SQLite database", "path", dsn)
		return OpenSQLite(dsn, cfg.DBDebug)
	default:
		return nil, fmt.Errorf("invalid DATABASE_URL prefix %q: must be sqlite://, postgres:// or mongodb://", url)
	}
}

// OpenSQLite opens a single-connection SQLite store. A single connection
// serializes writers and keeps ":memory:" databases alive for the store's lifetime.
func OpenSQLite(dsn string, debug bool) (*GormStore, error) {
	gdb, err := openGorm(sqlite.Open(dsn), debug)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	return newMigratedGormStore(gdb)
}

func openGorm(dialector gorm.Dialector, debug bool) (*gorm.DB, error) {
	level := logger.Silent // Be quiet by default
	if debug {
		level = logger.Info
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", models.ErrStorage, err)
	}
	return gdb, nil
}

func newMigratedGormStore(gdb *gorm.DB) (*GormStore, error) {
	store := NewGormStore(gdb)
	slog.Info("Running database migrations...")
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", models.ErrStorage, err)
	}
	slog.Info("Database connection established.")
	return store, nil
}
