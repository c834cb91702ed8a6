package db

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/slotter-org/gemini-chat/internal/config"
	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/types"
)

// Connector hands out a gorm handle for a single operation. The caller must
// invoke release as soon as the operation is done.
type Connector interface {
	Conn(ctx context.Context) (conn *gorm.DB, release func(), err error)
}

// DatabaseService opens chat history connections. Unless pooled is set, every
// Conn opens a brand new connection and release closes it.
type DatabaseService struct {
	dialector gorm.Dialector
	pooled    bool
	shared    *gorm.DB
	log       *logger.Logger
}

func NewDatabaseService(cfg config.DatabaseConfig, log *logger.Logger) (*DatabaseService, error) {
	serviceLog := log.With("service", "DatabaseService", "driver", cfg.Driver)

	//1) Build Dialector From Config
	serviceLog.Info("Attempting to build dialector for chat history database now...")
	dialector, err := Dialector(cfg)
	if err != nil {
		serviceLog.Error("Failed to build dialector", "error", err)
		return nil, err
	}

	s := &DatabaseService{dialector: dialector, pooled: cfg.Pooled, log: serviceLog}

	//2) Open Shared Handle When Pooling
	if cfg.Pooled {
		serviceLog.Info("Pooling enabled, opening shared connection now...")
		shared, err := s.open()
		if err != nil {
			return nil, err
		}
		s.shared = shared
	}
	serviceLog.Info("DatabaseService ready :)", "pooled", cfg.Pooled)
	return s, nil
}

// Dialector maps the configured driver onto its gorm dialector.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverPostgres, "":
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
		return postgres.Open(dsn), nil
	case config.DriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
		return mysql.Open(dsn), nil
	case config.DriverSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite driver requires a database path")
		}
		return sqlite.Open(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func (s *DatabaseService) open() (*gorm.DB, error) {
	conn, err := gorm.Open(s.dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		s.log.Warn("Failed to connect to chat history database", "error", err)
		return nil, fmt.Errorf("failed to connect to chat history database: %w", err)
	}
	if !s.pooled {
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(0)
	}
	return conn, nil
}

func (s *DatabaseService) Conn(ctx context.Context) (*gorm.DB, func(), error) {
	if s.pooled && s.shared != nil {
		return s.shared.WithContext(ctx), func() {}, nil
	}
	conn, err := s.open()
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		sqlDB, err := conn.DB()
		if err != nil {
			return
		}
		if err := sqlDB.Close(); err != nil {
			s.log.Debug("Failed to close chat history connection", "error", err)
		}
	}
	return conn.WithContext(ctx), release, nil
}

// AutoMigrateAll creates the chat_history table when it does not exist yet.
func (s *DatabaseService) AutoMigrateAll(ctx context.Context) error {
	s.log.Info("Starting AutoMigrateAll for chat history now...")
	conn, release, err := s.Conn(ctx)
	if err != nil {
		return err
	}
	defer release()
	if err := conn.AutoMigrate(&types.ChatHistory{}); err != nil {
		s.log.Error("AutoMigrateAll failed :(", "error", err)
		return fmt.Errorf("failed to migrate chat_history: %w", err)
	}
	s.log.Info("AutoMigrateAll completed successfully :)")
	return nil
}

// Close releases the shared handle, if any.
func (s *DatabaseService) Close() error {
	if s.shared == nil {
		return nil
	}
	sqlDB, err := s.shared.DB()
	if err != nil {
		return err
	}
	s.shared = nil
	return sqlDB.Close()
}
