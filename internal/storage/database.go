package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"socialnet/internal/config"
	"socialnet/internal/models"
)

// zapGormLogger routes gorm logs to zap at matching levels: failed queries
// at Error, slow ones at Warn, and traced SQL at Info when enabled.
type zapGormLogger struct {
	log   *zap.Logger
	level logger.LogLevel
	slow  time.Duration
}

func newZapGormLogger(log *zap.Logger, level logger.LogLevel, slow time.Duration) *zapGormLogger {
	return &zapGormLogger{log: log, level: level, slow: slow}
}

func (l *zapGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *zapGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		l.log.Sugar().Infof(msg, data...)
	}
}

func (l *zapGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		l.log.Sugar().Warnf(msg, data...)
	}
}

func (l *zapGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		l.log.Sugar().Errorf(msg, data...)
	}
}

func (l *zapGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		stmt, rows := fc()
		l.log.Error("query failed", zap.Error(err), zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", stmt))
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		stmt, rows := fc()
		l.log.Warn("slow query", zap.Duration("elapsed", elapsed), zap.Duration("threshold", l.slow), zap.Int64("rows", rows), zap.String("sql", stmt))
	case l.level >= logger.Info:
		stmt, rows := fc()
		l.log.Info("query", zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", stmt))
	}
}

// InitDB initializes the database connection using the provided configuration.
func InitDB(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	switch cfg.Type {
	case "postgres":
		log.Debug("connecting to database",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("database", cfg.DBName),
			zap.String("user", cfg.User))
		return Open(postgres.Open(cfg.DSN()), cfg.LogSQL, log)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// OpenWithConn wraps an existing *sql.DB (lib/pq in the admin tool, sqlmock in tests).
func OpenWithConn(conn *sql.DB, logSQL bool, log *zap.Logger) (*gorm.DB, error) {
	return Open(postgres.New(postgres.Config{Conn: conn}), logSQL, log)
}

// Open opens gorm on dialector. Driver errors are translated so unique
// violations surface as gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector, logSQL bool, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if logSQL {
		level = logger.Info
	}
	gormLogger := newZapGormLogger(log.Named("gorm"), level, time.Second)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// AutoMigrateTables runs GORM's auto-migration feature for all defined models.
func AutoMigrateTables(db *gorm.DB, log *zap.Logger) error {
	log.Info("开始数据库表结构迁移...")
	err := db.AutoMigrate(
		&models.User{},
		&models.UserRelation{},
		&models.Message{},
		&models.RelationActivity{},
	)
	if err != nil {
		log.Error("数据库迁移失败", zap.Error(err))
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	log.Info("数据库迁移完成。")
	return nil
}
