package store

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/docquery/internal/model"
	mysqlopts "github.com/kart-io/docquery/pkg/options/mysql"
)

// NewDB 根据配置创建 gorm 连接. SQLitePath 非空时使用内嵌 sqlite,
// 否则连接 MySQL.
func NewDB(opts *mysqlopts.Options) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.LogLevel(opts.LogLevel)),
	}

	var (
		db  *gorm.DB
		err error
	)
	if opts.UseSQLite() {
		db, err = gorm.Open(sqlite.Open(opts.SQLitePath), gormConfig)
	} else {
		db, err = gorm.Open(mysql.Open(opts.DSN()), gormConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConnections)
	sqlDB.SetConnMaxLifetime(opts.MaxConnectionLifeTime)

	return db, nil
}

// NewTestDB 创建内存 sqlite 连接并完成迁移, 用于测试.
func NewTestDB() (*gorm.DB, error) {
	opts := mysqlopts.NewOptions()
	opts.SQLitePath = ":memory:"
	opts.MaxOpenConnections = 1 // 内存库共享单连接
	opts.MaxIdleConnections = 1
	opts.MaxConnectionLifeTime = time.Hour

	db, err := NewDB(opts)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate 迁移 docquery 的全部表结构.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Document{},
		&model.Chunk{},
		&model.TableHistoryEntry{},
	)
}
