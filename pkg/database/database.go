package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/pumproom/config"
	"github.com/d60-Lab/pumproom/internal/model"
)

// InitDB 按驱动打开数据库并配置连接池
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database
	// TranslateError 把唯一键冲突统一成 gorm.ErrDuplicatedKey
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(logLevel(dbCfg.LogLevel)), TranslateError: true}

	var (
		db  *gorm.DB
		err error
	)
	switch dbCfg.Driver {
	case "postgres", "":
		db, err = gorm.Open(postgres.Open(dbCfg.DSN), gcfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(dbCfg.DSN), gcfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dbCfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbCfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dbCfg.Driver == "sqlite" {
		// sqlite 没有表锁，单连接把事务串行化；:memory: 也依赖单连接共享同一个库
		sqlDB.SetMaxOpenConns(1)
	} else {
		if dbCfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
		}
		if dbCfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
		}
		if dbCfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
		}
	}
	return db, nil
}

// AutoMigrate 初始化所有表结构
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// IsPostgres 当前连接是否为 PostgreSQL
func IsPostgres(db *gorm.DB) bool {
	return db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres"
}

// Ping 检查连接
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func logLevel(s string) gormlogger.LogLevel {
	switch strings.ToLower(s) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
