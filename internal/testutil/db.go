// Package testutil 测试用的临时基础设施
package testutil

import (
	"testing"

	"gorm.io/gorm"

	"github.com/d60-Lab/pumproom/config"
	"github.com/d60-Lab/pumproom/pkg/database"
)

// NewDB 已迁移的内存 sqlite，测试结束时关闭
func NewDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"}}
	db, err := database.InitDB(cfg)
	if err != nil {
		tb.Fatalf("open db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	tb.Cleanup(func() { _ = database.Close(db) })
	return db
}
