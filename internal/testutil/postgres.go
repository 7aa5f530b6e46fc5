package testutil

import (
	"os"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/d60-Lab/pumproom/config"
	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/pkg/database"
)

// PostgresDSNEnv 集成测试使用的 PostgreSQL 连接串
const PostgresDSNEnv = "PUMPROOM_TEST_POSTGRES_DSN"

// NewPostgres 连接 PUMPROOM_TEST_POSTGRES_DSN 指向的库并迁移，未设置时跳过。
// 测试结束时清空所有表。
func NewPostgres(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		tb.Skipf("%s not set", PostgresDSNEnv)
	}
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "postgres", DSN: dsn, LogLevel: "silent", MaxOpenConns: 32}}
	db, err := database.InitDB(cfg)
	if err != nil {
		tb.Fatalf("open postgres: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	truncate := func() {
		var tables []string
		for _, m := range model.All() {
			if t, ok := m.(interface{ TableName() string }); ok {
				tables = append(tables, t.TableName())
			}
		}
		if err := db.Exec("TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE").Error; err != nil {
			tb.Errorf("truncate: %v", err)
		}
	}
	truncate()
	tb.Cleanup(func() {
		truncate()
		_ = database.Close(db)
	})
	return db
}
