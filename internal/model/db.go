package model

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite 打开 sqlite 数据库并完成建表
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// sqlite 单写者
	db.SetMaxOpenConns(1)

	if err := NewAnalysisModel(db).Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
