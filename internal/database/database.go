package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// migrations는 순서대로 한 번씩 적용되는 스키마 변경입니다.
// 적용된 개수는 PRAGMA user_version에 기록됩니다.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS cameras (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		refresh_rate REAL NOT NULL DEFAULT 0,
		image_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cameras_position ON cameras(latitude, longitude)`,
	`CREATE INDEX IF NOT EXISTS idx_cameras_name ON cameras(name)`,
}

// DB는 카메라 카탈로그 sqlite 파일을 감쌉니다
type DB struct {
	conn   *sql.DB
	logger *zap.Logger
}

// New는 카탈로그 파일을 열고 밀린 마이그레이션을 적용합니다. ":memory:"도 받습니다.
func New(dbPath string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
		dsn = "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	// 연결 하나: ":memory:"는 연결마다 별개의 DB입니다
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, logger: logger}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}

	version, _ := db.SchemaVersion(context.Background())
	logger.Info("Camera catalog opened",
		zap.String("path", dbPath),
		zap.Int("schema_version", version),
	)
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current >= len(migrations) {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for i := current; i < len(migrations); i++ {
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	// PRAGMA는 바인드 파라미터를 받지 않습니다
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}

	db.logger.Debug("Catalog schema migrated",
		zap.Int("from", current),
		zap.Int("to", len(migrations)),
	)
	return nil
}

// SchemaVersion은 적용된 마이그레이션 수입니다
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Conn은 내부 *sql.DB를 돌려줍니다
func (db *DB) Conn() *sql.DB {
	return db.conn
}
