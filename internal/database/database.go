// Package database 提供数据库连接和管理
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paiban/mito/internal/config"
	"github.com/paiban/mito/pkg/logger"

	_ "github.com/lib/pq" // PostgreSQL 驱动
)

// slowQueryThreshold 超过该耗时的语句记录为慢查询
const slowQueryThreshold = 100 * time.Millisecond

// DB 数据库连接封装
type DB struct {
	*sql.DB
	cfg *config.DatabaseConfig
}

// New 创建新的数据库连接
func New(cfg *config.DatabaseConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Msg("数据库连接成功")

	return &DB{DB: db, cfg: cfg}, nil
}

// Wrap 包装已打开的连接，测试中配合 sqlmock 使用
func Wrap(db *sql.DB) *DB {
	return &DB{DB: db, cfg: &config.DatabaseConfig{}}
}

// Migrate 创建排班所需的表
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行建表语句 %d 失败: %w", i+1, err)
		}
	}
	logger.Info().Int("statements", len(schema)).Msg("数据库结构已就绪")
	return nil
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	if db.DB != nil {
		logger.Info().Msg("关闭数据库连接")
		return db.DB.Close()
	}
	return nil
}

// Health 健康检查
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Transaction 执行事务，fn 返回错误或 panic 时回滚
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("事务回滚失败: %v (原始错误: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("事务提交失败: %w", err)
	}
	return nil
}

// ExecContext 执行SQL语句并记录慢查询
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := db.DB.ExecContext(ctx, query, args...)
	logSlow(query, time.Since(start))
	return result, err
}

// QueryContext 执行查询并记录慢查询
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.DB.QueryContext(ctx, query, args...)
	logSlow(query, time.Since(start))
	return rows, err
}

func logSlow(query string, d time.Duration) {
	if d > slowQueryThreshold {
		logger.Warn().
			Str("query", truncateQuery(query)).
			Dur("duration", d).
			Msg("慢SQL查询")
	}
}

// truncateQuery 截断长查询
func truncateQuery(query string) string {
	if len(query) > 200 {
		return query[:200] + "..."
	}
	return query
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pi_groups (
		id   BIGINT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id       BIGINT PRIMARY KEY,
		name     TEXT NOT NULL,
		capacity INT NOT NULL CHECK (capacity >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS equipment (
		id       BIGINT PRIMARY KEY,
		name     TEXT NOT NULL,
		capacity INT NOT NULL CHECK (capacity >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS persons (
		id                 BIGINT PRIMARY KEY,
		name               TEXT NOT NULL,
		office_id          BIGINT REFERENCES rooms(id),
		pi_group_id        BIGINT NOT NULL REFERENCES pi_groups(id),
		weekly_shift_limit INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS person_unavailability (
		person_id  BIGINT NOT NULL REFERENCES persons(id),
		start_time TIMESTAMPTZ NOT NULL,
		end_time   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS shifts (
		id             BIGINT PRIMARY KEY,
		start_time     TIMESTAMPTZ NOT NULL,
		length_minutes INT NOT NULL CHECK (length_minutes > 0),
		capacity       INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS time_grains (
		id         BIGINT PRIMARY KEY,
		shift_id   BIGINT NOT NULL REFERENCES shifts(id),
		start_time TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id                  BIGINT PRIMARY KEY,
		person_id           BIGINT NOT NULL REFERENCES persons(id),
		name                TEXT NOT NULL,
		due_date            TIMESTAMPTZ,
		priority            INT NOT NULL DEFAULT 0,
		required_labs       BIGINT[] NOT NULL DEFAULT '{}',
		preceding_task_id   BIGINT,
		immediately_follows BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS task_equipment (
		task_id      BIGINT NOT NULL REFERENCES tasks(id),
		equipment_id BIGINT NOT NULL REFERENCES equipment(id),
		units        INT NOT NULL CHECK (units > 0),
		PRIMARY KEY (task_id, equipment_id)
	)`,
	`CREATE TABLE IF NOT EXISTS solve_runs (
		id          UUID PRIMARY KEY,
		hard_score  BIGINT NOT NULL,
		soft_score  BIGINT NOT NULL,
		feasible    BOOLEAN NOT NULL,
		termination TEXT NOT NULL,
		steps       INT NOT NULL DEFAULT 0,
		total_slots INT NOT NULL,
		bound_slots INT NOT NULL,
		unassigned  BIGINT[] NOT NULL DEFAULT '{}',
		warnings    TEXT[] NOT NULL DEFAULT '{}',
		duration_ms BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS run_assignments (
		run_id      UUID NOT NULL REFERENCES solve_runs(id) ON DELETE CASCADE,
		slot_id     INT NOT NULL,
		shift_id    BIGINT NOT NULL,
		start_time  TIMESTAMPTZ NOT NULL,
		end_time    TIMESTAMPTZ NOT NULL,
		task_id     BIGINT NOT NULL,
		task_name   TEXT NOT NULL,
		person_id   BIGINT NOT NULL,
		person_name TEXT NOT NULL,
		PRIMARY KEY (run_id, slot_id)
	)`,
}
