// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"time"
)

// DB 数据库接口，*sql.DB 与 *database.DB 均满足
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxDB 支持事务的数据库接口
type TxDB interface {
	DB
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}

// ListFilter 运行记录列表过滤器
type ListFilter struct {
	Feasible *bool     `json:"feasible,omitempty"`
	Since    time.Time `json:"since,omitempty"`
	Offset   int       `json:"offset"`
	Limit    int       `json:"limit"`
}

// DefaultListFilter 返回默认过滤器
func DefaultListFilter() ListFilter {
	return ListFilter{Offset: 0, Limit: 20}
}

// WithLimit 设置限制
func (f ListFilter) WithLimit(limit int) ListFilter {
	f.Limit = limit
	return f
}

// WithOffset 设置偏移
func (f ListFilter) WithOffset(offset int) ListFilter {
	f.Offset = offset
	return f
}

// WithFeasible 只返回可行或不可行的运行
func (f ListFilter) WithFeasible(feasible bool) ListFilter {
	f.Feasible = &feasible
	return f
}

// Normalize 修正非法的分页参数
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
