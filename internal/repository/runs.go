package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/paiban/mito/pkg/errors"
	"github.com/paiban/mito/pkg/scheduler"
)

// Run 一次求解的记录
type Run struct {
	ID          uuid.UUID `json:"id"`
	HardScore   int64     `json:"hard_score"`
	SoftScore   int64     `json:"soft_score"`
	Feasible    bool      `json:"feasible"`
	Termination string    `json:"termination"`
	Steps       int       `json:"steps"`
	TotalSlots  int       `json:"total_slots"`
	BoundSlots  int       `json:"bound_slots"`
	Unassigned  []int64   `json:"unassigned"`
	Warnings    []string  `json:"warnings"`
	DurationMs  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// RunFromResult 由求解结果生成运行记录
func RunFromResult(res *scheduler.Result) *Run {
	run := &Run{
		ID:          res.RunID,
		HardScore:   res.Score.Hard,
		SoftScore:   res.Score.Soft,
		Feasible:    res.Feasible,
		Termination: string(res.Termination),
		TotalSlots:  len(res.Assignments),
		Unassigned:  append([]int64{}, res.Unassigned...),
		Warnings:    append([]string{}, res.Warnings...),
		DurationMs:  res.Duration.Milliseconds(),
	}
	if res.Search != nil {
		run.Steps = res.Search.Steps
	}
	for i := range res.Assignments {
		if res.Assignments[i].Bound() {
			run.BoundSlots++
		}
	}
	return run
}

// RunRepository 求解运行仓储
type RunRepository struct {
	db  TxDB
	now func() time.Time
}

// NewRunRepository 创建运行仓储
func NewRunRepository(db TxDB) *RunRepository {
	return &RunRepository{db: db, now: time.Now}
}

const runColumns = `id, hard_score, soft_score, feasible, termination, steps,
	total_slots, bound_slots, unassigned, warnings, duration_ms, created_at`

// Save 在一个事务中写入运行记录及其已绑定的槽位
func (r *RunRepository) Save(ctx context.Context, res *scheduler.Result) (*Run, error) {
	run := RunFromResult(res)
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.CreatedAt = r.now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "开始事务失败")
	}

	if err := r.insert(ctx, tx, run, res.Assignments); err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "保存运行记录失败")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "提交事务失败")
	}
	return run, nil
}

func (r *RunRepository) insert(ctx context.Context, tx *sql.Tx, run *Run, assignments []scheduler.Assignment) error {
	query := fmt.Sprintf(`
		INSERT INTO solve_runs (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, runColumns)

	_, err := tx.ExecContext(ctx, query,
		run.ID, run.HardScore, run.SoftScore, run.Feasible, run.Termination, run.Steps,
		run.TotalSlots, run.BoundSlots, pq.Array(run.Unassigned), pq.Array(run.Warnings),
		run.DurationMs, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("插入运行记录失败: %w", err)
	}

	for _, a := range assignments {
		if !a.Bound() {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_assignments (
				run_id, slot_id, shift_id, start_time, end_time,
				task_id, task_name, person_id, person_name
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, run.ID, a.SlotID, a.ShiftID, a.Start, a.End, *a.TaskID, a.TaskName, *a.PersonID, a.PersonName)
		if err != nil {
			return fmt.Errorf("插入槽位 %d 失败: %w", a.SlotID, err)
		}
	}
	return nil
}

// GetByID 根据ID获取运行记录
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := fmt.Sprintf("SELECT %s FROM solve_runs WHERE id = $1", runColumns)

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("运行记录", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询运行记录失败")
	}
	return run, nil
}

// List 分页列出运行记录，按创建时间倒序
func (r *RunRepository) List(ctx context.Context, filter ListFilter) ([]*Run, int, error) {
	filter = filter.Normalize()

	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Feasible != nil {
		conditions = append(conditions, fmt.Sprintf("feasible = $%d", argNum))
		args = append(args, *filter.Feasible)
		argNum++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argNum))
		args = append(args, filter.Since)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM solve_runs %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "统计运行记录失败")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM solve_runs %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, runColumns, whereClause, argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "查询运行列表失败")
	}
	defer rows.Close()

	runs := make([]*Run, 0, filter.Limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "扫描运行记录失败")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "遍历运行记录失败")
	}
	return runs, total, nil
}

// GetAssignments 获取运行的已绑定槽位
func (r *RunRepository) GetAssignments(ctx context.Context, runID uuid.UUID) ([]scheduler.Assignment, error) {
	query := `
		SELECT slot_id, shift_id, start_time, end_time, task_id, task_name, person_id, person_name
		FROM run_assignments
		WHERE run_id = $1
		ORDER BY slot_id
	`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询运行分配失败")
	}
	defer rows.Close()

	var assignments []scheduler.Assignment
	for rows.Next() {
		var (
			a                scheduler.Assignment
			taskID, personID int64
		)
		if err := rows.Scan(&a.SlotID, &a.ShiftID, &a.Start, &a.End, &taskID, &a.TaskName, &personID, &a.PersonName); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "扫描运行分配失败")
		}
		a.TaskID = &taskID
		a.PersonID = &personID
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "遍历运行分配失败")
	}
	return assignments, nil
}

// Delete 删除运行记录，分配随外键级联删除
func (r *RunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM solve_runs WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "删除运行记录失败")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound("运行记录", id.String())
	}
	return nil
}

func scanRun(s Scanner) (*Run, error) {
	run := &Run{}
	err := s.Scan(
		&run.ID, &run.HardScore, &run.SoftScore, &run.Feasible, &run.Termination, &run.Steps,
		&run.TotalSlots, &run.BoundSlots, pq.Array(&run.Unassigned), pq.Array(&run.Warnings),
		&run.DurationMs, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}
