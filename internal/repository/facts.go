package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/paiban/mito/pkg/model"
)

// ProblemFilter 加载问题时的过滤条件
type ProblemFilter struct {
	FloorCapacity int
	From          time.Time // 零值表示不限
	To            time.Time // 零值表示不限，不包含
}

// FactRepository 从 PostgreSQL 加载问题事实
type FactRepository struct {
	db DB
}

// NewFactRepository 创建问题事实仓储
func NewFactRepository(db DB) *FactRepository {
	return &FactRepository{db: db}
}

// LoadProblem 读取全部问题事实，返回的 Problem 仍需经 model.Compile 校验
func (r *FactRepository) LoadProblem(ctx context.Context, filter ProblemFilter) (*model.Problem, error) {
	p := &model.Problem{FloorCapacity: filter.FloorCapacity}

	var err error
	if p.PiGroups, err = r.loadPiGroups(ctx); err != nil {
		return nil, err
	}
	if p.Rooms, err = r.loadRooms(ctx); err != nil {
		return nil, err
	}
	if p.Equipment, err = r.loadEquipment(ctx); err != nil {
		return nil, err
	}
	if p.Persons, err = r.loadPersons(ctx); err != nil {
		return nil, err
	}
	if p.Shifts, err = r.loadShifts(ctx, filter); err != nil {
		return nil, err
	}
	if p.Tasks, err = r.loadTasks(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *FactRepository) loadPiGroups(ctx context.Context) ([]model.PiGroup, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM pi_groups ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("查询课题组失败: %w", err)
	}
	defer rows.Close()

	var groups []model.PiGroup
	for rows.Next() {
		var g model.PiGroup
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("扫描课题组失败: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *FactRepository) loadRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, capacity FROM rooms ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("查询房间失败: %w", err)
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		var room model.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Capacity); err != nil {
			return nil, fmt.Errorf("扫描房间失败: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (r *FactRepository) loadEquipment(ctx context.Context) ([]model.Equipment, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, capacity FROM equipment ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("查询设备失败: %w", err)
	}
	defer rows.Close()

	var equipment []model.Equipment
	for rows.Next() {
		var e model.Equipment
		if err := rows.Scan(&e.ID, &e.Name, &e.Capacity); err != nil {
			return nil, fmt.Errorf("扫描设备失败: %w", err)
		}
		equipment = append(equipment, e)
	}
	return equipment, rows.Err()
}

func (r *FactRepository) loadPersons(ctx context.Context) ([]model.Person, error) {
	query := `
		SELECT id, name, office_id, pi_group_id, weekly_shift_limit
		FROM persons
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询人员失败: %w", err)
	}
	defer rows.Close()

	var persons []model.Person
	byID := make(map[int64]int)
	for rows.Next() {
		var (
			p      model.Person
			office sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Name, &office, &p.PiGroupID, &p.WeeklyShiftLimit); err != nil {
			return nil, fmt.Errorf("扫描人员失败: %w", err)
		}
		if office.Valid {
			p.OfficeID = &office.Int64
		}
		byID[p.ID] = len(persons)
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	urows, err := r.db.QueryContext(ctx,
		"SELECT person_id, start_time, end_time FROM person_unavailability ORDER BY person_id, start_time")
	if err != nil {
		return nil, fmt.Errorf("查询人员不可用时间失败: %w", err)
	}
	defer urows.Close()

	for urows.Next() {
		var (
			personID int64
			tr       model.TimeRange
		)
		if err := urows.Scan(&personID, &tr.Start, &tr.End); err != nil {
			return nil, fmt.Errorf("扫描人员不可用时间失败: %w", err)
		}
		if i, ok := byID[personID]; ok {
			persons[i].Unavailable = append(persons[i].Unavailable, tr)
		}
	}
	return persons, urows.Err()
}

func (r *FactRepository) loadShifts(ctx context.Context, filter ProblemFilter) ([]model.Shift, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("start_time >= $%d", argNum))
		args = append(args, filter.From)
		argNum++
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("start_time < $%d", argNum))
		args = append(args, filter.To)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, start_time, length_minutes, capacity
		FROM shifts
		%s
		ORDER BY start_time, id
	`, whereClause)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询班次失败: %w", err)
	}
	defer rows.Close()

	var shifts []model.Shift
	byID := make(map[int64]int)
	for rows.Next() {
		var s model.Shift
		if err := rows.Scan(&s.ID, &s.Start, &s.Length, &s.Capacity); err != nil {
			return nil, fmt.Errorf("扫描班次失败: %w", err)
		}
		byID[s.ID] = len(shifts)
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	grows, err := r.db.QueryContext(ctx, "SELECT shift_id, id, start_time FROM time_grains ORDER BY shift_id, start_time")
	if err != nil {
		return nil, fmt.Errorf("查询时间粒度失败: %w", err)
	}
	defer grows.Close()

	for grows.Next() {
		var (
			shiftID int64
			g       model.TimeGrain
		)
		if err := grows.Scan(&shiftID, &g.ID, &g.Start); err != nil {
			return nil, fmt.Errorf("扫描时间粒度失败: %w", err)
		}
		// 范围外班次的粒度直接跳过
		if i, ok := byID[shiftID]; ok {
			shifts[i].TimeGrains = append(shifts[i].TimeGrains, g)
		}
	}
	return shifts, grows.Err()
}

func (r *FactRepository) loadTasks(ctx context.Context) ([]model.Task, error) {
	query := `
		SELECT id, person_id, name, due_date, priority, required_labs,
			preceding_task_id, immediately_follows
		FROM tasks
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询任务失败: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	byID := make(map[int64]int)
	for rows.Next() {
		var (
			t    model.Task
			due  sql.NullTime
			pred sql.NullInt64
			labs pq.Int64Array
		)
		if err := rows.Scan(&t.ID, &t.PersonID, &t.Name, &due, &t.Priority, &labs, &pred, &t.ImmediatelyFollows); err != nil {
			return nil, fmt.Errorf("扫描任务失败: %w", err)
		}
		if due.Valid {
			t.DueDate = &due.Time
		}
		if pred.Valid {
			t.PrecedingTaskID = &pred.Int64
		}
		if len(labs) > 0 {
			t.RequiredLabs = []int64(labs)
		}
		byID[t.ID] = len(tasks)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	erows, err := r.db.QueryContext(ctx, "SELECT task_id, equipment_id, units FROM task_equipment ORDER BY task_id, equipment_id")
	if err != nil {
		return nil, fmt.Errorf("查询任务设备失败: %w", err)
	}
	defer erows.Close()

	for erows.Next() {
		var (
			taskID int64
			u      model.EquipmentUsage
		)
		if err := erows.Scan(&taskID, &u.EquipmentID, &u.Units); err != nil {
			return nil, fmt.Errorf("扫描任务设备失败: %w", err)
		}
		if i, ok := byID[taskID]; ok {
			tasks[i].RequiredEquipment = append(tasks[i].RequiredEquipment, u)
		}
	}
	return tasks, erows.Err()
}
