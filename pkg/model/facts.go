package model

import "time"

// PiGroup 课题组（公平性分组）
type PiGroup struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Room 房间，办公室与实验室共用
type Room struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Capacity int    `json:"capacity" db:"capacity" validate:"min=0"`
}

// Equipment 设备，按时间单位统计占用
type Equipment struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Capacity int    `json:"capacity" db:"capacity" validate:"min=0"`
}

// Person 人员
type Person struct {
	ID               int64       `json:"id" db:"id"`
	Name             string      `json:"name" db:"name"`
	OfficeID         *int64      `json:"office_id,omitempty" db:"office_id"`
	PiGroupID        int64       `json:"pi_group_id" db:"pi_group_id"`
	// WeeklyShiftLimit 每个 ISO 周最多安排的班次数，0 表示不限制
	WeeklyShiftLimit int         `json:"weekly_shift_limit" db:"weekly_shift_limit" validate:"min=0"`
	Unavailable      []TimeRange `json:"unavailable,omitempty" db:"-" validate:"dive"`
}

// TimeGrain 细粒度时间单元
type TimeGrain struct {
	ID    int64     `json:"id" db:"id"`
	Start time.Time `json:"start" db:"start_time"`
}

// Shift 可预约的时间窗口
type Shift struct {
	ID         int64       `json:"id" db:"id"`
	Start      time.Time   `json:"start" db:"start_time"`
	Length     int         `json:"length" db:"length_minutes" validate:"gt=0"`        // 分钟
	Capacity   int         `json:"capacity,omitempty" db:"capacity" validate:"min=0"` // 0 表示使用楼层容量
	TimeGrains []TimeGrain `json:"time_grains,omitempty" db:"-"`
}

// End 返回班次结束时间
func (s *Shift) End() time.Time {
	return s.Start.Add(time.Duration(s.Length) * time.Minute)
}

// Window 返回班次时间范围
func (s *Shift) Window() TimeRange {
	return TimeRange{Start: s.Start, End: s.End()}
}

// EquipmentUsage 任务对设备的占用
type EquipmentUsage struct {
	EquipmentID int64 `json:"equipment_id" db:"equipment_id"`
	Units       int   `json:"units" db:"units" validate:"min=0"`
}

// Task 任务，包含全部资源需求
type Task struct {
	ID                 int64            `json:"id" db:"id"`
	PersonID           int64            `json:"person_id" db:"person_id"`
	Name               string           `json:"name" db:"name"`
	DueDate            *time.Time       `json:"due_date,omitempty" db:"due_date"`
	Priority           int              `json:"priority" db:"priority"`
	RequiredLabs       []int64          `json:"required_labs,omitempty" db:"required_labs"`
	RequiredEquipment  []EquipmentUsage `json:"required_equipment,omitempty" db:"-" validate:"dive"`
	PrecedingTaskID    *int64           `json:"preceding_task_id,omitempty" db:"preceding_task_id"`
	ImmediatelyFollows bool             `json:"immediately_follows,omitempty" db:"immediately_follows"`
}

// HasDueDate 是否有截止日期
func (t *Task) HasDueDate() bool {
	return t.DueDate != nil
}

// HasPrecedingTask 是否有前置任务
func (t *Task) HasPrecedingTask() bool {
	return t.PrecedingTaskID != nil
}

// Problem 问题输入文档，引用均使用外部ID
type Problem struct {
	FloorCapacity int         `json:"floor_capacity" validate:"min=0"`
	PiGroups      []PiGroup   `json:"pi_groups"`
	Persons       []Person    `json:"persons" validate:"dive"`
	Rooms         []Room      `json:"rooms" validate:"dive"`
	Equipment     []Equipment `json:"equipment" validate:"dive"`
	Shifts        []Shift     `json:"shifts" validate:"dive"`
	Tasks         []Task      `json:"tasks" validate:"dive"`
}
