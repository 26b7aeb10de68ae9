// Package constraint 定义约束接口、得分与管理器
package constraint

import (
	"github.com/paiban/mito/pkg/scheduler/solution"
)

// Type 约束类型标识
type Type string

const (
	// 硬约束类型
	TypeRoomCapacity       Type = "room_capacity"
	TypePersonDoubleBooked Type = "person_double_booked"
	TypeEquipmentCapacity  Type = "equipment_capacity"
	TypeTaskRepeated       Type = "task_repeated"
	TypePersonUnavailable  Type = "person_unavailable"
	TypeWeeklyShiftLimit   Type = "weekly_shift_limit"
	TypePrecedence         Type = "precedence"
	TypeFloorOccupancy     Type = "floor_occupancy"

	// 软约束类型
	TypeTaskScheduled    Type = "task_scheduled"
	TypeDueDateScheduled Type = "due_date_scheduled"
	TypeDueDateMissed    Type = "due_date_missed"
	TypePiGroupFairness  Type = "pi_group_fairness"
	TypePriorityWork     Type = "priority_work"
)

// Category 约束类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（尽量满足）
)

// Constraint 约束接口
// 每个约束对得分贡献一个带符号的整数：惩罚为负，奖励为正
type Constraint interface {
	// Name 返回约束名称
	Name() string

	// Type 返回约束类型
	Type() Type

	// Category 返回约束类别
	Category() Category

	// Weight 返回约束权重
	Weight() int

	// Evaluate 从零折叠所有槽位，返回该约束的总贡献
	// 不得依赖状态中的派生索引
	Evaluate(st *solution.State) int64

	// Touch 返回 (slot, task) 所涉及全部分组的当前贡献
	// 分组集合只由 slot、task 和事实决定，变更前后各调用一次即可得到精确增量
	Touch(st *solution.State, slot, task int) int64

	// Explain 列出当前违反的分组
	Explain(st *solution.State) []ViolationDetail
}

// ViolationDetail 约束违反详情
type ViolationDetail struct {
	ConstraintType Type    `json:"constraint_type"`
	ConstraintName string  `json:"constraint_name"`
	Slots          []int   `json:"slots,omitempty"`
	TaskIDs        []int64 `json:"task_ids,omitempty"`
	PersonID       int64   `json:"person_id,omitempty"`
	Message        string  `json:"message"`
	Severity       string  `json:"severity"` // error/warning
	Penalty        int64   `json:"penalty"`
}

// Breakdown 单个约束的得分贡献
type Breakdown struct {
	ConstraintType Type     `json:"constraint_type"`
	ConstraintName string   `json:"constraint_name"`
	Category       Category `json:"category"`
	Score          int64    `json:"score"`
}

// Result 约束评估结果
type Result struct {
	IsValid        bool              `json:"is_valid"`
	Score          Score             `json:"score"`
	Breakdown      []Breakdown       `json:"breakdown"`
	HardViolations []ViolationDetail `json:"hard_violations"`
	SoftViolations []ViolationDetail `json:"soft_violations"`
}
