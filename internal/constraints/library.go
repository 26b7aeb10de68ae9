// Package constraints 约束库，描述内置约束及其可配置参数
package constraints

import (
	"strconv"

	"github.com/paiban/mito/pkg/scheduler/constraint"
)

// ConstraintParam 约束参数定义
type ConstraintParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, bool
	EnvVar      string `json:"env_var"`
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Current     string `json:"current,omitempty"`
	Min         string `json:"min,omitempty"`
}

// ConstraintDefinition 约束定义
type ConstraintDefinition struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Type        string            `json:"type"` // hard 硬约束, soft 软约束
	Sign        string            `json:"sign"` // penalty 惩罚, reward 奖励
	Description string            `json:"description"`
	Enabled     bool              `json:"enabled"`
	Params      []ConstraintParam `json:"params"`
}

// LibraryResponse 约束库响应
type LibraryResponse struct {
	Library []ConstraintDefinition `json:"library"`
	Summary map[string]interface{} `json:"summary"`
}

type entry struct {
	def    ConstraintDefinition
	weight func(constraint.Weights) int
	env    string
}

var entries = []entry{
	// =====================================================
	// 硬约束
	// =====================================================
	{
		def: ConstraintDefinition{
			Name:        string(constraint.TypeRoomCapacity),
			DisplayName: "房间容量",
			Type:        "hard",
			Sign:        "penalty",
			Description: "同一时间点占用某房间的人数超过其容量时，按超出人数扣分。办公室与任务所需实验室都计入占用。",
		},
		weight: func(w constraint.Weights) int { return w.RoomCapacity },
		env:    "WEIGHT_ROOM_CAPACITY",
	},
	{
		def: ConstraintDefinition{
			Name:        string(constraint.TypePersonDoubleBooked),
			DisplayName: "人员重复预约",
			Type:        "hard",
			Sign:        "penalty",
			Description: "同一人员在同一班次中被安排多个任务时，每一对冲突扣分一次。",
		},
		weight: func(w constraint.Weights) int { return w.PersonDoubleBooked },
		env:    "WEIGHT_PERSON_DOUBLE_BOOKED",
	},
	{
		def: ConstraintDefinition{
			Name:        string(constraint.TypeEquipmentCapacity),
			DisplayName: "设备容量",
			Type:        "hard",
			Sign:        "penalty",
			Description: "同一时间点设备占用单位数超过其容量时，按超出单位数扣分。",
		},
		weight: func(w constraint.Weights) int { return w.EquipmentCapacity },
		env:    "WEIGHT_EQUIPMENT_CAPACITY",
	},
	{
		def: ConstraintDefinition{
			Name:        string(constraint.TypeTaskRepeated),
			DisplayName: "任务重复安排",
			Type:        "hard",
			Sign:        "penalty",
			Description: "同一任务被绑定到多个槽位时，每一对槽位扣分一次。",
		},
		weight: func(w constraint.Weights) int { return w.TaskRepeated },
		env:    "WEIGHT_TASK_REPEATED",
	},
	{
		def: ConstraintDefinition{
			Name:        string(constraint.TypePersonUnavailable),
			DisplayName: "人员不可用",
			Type:        "hard",
			Sign:        "penalty",
			Description: "任务所在班次与其负责人的不可用时间段重叠时，每个槽位扣分一次。",
		},
		weight: func(w constraint.Weights) int { return w.PersonUnavailable },
		env:    "WEIGHT_PERSON_UNAVAILABLE",
	},
	{
		def: ConstraintDefinition{
			Name:        string(constraint.TypeWeeklyShiftLimit),
			DisplayName: "每周班次上限",
			Type:        "hard",
			Sign:        "penalty",
			Description: "人员在同一 ISO 周内的班次数超过其上限时，按超出次数扣分。上限为 0 表示不限制。",
		},
		weight: func(w constraint.Weights) int { return w.WeeklyShiftLimit },
		env:    "WEIGHT_WEEKLY_SHIFT_LIMIT",
	},
	{
		def: ConstraintDefinition{
			Name:        string(constraint.TypePrecedence),
			DisplayName: "前置任务顺序",
			Type:        "hard",
			Sign:        "penalty",
			Description: "任务的槽位早于其前置任务最早开始时间，或前置任务未安排时，每个槽位扣分一次。前置任务不存在时不计分。",
		},
		weight: func(w constraint.Weights) int { return w.Precedence },
		env:    "WEIGHT_PRECEDENCE",
	},
	{
		def: ConstraintDefinition{
			Name:        string(constraint.TypeFloorOccupancy),
			DisplayName: "楼层最少人数",
			Type:        "hard",
			Sign:        "penalty",
			Description: "有人使用的班次人数低于最少人数时，按差额扣分。",
			Params: []ConstraintParam{
				{Name: "floor_minimum", Type: "int", EnvVar: "FLOOR_MINIMUM", Description: "最少人数，0 表示不检查", Min: "0"},
			},
		},
		weight: func(w constraint.Weights) int { return w.FloorOccupancy },
		env:    "WEIGHT_FLOOR_OCCUPANCY",
	},

	// =====================================================
	// 软约束
	// =====================================================
	{
		def: ConstraintDefinition{
			Name:        string(constraint.TypeTaskScheduled),
			DisplayName: "任务已安排",
			Type:        "soft",
			Sign:        "reward",
			Description: "每个已绑定槽位加分。",
		},
		weight: func(w constraint.Weights) int { return w.TaskScheduled },
		env:    "WEIGHT_TASK_SCHEDULED",
	},
	{
		def: ConstraintDefinition{
			Name:        string(constraint.TypeDueDateScheduled),
			DisplayName: "截止任务已安排",
			Type:        "soft",
			Sign:        "reward",
			Description: "有截止日期的任务被安排时额外加分。",
		},
		weight: func(w constraint.Weights) int { return w.DueDateScheduled },
		env:    "WEIGHT_DUE_DATE_SCHEDULED",
	},
	{
		def: ConstraintDefinition{
			Name:        string(constraint.TypeDueDateMissed),
			DisplayName: "错过截止日期",
			Type:        "soft",
			Sign:        "penalty",
			Description: "有截止日期的任务所在班次开始时间不早于截止日期时扣分。",
		},
		weight: func(w constraint.Weights) int { return w.DueDateMissed },
		env:    "WEIGHT_DUE_DATE_MISSED",
	},
	{
		def: ConstraintDefinition{
			Name:        string(constraint.TypePiGroupFairness),
			DisplayName: "课题组公平",
			Type:        "soft",
			Sign:        "penalty",
			Description: "按各课题组已安排槽位数的平方和扣分，使槽位在课题组之间均匀分布。",
		},
		weight: func(w constraint.Weights) int { return w.PiGroupFairness },
		env:    "WEIGHT_PI_GROUP_FAIRNESS",
	},
	{
		def: ConstraintDefinition{
			Name:        string(constraint.TypePriorityWork),
			DisplayName: "优先任务",
			Type:        "soft",
			Sign:        "reward",
			Description: "按已安排任务的优先级加分。",
		},
		weight: func(w constraint.Weights) int { return w.PriorityWork },
		env:    "WEIGHT_PRIORITY_WORK",
	},
}

// GetLibrary 返回约束库，current 为当前生效的权重
func GetLibrary(current constraint.Weights) []ConstraintDefinition {
	defaults := constraint.DefaultWeights()
	lib := make([]ConstraintDefinition, 0, len(entries))
	for _, e := range entries {
		def := e.def
		params := []ConstraintParam{{
			Name:        "weight",
			Type:        "int",
			EnvVar:      e.env,
			Description: "约束权重",
			Default:     strconv.Itoa(e.weight(defaults)),
			Current:     strconv.Itoa(e.weight(current)),
			Min:         "0",
		}}
		for _, p := range e.def.Params {
			if p.Name == "floor_minimum" {
				p.Default = strconv.Itoa(defaults.FloorMinimum)
				p.Current = strconv.Itoa(current.FloorMinimum)
			}
			params = append(params, p)
		}
		def.Params = params
		lib = append(lib, def)
	}
	return lib
}

// Lookup 按名称查找约束定义
func Lookup(name string, current constraint.Weights) (ConstraintDefinition, bool) {
	for _, def := range GetLibrary(current) {
		if def.Name == name {
			return def, true
		}
	}
	return ConstraintDefinition{}, false
}

// GetByType 按硬/软类型过滤
func GetByType(typ string, current constraint.Weights) []ConstraintDefinition {
	var result []ConstraintDefinition
	for _, def := range GetLibrary(current) {
		if def.Type == typ {
			result = append(result, def)
		}
	}
	return result
}
