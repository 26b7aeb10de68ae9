package constraint

import "fmt"

// Score 硬/软得分，比较时硬得分优先
type Score struct {
	Hard int64 `json:"hard"`
	Soft int64 `json:"soft"`
}

// Add 得分相加
func (s Score) Add(o Score) Score {
	return Score{Hard: s.Hard + o.Hard, Soft: s.Soft + o.Soft}
}

// Sub 得分相减
func (s Score) Sub(o Score) Score {
	return Score{Hard: s.Hard - o.Hard, Soft: s.Soft - o.Soft}
}

// Compare 比较得分，s 更优返回 1，相同返回 0，更差返回 -1
func (s Score) Compare(o Score) int {
	switch {
	case s.Hard > o.Hard:
		return 1
	case s.Hard < o.Hard:
		return -1
	case s.Soft > o.Soft:
		return 1
	case s.Soft < o.Soft:
		return -1
	}
	return 0
}

// Better 是否严格优于 o
func (s Score) Better(o Score) bool {
	return s.Compare(o) > 0
}

// Feasible 硬得分为 0 时为可行解
func (s Score) Feasible() bool {
	return s.Hard == 0
}

// String 格式如 -10hard/+800soft
func (s Score) String() string {
	return fmt.Sprintf("%dhard/%+dsoft", s.Hard, s.Soft)
}

// of 按类别构造得分
func of(cat Category, v int64) Score {
	if cat == CategoryHard {
		return Score{Hard: v}
	}
	return Score{Soft: v}
}

// Weights 各约束权重与参数
type Weights struct {
	RoomCapacity       int `json:"room_capacity"`
	PersonDoubleBooked int `json:"person_double_booked"`
	EquipmentCapacity  int `json:"equipment_capacity"`
	TaskRepeated       int `json:"task_repeated"`
	PersonUnavailable  int `json:"person_unavailable"`
	WeeklyShiftLimit   int `json:"weekly_shift_limit"`
	Precedence         int `json:"precedence"`
	FloorOccupancy     int `json:"floor_occupancy"`

	TaskScheduled    int `json:"task_scheduled"`
	DueDateScheduled int `json:"due_date_scheduled"`
	DueDateMissed    int `json:"due_date_missed"`
	PiGroupFairness  int `json:"pi_group_fairness"`
	PriorityWork     int `json:"priority_work"`

	// FloorMinimum 有人使用的班次最少人数，0 表示不检查
	FloorMinimum int `json:"floor_minimum"`
}

// DefaultWeights 返回默认权重
func DefaultWeights() Weights {
	return Weights{
		RoomCapacity:       10,
		PersonDoubleBooked: 10,
		EquipmentCapacity:  10,
		TaskRepeated:       100,
		PersonUnavailable:  10,
		WeeklyShiftLimit:   30,
		Precedence:         10,
		FloorOccupancy:     10,

		TaskScheduled:    600,
		DueDateScheduled: 200,
		DueDateMissed:    25,
		PiGroupFairness:  1,
		PriorityWork:     10,
	}
}
