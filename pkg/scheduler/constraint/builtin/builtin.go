package builtin

import (
	"github.com/paiban/mito/pkg/scheduler/constraint"
)

// RegisterDefaultConstraints 按权重注册全部内置约束
func RegisterDefaultConstraints(manager *constraint.Manager, w constraint.Weights) {
	// 注册硬约束
	manager.Register(NewRoomCapacityConstraint(w.RoomCapacity))
	manager.Register(NewPersonDoubleBookedConstraint(w.PersonDoubleBooked))
	manager.Register(NewEquipmentCapacityConstraint(w.EquipmentCapacity))
	manager.Register(NewTaskRepeatedConstraint(w.TaskRepeated))
	manager.Register(NewPersonUnavailableConstraint(w.PersonUnavailable))
	manager.Register(NewWeeklyShiftLimitConstraint(w.WeeklyShiftLimit))
	manager.Register(NewPrecedenceConstraint(w.Precedence))
	manager.Register(NewFloorOccupancyConstraint(w.FloorOccupancy, w.FloorMinimum))

	// 注册软约束
	manager.Register(NewTaskScheduledConstraint(w.TaskScheduled))
	manager.Register(NewDueDateScheduledConstraint(w.DueDateScheduled))
	manager.Register(NewDueDateMissedConstraint(w.DueDateMissed))
	manager.Register(NewPiGroupFairnessConstraint(w.PiGroupFairness))
	manager.Register(NewPriorityWorkConstraint(w.PriorityWork))
}

// NewDefaultManager 创建注册了全部内置约束的管理器
func NewDefaultManager(w constraint.Weights) *constraint.Manager {
	m := constraint.NewManager()
	RegisterDefaultConstraints(m, w)
	return m
}

// NewManager 注册全部内置约束后移除 disabled 中的类型
func NewManager(w constraint.Weights, disabled []constraint.Type) *constraint.Manager {
	m := NewDefaultManager(w)
	for _, t := range disabled {
		m.Unregister(t)
	}
	return m
}

// IsBuiltin 判断是否为内置约束类型
func IsBuiltin(t constraint.Type) bool {
	return NewDefaultManager(constraint.DefaultWeights()).GetConstraint(t) != nil
}
