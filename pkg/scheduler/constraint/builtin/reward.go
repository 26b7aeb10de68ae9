package builtin

import (
	"fmt"

	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/solution"
)

// NewTaskScheduledConstraint 每个绑定槽位奖励一次权重
func NewTaskScheduledConstraint(weight int) *SlotConstraint {
	c := &SlotConstraint{
		BaseConstraint: NewBaseConstraint("任务已安排", constraint.TypeTaskScheduled, constraint.CategorySoft, weight),
	}
	c.value = func(fs *model.FactSet, shift, task int) int64 {
		return int64(c.weight)
	}
	c.describe = noDescription
	return c
}

// NewDueDateScheduledConstraint 有截止日期的任务被安排时额外奖励
func NewDueDateScheduledConstraint(weight int) *SlotConstraint {
	c := &SlotConstraint{
		BaseConstraint: NewBaseConstraint("截止任务已安排", constraint.TypeDueDateScheduled, constraint.CategorySoft, weight),
	}
	c.value = func(fs *model.FactSet, shift, task int) int64 {
		if fs.Task(task).HasDueDate() {
			return int64(c.weight)
		}
		return 0
	}
	c.describe = noDescription
	return c
}

// NewDueDateMissedConstraint 班次开始不早于截止日期时惩罚
func NewDueDateMissedConstraint(weight int) *SlotConstraint {
	c := &SlotConstraint{
		BaseConstraint: NewBaseConstraint("错过截止日期", constraint.TypeDueDateMissed, constraint.CategorySoft, weight),
	}
	c.value = func(fs *model.FactSet, shift, task int) int64 {
		if fs.DueBefore(task, shift) {
			return 0
		}
		return c.penalty(1)
	}
	c.describe = func(fs *model.FactSet, shift, task int) string {
		t := fs.Task(task)
		return fmt.Sprintf("任务 %s 安排在 %s，截止日期 %s", t.Name,
			fs.ShiftStart(shift).Format(timeLayout), t.DueDate.Format(timeLayout))
	}
	return c
}

// NewPriorityWorkConstraint 按任务优先级奖励
func NewPriorityWorkConstraint(weight int) *SlotConstraint {
	c := &SlotConstraint{
		BaseConstraint: NewBaseConstraint("优先级", constraint.TypePriorityWork, constraint.CategorySoft, weight),
	}
	c.value = func(fs *model.FactSet, shift, task int) int64 {
		return int64(c.weight) * int64(fs.Task(task).Priority)
	}
	c.describe = func(fs *model.FactSet, shift, task int) string {
		return fmt.Sprintf("任务 %s 优先级为负", fs.Task(task).Name)
	}
	return c
}

func noDescription(fs *model.FactSet, shift, task int) string { return "" }

// PiGroupFairnessConstraint 课题组公平性约束
// 每个课题组扣 权重 × 绑定数²，使分配集中在少数课题组时惩罚加速增长
type PiGroupFairnessConstraint struct {
	*BaseConstraint
}

// NewPiGroupFairnessConstraint 创建课题组公平性约束
func NewPiGroupFairnessConstraint(weight int) *PiGroupFairnessConstraint {
	return &PiGroupFairnessConstraint{
		BaseConstraint: NewBaseConstraint("课题组公平", constraint.TypePiGroupFairness, constraint.CategorySoft, weight),
	}
}

func (c *PiGroupFairnessConstraint) value(n int) int64 {
	return -int64(c.weight) * int64(n) * int64(n)
}

// Evaluate 实现 constraint.Constraint
func (c *PiGroupFairnessConstraint) Evaluate(st *solution.State) int64 {
	fs := st.Facts()
	counts := make([]int, fs.NumPiGroups())
	for i := 0; i < st.NumSlots(); i++ {
		if t := st.TaskAt(i); t != solution.None {
			counts[fs.TaskPiGroup(t)]++
		}
	}
	var total int64
	for _, n := range counts {
		total += c.value(n)
	}
	return total
}

// Touch 实现 constraint.Constraint
func (c *PiGroupFairnessConstraint) Touch(st *solution.State, slot, task int) int64 {
	return c.value(st.PiGroupCount(st.Facts().TaskPiGroup(task)))
}

// Explain 课题组公平性只影响得分，不产生违反详情
func (c *PiGroupFairnessConstraint) Explain(st *solution.State) []constraint.ViolationDetail {
	return nil
}
