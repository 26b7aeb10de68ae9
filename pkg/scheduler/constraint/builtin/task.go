package builtin

import (
	"fmt"
	"time"

	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/solution"
)

// TaskRepeatedConstraint 任务重复约束
// 同一任务被绑定到多个槽位时，每一对扣一次权重
type TaskRepeatedConstraint struct {
	*BaseConstraint
}

// NewTaskRepeatedConstraint 创建任务重复约束
func NewTaskRepeatedConstraint(weight int) *TaskRepeatedConstraint {
	return &TaskRepeatedConstraint{
		BaseConstraint: NewBaseConstraint("任务重复", constraint.TypeTaskRepeated, constraint.CategoryHard, weight),
	}
}

func (c *TaskRepeatedConstraint) fold(st *solution.State) []int {
	counts := make([]int, st.Facts().NumTasks())
	for i := 0; i < st.NumSlots(); i++ {
		if t := st.TaskAt(i); t != solution.None {
			counts[t]++
		}
	}
	return counts
}

// Evaluate 实现 constraint.Constraint
func (c *TaskRepeatedConstraint) Evaluate(st *solution.State) int64 {
	var total int64
	for _, n := range c.fold(st) {
		total += c.penalty(pairs(n))
	}
	return total
}

// Touch 实现 constraint.Constraint
func (c *TaskRepeatedConstraint) Touch(st *solution.State, slot, task int) int64 {
	return c.penalty(pairs(st.TaskCount(task)))
}

// Explain 实现 constraint.Constraint
func (c *TaskRepeatedConstraint) Explain(st *solution.State) []constraint.ViolationDetail {
	fs := st.Facts()
	var out []constraint.ViolationDetail
	for t, n := range c.fold(st) {
		if n < 2 {
			continue
		}
		task := fs.Task(t)
		d := c.CreateViolation(fmt.Sprintf("任务 %s 被安排了 %d 次", task.Name, n), c.penalty(pairs(n)))
		d.TaskIDs = []int64{task.ID}
		d.Slots = append([]int(nil), st.TaskSlots(t)...)
		out = append(out, d)
	}
	return out
}

// PrecedenceConstraint 前置任务约束
// 任务的每个绑定槽位，若前置任务未绑定或最早开始晚于该槽位班次开始，扣一次权重
// 前置任务缺失的任务不参与计分
type PrecedenceConstraint struct {
	*BaseConstraint
}

// NewPrecedenceConstraint 创建前置任务约束
func NewPrecedenceConstraint(weight int) *PrecedenceConstraint {
	return &PrecedenceConstraint{
		BaseConstraint: NewBaseConstraint("前置任务", constraint.TypePrecedence, constraint.CategoryHard, weight),
	}
}

// violated 计算任务当前违反的槽位数
func (c *PrecedenceConstraint) violated(st *solution.State, task int) int {
	fs := st.Facts()
	pred := fs.Predecessor(task)
	if pred < 0 {
		return 0
	}
	predStart, ok := st.EarliestStart(pred)
	n := 0
	for _, slot := range st.TaskSlots(task) {
		if !ok || predStart.After(fs.ShiftStart(st.ShiftOf(slot))) {
			n++
		}
	}
	return n
}

// Evaluate 实现 constraint.Constraint
func (c *PrecedenceConstraint) Evaluate(st *solution.State) int64 {
	fs := st.Facts()
	starts := make([]time.Time, fs.NumTasks())
	bound := make([]bool, fs.NumTasks())
	for i := 0; i < st.NumSlots(); i++ {
		t := st.TaskAt(i)
		if t == solution.None {
			continue
		}
		start := fs.ShiftStart(st.ShiftOf(i))
		if !bound[t] || start.Before(starts[t]) {
			starts[t] = start
			bound[t] = true
		}
	}

	var total int64
	for i := 0; i < st.NumSlots(); i++ {
		t := st.TaskAt(i)
		if t == solution.None {
			continue
		}
		pred := fs.Predecessor(t)
		if pred < 0 {
			continue
		}
		if !bound[pred] || starts[pred].After(fs.ShiftStart(st.ShiftOf(i))) {
			total += c.penalty(1)
		}
	}
	return total
}

// Touch 实现 constraint.Constraint
// 分组为任务本身及其所有后继任务
func (c *PrecedenceConstraint) Touch(st *solution.State, slot, task int) int64 {
	total := c.penalty(c.violated(st, task))
	for _, succ := range st.Facts().Successors(task) {
		total += c.penalty(c.violated(st, succ))
	}
	return total
}

// Explain 实现 constraint.Constraint
func (c *PrecedenceConstraint) Explain(st *solution.State) []constraint.ViolationDetail {
	fs := st.Facts()
	var out []constraint.ViolationDetail
	for t := 0; t < fs.NumTasks(); t++ {
		n := c.violated(st, t)
		if n == 0 {
			continue
		}
		task := fs.Task(t)
		pred := fs.Task(fs.Predecessor(t))
		d := c.CreateViolation(fmt.Sprintf("任务 %s 早于前置任务 %s", task.Name, pred.Name), c.penalty(n))
		d.TaskIDs = []int64{task.ID, pred.ID}
		out = append(out, d)
	}
	return out
}
