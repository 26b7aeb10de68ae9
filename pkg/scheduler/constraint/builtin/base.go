// Package builtin 提供内置约束实现
package builtin

import (
	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/solution"
)

// BaseConstraint 约束基类
type BaseConstraint struct {
	name     string
	typ      constraint.Type
	category constraint.Category
	weight   int
}

// NewBaseConstraint 创建基础约束
func NewBaseConstraint(name string, typ constraint.Type, cat constraint.Category, weight int) *BaseConstraint {
	return &BaseConstraint{
		name:     name,
		typ:      typ,
		category: cat,
		weight:   weight,
	}
}

// Name 返回约束名称
func (c *BaseConstraint) Name() string { return c.name }

// Type 返回约束类型
func (c *BaseConstraint) Type() constraint.Type { return c.typ }

// Category 返回约束类别
func (c *BaseConstraint) Category() constraint.Category { return c.category }

// Weight 返回约束权重
func (c *BaseConstraint) Weight() int { return c.weight }

// penalty 返回超出 units 个单位时的负贡献
func (c *BaseConstraint) penalty(units int) int64 {
	if units <= 0 {
		return 0
	}
	return -int64(c.weight) * int64(units)
}

// CreateViolation 创建违反详情
func (c *BaseConstraint) CreateViolation(message string, penalty int64) constraint.ViolationDetail {
	severity := "warning"
	if c.category == constraint.CategoryHard {
		severity = "error"
	}

	return constraint.ViolationDetail{
		ConstraintType: c.typ,
		ConstraintName: c.name,
		Message:        message,
		Severity:       severity,
		Penalty:        penalty,
	}
}

// pairs 返回 n 个元素两两组合的数量
func pairs(n int) int {
	return n * (n - 1) / 2
}

// SlotConstraint 按单个槽位计分的约束
// 贡献只取决于槽位所属班次和其绑定的任务
type SlotConstraint struct {
	*BaseConstraint
	value    func(fs *model.FactSet, shift, task int) int64
	describe func(fs *model.FactSet, shift, task int) string
}

// Evaluate 实现 constraint.Constraint
func (c *SlotConstraint) Evaluate(st *solution.State) int64 {
	fs := st.Facts()
	var total int64
	for i := 0; i < st.NumSlots(); i++ {
		if t := st.TaskAt(i); t != solution.None {
			total += c.value(fs, st.ShiftOf(i), t)
		}
	}
	return total
}

// Touch 实现 constraint.Constraint
func (c *SlotConstraint) Touch(st *solution.State, slot, task int) int64 {
	if st.TaskAt(slot) != task {
		return 0
	}
	return c.value(st.Facts(), st.ShiftOf(slot), task)
}

// Explain 列出贡献为负的槽位
func (c *SlotConstraint) Explain(st *solution.State) []constraint.ViolationDetail {
	fs := st.Facts()
	var out []constraint.ViolationDetail
	for i := 0; i < st.NumSlots(); i++ {
		t := st.TaskAt(i)
		if t == solution.None {
			continue
		}
		v := c.value(fs, st.ShiftOf(i), t)
		if v >= 0 {
			continue
		}
		d := c.CreateViolation(c.describe(fs, st.ShiftOf(i), t), v)
		d.Slots = []int{i}
		d.TaskIDs = []int64{fs.Task(t).ID}
		d.PersonID = fs.Person(fs.TaskPerson(t)).ID
		out = append(out, d)
	}
	return out
}

const timeLayout = "2006-01-02 15:04"
