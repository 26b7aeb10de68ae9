package builtin

import (
	"fmt"

	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/solution"
)

// PersonDoubleBookedConstraint 人员重复预约约束
// 同一人员在同一班次的每一对槽位扣一次权重
type PersonDoubleBookedConstraint struct {
	*BaseConstraint
}

// NewPersonDoubleBookedConstraint 创建人员重复预约约束
func NewPersonDoubleBookedConstraint(weight int) *PersonDoubleBookedConstraint {
	return &PersonDoubleBookedConstraint{
		BaseConstraint: NewBaseConstraint("人员重复预约", constraint.TypePersonDoubleBooked, constraint.CategoryHard, weight),
	}
}

func (c *PersonDoubleBookedConstraint) fold(st *solution.State) []int {
	fs := st.Facts()
	ns := fs.NumShifts()
	counts := make([]int, fs.NumPersons()*ns)
	for i := 0; i < st.NumSlots(); i++ {
		if t := st.TaskAt(i); t != solution.None {
			counts[fs.TaskPerson(t)*ns+st.ShiftOf(i)]++
		}
	}
	return counts
}

// Evaluate 实现 constraint.Constraint
func (c *PersonDoubleBookedConstraint) Evaluate(st *solution.State) int64 {
	var total int64
	for _, n := range c.fold(st) {
		total += c.penalty(pairs(n))
	}
	return total
}

// Touch 实现 constraint.Constraint
func (c *PersonDoubleBookedConstraint) Touch(st *solution.State, slot, task int) int64 {
	n := st.PersonShiftCount(st.Facts().TaskPerson(task), st.ShiftOf(slot))
	return c.penalty(pairs(n))
}

// Explain 实现 constraint.Constraint
func (c *PersonDoubleBookedConstraint) Explain(st *solution.State) []constraint.ViolationDetail {
	fs := st.Facts()
	ns := fs.NumShifts()
	var out []constraint.ViolationDetail
	for i, n := range c.fold(st) {
		if n < 2 {
			continue
		}
		person := fs.Person(i / ns)
		d := c.CreateViolation(
			fmt.Sprintf("%s 在班次 %s 被预约 %d 次", person.Name, fs.ShiftStart(i%ns).Format(timeLayout), n),
			c.penalty(pairs(n)))
		d.PersonID = person.ID
		out = append(out, d)
	}
	return out
}

// WeeklyShiftLimitConstraint 每周班次上限约束
// 每个 (人员, ISO周) 分组超出上限的每个班次扣一次权重；上限为 0 表示不限制
type WeeklyShiftLimitConstraint struct {
	*BaseConstraint
}

// NewWeeklyShiftLimitConstraint 创建每周班次上限约束
func NewWeeklyShiftLimitConstraint(weight int) *WeeklyShiftLimitConstraint {
	return &WeeklyShiftLimitConstraint{
		BaseConstraint: NewBaseConstraint("每周班次上限", constraint.TypeWeeklyShiftLimit, constraint.CategoryHard, weight),
	}
}

func (c *WeeklyShiftLimitConstraint) excess(fs *model.FactSet, person, n int) int {
	limit := fs.WeeklyLimit(person)
	if limit == 0 {
		return 0
	}
	return n - limit
}

func (c *WeeklyShiftLimitConstraint) fold(st *solution.State) []int {
	fs := st.Facts()
	nw := fs.NumWeeks()
	counts := make([]int, fs.NumPersons()*nw)
	for i := 0; i < st.NumSlots(); i++ {
		if t := st.TaskAt(i); t != solution.None {
			counts[fs.TaskPerson(t)*nw+fs.ShiftWeek(st.ShiftOf(i))]++
		}
	}
	return counts
}

// Evaluate 实现 constraint.Constraint
func (c *WeeklyShiftLimitConstraint) Evaluate(st *solution.State) int64 {
	fs := st.Facts()
	nw := fs.NumWeeks()
	var total int64
	for i, n := range c.fold(st) {
		total += c.penalty(c.excess(fs, i/nw, n))
	}
	return total
}

// Touch 实现 constraint.Constraint
func (c *WeeklyShiftLimitConstraint) Touch(st *solution.State, slot, task int) int64 {
	fs := st.Facts()
	person := fs.TaskPerson(task)
	n := st.PersonWeekCount(person, fs.ShiftWeek(st.ShiftOf(slot)))
	return c.penalty(c.excess(fs, person, n))
}

// Explain 实现 constraint.Constraint
func (c *WeeklyShiftLimitConstraint) Explain(st *solution.State) []constraint.ViolationDetail {
	fs := st.Facts()
	nw := fs.NumWeeks()
	var out []constraint.ViolationDetail
	for i, n := range c.fold(st) {
		p := i / nw
		if over := c.excess(fs, p, n); over > 0 {
			person := fs.Person(p)
			d := c.CreateViolation(
				fmt.Sprintf("%s 在第 %d 周排了 %d 个班次，上限 %d", person.Name, fs.WeekKey(i%nw), n, fs.WeeklyLimit(p)),
				c.penalty(over))
			d.PersonID = person.ID
			out = append(out, d)
		}
	}
	return out
}

// NewPersonUnavailableConstraint 创建人员不可用约束
// 人员在班次时间段内不可用时，每个绑定槽位扣一次权重
func NewPersonUnavailableConstraint(weight int) *SlotConstraint {
	c := &SlotConstraint{
		BaseConstraint: NewBaseConstraint("人员不可用", constraint.TypePersonUnavailable, constraint.CategoryHard, weight),
	}
	c.value = func(fs *model.FactSet, shift, task int) int64 {
		if fs.Unavailable(fs.TaskPerson(task), shift) {
			return c.penalty(1)
		}
		return 0
	}
	c.describe = func(fs *model.FactSet, shift, task int) string {
		return fmt.Sprintf("%s 在 %s 不可用", fs.Person(fs.TaskPerson(task)).Name, fs.ShiftStart(shift).Format(timeLayout))
	}
	return c
}
