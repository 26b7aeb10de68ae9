package builtin

import (
	"fmt"

	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/solution"
)

// RoomCapacityConstraint 房间容量约束
// 每个 (时间点, 房间) 分组，每超出一人扣一次权重
type RoomCapacityConstraint struct {
	*BaseConstraint
}

// NewRoomCapacityConstraint 创建房间容量约束
func NewRoomCapacityConstraint(weight int) *RoomCapacityConstraint {
	return &RoomCapacityConstraint{
		BaseConstraint: NewBaseConstraint("房间容量", constraint.TypeRoomCapacity, constraint.CategoryHard, weight),
	}
}

func (c *RoomCapacityConstraint) fold(st *solution.State) []int {
	fs := st.Facts()
	nr := fs.NumRooms()
	load := make([]int, fs.NumTimePoints()*nr)
	for i := 0; i < st.NumSlots(); i++ {
		t := st.TaskAt(i)
		if t == solution.None {
			continue
		}
		for _, p := range fs.ShiftPoints(st.ShiftOf(i)) {
			for _, r := range fs.OccupiedRooms(t) {
				load[p*nr+r]++
			}
		}
	}
	return load
}

// Evaluate 实现 constraint.Constraint
func (c *RoomCapacityConstraint) Evaluate(st *solution.State) int64 {
	fs := st.Facts()
	nr := fs.NumRooms()
	var total int64
	for i, n := range c.fold(st) {
		total += c.penalty(n - fs.RoomCapacity(i%nr))
	}
	return total
}

// Touch 实现 constraint.Constraint
func (c *RoomCapacityConstraint) Touch(st *solution.State, slot, task int) int64 {
	fs := st.Facts()
	var total int64
	for _, p := range fs.ShiftPoints(st.ShiftOf(slot)) {
		for _, r := range fs.OccupiedRooms(task) {
			total += c.penalty(st.RoomLoad(p, r) - fs.RoomCapacity(r))
		}
	}
	return total
}

// Explain 实现 constraint.Constraint
func (c *RoomCapacityConstraint) Explain(st *solution.State) []constraint.ViolationDetail {
	fs := st.Facts()
	nr := fs.NumRooms()
	var out []constraint.ViolationDetail
	for i, n := range c.fold(st) {
		r := i % nr
		if over := n - fs.RoomCapacity(r); over > 0 {
			room := fs.Room(r)
			out = append(out, c.CreateViolation(
				fmt.Sprintf("房间 %s 在 %s 占用 %d 人，容量 %d", room.Name, fs.TimePoint(i/nr).Format(timeLayout), n, room.Capacity),
				c.penalty(over)))
		}
	}
	return out
}

// EquipmentCapacityConstraint 设备容量约束
// 每个 (时间点, 设备) 分组，每超出一个单位扣一次权重
type EquipmentCapacityConstraint struct {
	*BaseConstraint
}

// NewEquipmentCapacityConstraint 创建设备容量约束
func NewEquipmentCapacityConstraint(weight int) *EquipmentCapacityConstraint {
	return &EquipmentCapacityConstraint{
		BaseConstraint: NewBaseConstraint("设备容量", constraint.TypeEquipmentCapacity, constraint.CategoryHard, weight),
	}
}

func (c *EquipmentCapacityConstraint) fold(st *solution.State) []int {
	fs := st.Facts()
	ne := fs.NumEquipment()
	load := make([]int, fs.NumTimePoints()*ne)
	for i := 0; i < st.NumSlots(); i++ {
		t := st.TaskAt(i)
		if t == solution.None {
			continue
		}
		for _, p := range fs.ShiftPoints(st.ShiftOf(i)) {
			for _, u := range fs.TaskEquipment(t) {
				load[p*ne+u.Equipment] += u.Units
			}
		}
	}
	return load
}

// Evaluate 实现 constraint.Constraint
func (c *EquipmentCapacityConstraint) Evaluate(st *solution.State) int64 {
	fs := st.Facts()
	ne := fs.NumEquipment()
	var total int64
	for i, n := range c.fold(st) {
		total += c.penalty(n - fs.EquipmentCapacity(i%ne))
	}
	return total
}

// Touch 实现 constraint.Constraint
func (c *EquipmentCapacityConstraint) Touch(st *solution.State, slot, task int) int64 {
	fs := st.Facts()
	var total int64
	for _, p := range fs.ShiftPoints(st.ShiftOf(slot)) {
		for _, u := range fs.TaskEquipment(task) {
			total += c.penalty(st.EquipmentLoad(p, u.Equipment) - fs.EquipmentCapacity(u.Equipment))
		}
	}
	return total
}

// Explain 实现 constraint.Constraint
func (c *EquipmentCapacityConstraint) Explain(st *solution.State) []constraint.ViolationDetail {
	fs := st.Facts()
	ne := fs.NumEquipment()
	var out []constraint.ViolationDetail
	for i, n := range c.fold(st) {
		e := i % ne
		if over := n - fs.EquipmentCapacity(e); over > 0 {
			eq := fs.Equipment(e)
			out = append(out, c.CreateViolation(
				fmt.Sprintf("设备 %s 在 %s 占用 %d 单位，容量 %d", eq.Name, fs.TimePoint(i/ne).Format(timeLayout), n, eq.Capacity),
				c.penalty(over)))
		}
	}
	return out
}

// FloorOccupancyConstraint 楼层最低人数约束
// 有人使用的班次人数低于最低值时，每缺一人扣一次权重；最低值为 0 时不检查
type FloorOccupancyConstraint struct {
	*BaseConstraint
	minimum int
}

// NewFloorOccupancyConstraint 创建楼层最低人数约束
func NewFloorOccupancyConstraint(weight, minimum int) *FloorOccupancyConstraint {
	return &FloorOccupancyConstraint{
		BaseConstraint: NewBaseConstraint("楼层最低人数", constraint.TypeFloorOccupancy, constraint.CategoryHard, weight),
		minimum:        minimum,
	}
}

func (c *FloorOccupancyConstraint) shortfall(n int) int64 {
	if c.minimum <= 0 || n == 0 {
		return 0
	}
	return c.penalty(c.minimum - n)
}

// Evaluate 实现 constraint.Constraint
func (c *FloorOccupancyConstraint) Evaluate(st *solution.State) int64 {
	counts := make([]int, st.Facts().NumShifts())
	for i := 0; i < st.NumSlots(); i++ {
		if st.TaskAt(i) != solution.None {
			counts[st.ShiftOf(i)]++
		}
	}
	var total int64
	for _, n := range counts {
		total += c.shortfall(n)
	}
	return total
}

// Touch 实现 constraint.Constraint
func (c *FloorOccupancyConstraint) Touch(st *solution.State, slot, task int) int64 {
	return c.shortfall(st.ShiftBoundCount(st.ShiftOf(slot)))
}

// Explain 实现 constraint.Constraint
func (c *FloorOccupancyConstraint) Explain(st *solution.State) []constraint.ViolationDetail {
	fs := st.Facts()
	var out []constraint.ViolationDetail
	for s := 0; s < fs.NumShifts(); s++ {
		n := st.ShiftBoundCount(s)
		if p := c.shortfall(n); p < 0 {
			out = append(out, c.CreateViolation(
				fmt.Sprintf("班次 %s 仅 %d 人，低于最低 %d 人", fs.ShiftStart(s).Format(timeLayout), n, c.minimum), p))
		}
	}
	return out
}
