// Package solution 定义求解过程中唯一可变的分配状态
package solution

import (
	"fmt"
	"time"

	"github.com/paiban/mito/pkg/model"
)

// None 表示槽位未绑定任务
const None = -1

// Slot 槽位，班次在创建后不可变，只有绑定任务会变化
type Slot struct {
	ID    int `json:"id"`
	Shift int `json:"shift"`
	Task  int `json:"task"` // None 表示空
}

// Listener 变更监听器
// 每次单个绑定或解绑前后各调用一次，task 为被绑定或被解绑的任务
type Listener interface {
	BeforeChange(st *State, slot, task int)
	AfterChange(st *State, slot, task int)
}

// State 分配状态：槽位集合及其派生索引
// 所有派生索引始终等于对当前槽位绑定的折叠
type State struct {
	facts *model.FactSet
	slots []Slot

	shiftSlots [][]int

	roomLoad    []int // point*rooms+room
	equipLoad   []int // point*equipment+equipment
	personShift []int // person*shifts+shift
	personWeek  []int // person*weeks+week
	groupCount  []int
	shiftBound  []int

	taskSlots [][]int
	slotPos   []int // 槽位在所属任务 taskSlots 中的位置
	bound     int

	listener Listener
}

// New 按每个班次的槽位容量创建空状态
func New(facts *model.FactSet) *State {
	st := &State{
		facts:       facts,
		shiftSlots:  make([][]int, facts.NumShifts()),
		roomLoad:    make([]int, facts.NumTimePoints()*facts.NumRooms()),
		equipLoad:   make([]int, facts.NumTimePoints()*facts.NumEquipment()),
		personShift: make([]int, facts.NumPersons()*facts.NumShifts()),
		personWeek:  make([]int, facts.NumPersons()*facts.NumWeeks()),
		groupCount:  make([]int, facts.NumPiGroups()),
		shiftBound:  make([]int, facts.NumShifts()),
		taskSlots:   make([][]int, facts.NumTasks()),
	}
	for s := 0; s < facts.NumShifts(); s++ {
		for k := 0; k < facts.SlotCapacity(s); k++ {
			id := len(st.slots)
			st.slots = append(st.slots, Slot{ID: id, Shift: s, Task: None})
			st.shiftSlots[s] = append(st.shiftSlots[s], id)
		}
	}
	st.slotPos = make([]int, len(st.slots))
	return st
}

// Facts 返回事实集合
func (st *State) Facts() *model.FactSet { return st.facts }

// SetListener 设置变更监听器，nil 表示移除
func (st *State) SetListener(l Listener) { st.listener = l }

// NumSlots 返回槽位数量
func (st *State) NumSlots() int { return len(st.slots) }

// Slot 返回槽位副本
func (st *State) Slot(i int) Slot {
	st.checkSlot(i)
	return st.slots[i]
}

// TaskAt 返回槽位绑定的任务，空槽位返回 None
func (st *State) TaskAt(slot int) int {
	st.checkSlot(slot)
	return st.slots[slot].Task
}

// ShiftOf 返回槽位所属班次
func (st *State) ShiftOf(slot int) int {
	st.checkSlot(slot)
	return st.slots[slot].Shift
}

// Bind 将任务绑定到槽位，槽位已绑定时先解绑
func (st *State) Bind(slot, task int) {
	st.checkSlot(slot)
	st.checkTask(task)
	cur := st.slots[slot].Task
	if cur == task {
		return
	}
	if cur != None {
		st.Unbind(slot)
	}

	if st.listener != nil {
		st.listener.BeforeChange(st, slot, task)
	}
	st.slots[slot].Task = task
	st.apply(slot, task, 1)
	st.slotPos[slot] = len(st.taskSlots[task])
	st.taskSlots[task] = append(st.taskSlots[task], slot)
	st.bound++
	if st.listener != nil {
		st.listener.AfterChange(st, slot, task)
	}
}

// Unbind 清除槽位绑定，空槽位为无操作
func (st *State) Unbind(slot int) {
	st.checkSlot(slot)
	task := st.slots[slot].Task
	if task == None {
		return
	}

	if st.listener != nil {
		st.listener.BeforeChange(st, slot, task)
	}
	st.slots[slot].Task = None
	st.apply(slot, task, -1)
	list := st.taskSlots[task]
	pos := st.slotPos[slot]
	last := list[len(list)-1]
	list[pos] = last
	st.slotPos[last] = pos
	st.taskSlots[task] = list[:len(list)-1]
	st.bound--
	if st.listener != nil {
		st.listener.AfterChange(st, slot, task)
	}
}

// apply 按 delta 更新所有计数索引
func (st *State) apply(slot, task, delta int) {
	fs := st.facts
	shift := st.slots[slot].Shift
	person := fs.TaskPerson(task)

	nr, ne := fs.NumRooms(), fs.NumEquipment()
	for _, p := range fs.ShiftPoints(shift) {
		for _, r := range fs.OccupiedRooms(task) {
			st.roomLoad[p*nr+r] += delta
		}
		for _, u := range fs.TaskEquipment(task) {
			st.equipLoad[p*ne+u.Equipment] += delta * u.Units
		}
	}
	st.personShift[person*fs.NumShifts()+shift] += delta
	st.personWeek[person*fs.NumWeeks()+fs.ShiftWeek(shift)] += delta
	st.groupCount[fs.TaskPiGroup(task)] += delta
	st.shiftBound[shift] += delta
}

// Clone 返回不带监听器的独立副本
func (st *State) Clone() *State {
	c := &State{
		facts:       st.facts,
		slots:       append([]Slot(nil), st.slots...),
		shiftSlots:  st.shiftSlots, // 只读
		roomLoad:    append([]int(nil), st.roomLoad...),
		equipLoad:   append([]int(nil), st.equipLoad...),
		personShift: append([]int(nil), st.personShift...),
		personWeek:  append([]int(nil), st.personWeek...),
		groupCount:  append([]int(nil), st.groupCount...),
		shiftBound:  append([]int(nil), st.shiftBound...),
		taskSlots:   make([][]int, len(st.taskSlots)),
		slotPos:     append([]int(nil), st.slotPos...),
		bound:       st.bound,
	}
	for t, list := range st.taskSlots {
		if len(list) > 0 {
			c.taskSlots[t] = append([]int(nil), list...)
		}
	}
	return c
}

// Snapshot 返回每个槽位绑定任务的副本
func (st *State) Snapshot() []int {
	out := make([]int, len(st.slots))
	for i, s := range st.slots {
		out[i] = s.Task
	}
	return out
}

// Restore 通过 Bind/Unbind 恢复到快照，监听器会收到每一次变更
func (st *State) Restore(snapshot []int) {
	if len(snapshot) != len(st.slots) {
		panic(fmt.Sprintf("solution: 快照长度 %d 与槽位数量 %d 不一致", len(snapshot), len(st.slots)))
	}
	for i, t := range snapshot {
		if t == None {
			st.Unbind(i)
		}
	}
	for i, t := range snapshot {
		if t != None {
			st.Bind(i, t)
		}
	}
}

// ShiftSlots 返回班次下的槽位ID
func (st *State) ShiftSlots(shift int) []int { return st.shiftSlots[shift] }

// RoomLoad 返回时间点上房间的占用人数
func (st *State) RoomLoad(point, room int) int {
	return st.roomLoad[point*st.facts.NumRooms()+room]
}

// EquipmentLoad 返回时间点上设备的占用数量
func (st *State) EquipmentLoad(point, equipment int) int {
	return st.equipLoad[point*st.facts.NumEquipment()+equipment]
}

// PersonShiftCount 返回人员在班次中的绑定数
func (st *State) PersonShiftCount(person, shift int) int {
	return st.personShift[person*st.facts.NumShifts()+shift]
}

// PersonWeekCount 返回人员在某周的绑定数
func (st *State) PersonWeekCount(person, week int) int {
	return st.personWeek[person*st.facts.NumWeeks()+week]
}

// PiGroupCount 返回课题组的绑定数
func (st *State) PiGroupCount(group int) int { return st.groupCount[group] }

// ShiftBoundCount 返回班次中已绑定的槽位数
func (st *State) ShiftBoundCount(shift int) int { return st.shiftBound[shift] }

// TaskSlots 返回绑定该任务的槽位（无序，调用方不得修改）
func (st *State) TaskSlots(task int) []int { return st.taskSlots[task] }

// TaskCount 返回任务绑定的槽位数
func (st *State) TaskCount(task int) int { return len(st.taskSlots[task]) }

// BoundCount 返回已绑定槽位总数
func (st *State) BoundCount() int { return st.bound }

// EarliestStart 返回任务最早绑定班次的开始时间
func (st *State) EarliestStart(task int) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, slot := range st.taskSlots[task] {
		start := st.facts.ShiftStart(st.slots[slot].Shift)
		if !found || start.Before(earliest) {
			earliest = start
			found = true
		}
	}
	return earliest, found
}

func (st *State) checkSlot(slot int) {
	if slot < 0 || slot >= len(st.slots) {
		panic(fmt.Sprintf("solution: 槽位 %d 不存在", slot))
	}
}

func (st *State) checkTask(task int) {
	if task < 0 || task >= len(st.taskSlots) {
		panic(fmt.Sprintf("solution: 任务 %d 不存在", task))
	}
}
