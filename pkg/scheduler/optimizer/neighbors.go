package optimizer

import (
	"math/rand"
	"time"

	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler/solution"
)

// MoveType 邻域移动类型
type MoveType int

const (
	MoveAssign   MoveType = iota // 将未安排的任务绑定到槽位
	MoveUnassign                 // 清除槽位
	MoveSwap                     // 交换两个槽位的任务，任一侧可为空
)

// String 返回移动类型名称
func (t MoveType) String() string {
	switch t {
	case MoveAssign:
		return "assign"
	case MoveUnassign:
		return "unassign"
	case MoveSwap:
		return "swap"
	default:
		return "unknown"
	}
}

// Binding 槽位与任务的绑定
type Binding struct {
	Slot int
	Task int
}

// key 禁忌表键
func (b Binding) key() uint64 {
	return uint64(uint32(b.Slot))<<32 | uint64(uint32(b.Task))
}

// Move 邻域移动，Apply 时记录原绑定以便精确撤销
type Move struct {
	Type  MoveType
	Slot  int
	Other int // 仅 MoveSwap
	Task  int // 仅 MoveAssign

	prior [2]int
}

// Apply 执行移动，只通过 Bind/Unbind 修改状态
func (m *Move) Apply(st *solution.State) {
	switch m.Type {
	case MoveAssign:
		m.prior[0] = st.TaskAt(m.Slot)
		st.Bind(m.Slot, m.Task)
	case MoveUnassign:
		m.prior[0] = st.TaskAt(m.Slot)
		st.Unbind(m.Slot)
	case MoveSwap:
		a, b := st.TaskAt(m.Slot), st.TaskAt(m.Other)
		m.prior[0], m.prior[1] = a, b
		st.Unbind(m.Slot)
		st.Unbind(m.Other)
		if b != solution.None {
			st.Bind(m.Slot, b)
		}
		if a != solution.None {
			st.Bind(m.Other, a)
		}
	}
}

// Undo 恢复 Apply 之前的绑定
func (m *Move) Undo(st *solution.State) {
	switch m.Type {
	case MoveAssign, MoveUnassign:
		restore(st, m.Slot, m.prior[0])
	case MoveSwap:
		st.Unbind(m.Slot)
		st.Unbind(m.Other)
		restore(st, m.Slot, m.prior[0])
		restore(st, m.Other, m.prior[1])
	}
}

func restore(st *solution.State, slot, task int) {
	if task == solution.None {
		st.Unbind(slot)
		return
	}
	st.Bind(slot, task)
}

// Added 返回移动将新增的绑定（基于当前状态，Apply 前调用）
func (m *Move) Added(st *solution.State) []Binding {
	switch m.Type {
	case MoveAssign:
		return []Binding{{Slot: m.Slot, Task: m.Task}}
	case MoveSwap:
		var out []Binding
		if b := st.TaskAt(m.Other); b != solution.None {
			out = append(out, Binding{Slot: m.Slot, Task: b})
		}
		if a := st.TaskAt(m.Slot); a != solution.None {
			out = append(out, Binding{Slot: m.Other, Task: a})
		}
		return out
	}
	return nil
}

// Removed 返回最近一次 Apply 移除的绑定
func (m *Move) Removed() []Binding {
	var out []Binding
	if m.prior[0] != solution.None {
		out = append(out, Binding{Slot: m.Slot, Task: m.prior[0]})
	}
	if m.Type == MoveSwap && m.prior[1] != solution.None {
		out = append(out, Binding{Slot: m.Other, Task: m.prior[1]})
	}
	return out
}

// NeighborhoodGenerator 邻域生成器
// 对 Assign/Swap 只在任务截止日期或前置任务附近的时间窗口内选择槽位，窗口为空时退回全部槽位
type NeighborhoodGenerator struct {
	rng         *rand.Rand
	facts       *model.FactSet
	window      time.Duration
	moveWeights map[MoveType]float64

	dueShifts [][]int // 每个任务截止日期窗口内的班次，nil 表示无截止日期
	allSlots  []int

	unassigned []int
	bound      []int
}

// NewNeighborhoodGenerator 创建邻域生成器
func NewNeighborhoodGenerator(facts *model.FactSet, windowDays int, rng *rand.Rand) *NeighborhoodGenerator {
	n := &NeighborhoodGenerator{
		rng:    rng,
		facts:  facts,
		window: time.Duration(windowDays) * 24 * time.Hour,
		moveWeights: map[MoveType]float64{
			MoveAssign:   0.40,
			MoveSwap:     0.40,
			MoveUnassign: 0.20,
		},
		dueShifts: make([][]int, facts.NumTasks()),
	}

	for s := 0; s < facts.NumShifts(); s++ {
		for k := 0; k < facts.SlotCapacity(s); k++ {
			n.allSlots = append(n.allSlots, len(n.allSlots))
		}
	}

	for t := 0; t < facts.NumTasks(); t++ {
		due := facts.Task(t).DueDate
		if due == nil || windowDays <= 0 {
			continue
		}
		from := due.Add(-n.window)
		shifts := make([]int, 0)
		for s := 0; s < facts.NumShifts(); s++ {
			start := facts.ShiftStart(s)
			if !start.Before(from) && start.Before(*due) {
				shifts = append(shifts, s)
			}
		}
		n.dueShifts[t] = shifts
	}
	return n
}

// Generate 采样至多 size 个候选移动
func (n *NeighborhoodGenerator) Generate(st *solution.State, size int) []*Move {
	n.prepare(st)
	if len(n.unassigned) == 0 && len(n.bound) == 0 {
		return nil
	}

	moves := make([]*Move, 0, size)
	for attempts := 0; len(moves) < size && attempts < size*4; attempts++ {
		var m *Move
		switch n.selectMoveType() {
		case MoveAssign:
			m = n.generateAssignMove(st)
		case MoveUnassign:
			m = n.generateUnassignMove()
		default:
			m = n.generateSwapMove(st)
		}
		if m != nil {
			moves = append(moves, m)
		}
	}
	return moves
}

// prepare 收集当前未安排的任务和已绑定的槽位
func (n *NeighborhoodGenerator) prepare(st *solution.State) {
	n.unassigned = n.unassigned[:0]
	for t := 0; t < n.facts.NumTasks(); t++ {
		if st.TaskCount(t) == 0 {
			n.unassigned = append(n.unassigned, t)
		}
	}
	n.bound = n.bound[:0]
	for i := 0; i < st.NumSlots(); i++ {
		if st.TaskAt(i) != solution.None {
			n.bound = append(n.bound, i)
		}
	}
}

// selectMoveType 按权重选择移动类型，遍历顺序固定以保证可复现
func (n *NeighborhoodGenerator) selectMoveType() MoveType {
	r := n.rng.Float64()
	cumulative := 0.0
	for _, t := range []MoveType{MoveAssign, MoveSwap, MoveUnassign} {
		cumulative += n.moveWeights[t]
		if r < cumulative {
			return t
		}
	}
	return MoveSwap
}

// generateAssignMove 将未安排的任务放到空槽位或优先级更低的任务所在槽位
func (n *NeighborhoodGenerator) generateAssignMove(st *solution.State) *Move {
	if len(n.unassigned) == 0 {
		return nil
	}
	task := n.unassigned[n.rng.Intn(len(n.unassigned))]
	slots := n.CandidateSlots(st, task)
	if len(slots) == 0 {
		return nil
	}
	slot := slots[n.rng.Intn(len(slots))]
	if cur := st.TaskAt(slot); cur != solution.None &&
		n.facts.Task(cur).Priority >= n.facts.Task(task).Priority {
		return nil
	}
	return &Move{Type: MoveAssign, Slot: slot, Task: task}
}

// generateUnassignMove 清除一个已绑定的槽位
func (n *NeighborhoodGenerator) generateUnassignMove() *Move {
	if len(n.bound) == 0 {
		return nil
	}
	return &Move{Type: MoveUnassign, Slot: n.bound[n.rng.Intn(len(n.bound))]}
}

// generateSwapMove 将已绑定槽位的任务与其窗口内另一槽位交换
func (n *NeighborhoodGenerator) generateSwapMove(st *solution.State) *Move {
	if len(n.bound) == 0 {
		return nil
	}
	a := n.bound[n.rng.Intn(len(n.bound))]
	slots := n.CandidateSlots(st, st.TaskAt(a))
	if len(slots) == 0 {
		return nil
	}
	b := slots[n.rng.Intn(len(slots))]
	if b == a || st.TaskAt(a) == st.TaskAt(b) {
		return nil
	}
	return &Move{Type: MoveSwap, Slot: a, Other: b}
}

// CandidateSlots 返回任务的候选槽位
func (n *NeighborhoodGenerator) CandidateSlots(st *solution.State, task int) []int {
	if n.window <= 0 {
		return n.allSlots
	}

	shifts := n.dueShifts[task]
	pred := n.facts.Predecessor(task)
	predStart, hasPred := time.Time{}, false
	if pred >= 0 && pred != task {
		predStart, hasPred = st.EarliestStart(pred)
	}

	if shifts == nil && !hasPred {
		return n.allSlots
	}
	if shifts == nil {
		shifts = make([]int, n.facts.NumShifts())
		for s := range shifts {
			shifts[s] = s
		}
	}

	var slots []int
	for _, s := range shifts {
		if hasPred {
			start := n.facts.ShiftStart(s)
			if start.Before(predStart) || start.After(predStart.Add(n.window)) {
				continue
			}
		}
		slots = append(slots, st.ShiftSlots(s)...)
	}
	if len(slots) == 0 {
		return n.allSlots
	}
	return slots
}
