package solution

import (
	"math/rand"
	"testing"
	"time"

	"github.com/paiban/mito/pkg/model"
)

func testFacts(t *testing.T) *model.FactSet {
	t.Helper()
	day := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	office := int64(1)
	fs, err := model.Compile(&model.Problem{
		FloorCapacity: 2,
		PiGroups:      []model.PiGroup{{ID: 1}, {ID: 2}},
		Rooms:         []model.Room{{ID: 1, Capacity: 1}, {ID: 2, Capacity: 1}},
		Equipment:     []model.Equipment{{ID: 1, Capacity: 1}},
		Persons: []model.Person{
			{ID: 1, OfficeID: &office, PiGroupID: 1},
			{ID: 2, PiGroupID: 2},
		},
		Shifts: []model.Shift{
			{ID: 1, Start: day, Length: 60},
			{ID: 2, Start: day.Add(24 * time.Hour), Length: 60},
			{ID: 3, Start: day.Add(8 * 24 * time.Hour), Length: 60},
		},
		Tasks: []model.Task{
			{ID: 1, PersonID: 1, RequiredLabs: []int64{2}, RequiredEquipment: []model.EquipmentUsage{{EquipmentID: 1, Units: 2}}},
			{ID: 2, PersonID: 2, RequiredLabs: []int64{2}},
			{ID: 3, PersonID: 2},
		},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return fs
}

// recount 从槽位绑定重新折叠派生索引，用于校验增量维护
func recount(st *State) *State {
	fresh := New(st.facts)
	for i, s := range st.slots {
		if s.Task != None {
			fresh.Bind(i, s.Task)
		}
	}
	return fresh
}

func assertIndicesEqual(t *testing.T, got, want *State) {
	t.Helper()
	eq := func(name string, a, b []int) {
		if len(a) != len(b) {
			t.Fatalf("%s 长度不一致", name)
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("%s[%d] = %d, expected %d", name, i, a[i], b[i])
			}
		}
	}
	eq("roomLoad", got.roomLoad, want.roomLoad)
	eq("equipLoad", got.equipLoad, want.equipLoad)
	eq("personShift", got.personShift, want.personShift)
	eq("personWeek", got.personWeek, want.personWeek)
	eq("groupCount", got.groupCount, want.groupCount)
	eq("shiftBound", got.shiftBound, want.shiftBound)
	if got.bound != want.bound {
		t.Fatalf("bound = %d, expected %d", got.bound, want.bound)
	}
	for task := range got.taskSlots {
		if len(got.taskSlots[task]) != len(want.taskSlots[task]) {
			t.Fatalf("taskSlots[%d] = %v, expected %v", task, got.taskSlots[task], want.taskSlots[task])
		}
		for _, slot := range got.taskSlots[task] {
			if got.slots[slot].Task != task || got.taskSlots[task][got.slotPos[slot]] != slot {
				t.Fatalf("taskSlots[%d] 与槽位 %d 不一致", task, slot)
			}
		}
	}
}

func TestNew(t *testing.T) {
	st := New(testFacts(t))
	if st.NumSlots() != 6 {
		t.Fatalf("NumSlots() = %d, expected 6", st.NumSlots())
	}
	for i := 0; i < st.NumSlots(); i++ {
		s := st.Slot(i)
		if s.ID != i || s.Task != None || s.Shift != i/2 {
			t.Errorf("Slot(%d) = %+v", i, s)
		}
	}
}

func TestBindUnbind(t *testing.T) {
	st := New(testFacts(t))

	st.Bind(0, 0)
	if st.RoomLoad(0, 0) != 1 || st.RoomLoad(0, 1) != 1 {
		t.Errorf("房间占用错误: %d %d", st.RoomLoad(0, 0), st.RoomLoad(0, 1))
	}
	if st.EquipmentLoad(0, 0) != 2 {
		t.Errorf("EquipmentLoad = %d, expected 2", st.EquipmentLoad(0, 0))
	}
	if st.PersonShiftCount(0, 0) != 1 || st.PiGroupCount(0) != 1 || st.ShiftBoundCount(0) != 1 {
		t.Error("人员/课题组/班次计数错误")
	}

	t.Run("已绑定槽位先解绑", func(t *testing.T) {
		st.Bind(0, 1)
		if st.TaskAt(0) != 1 || st.TaskCount(0) != 0 || st.PiGroupCount(0) != 0 {
			t.Errorf("重新绑定未清除旧任务")
		}
		if st.BoundCount() != 1 {
			t.Errorf("BoundCount() = %d, expected 1", st.BoundCount())
		}
	})

	t.Run("空槽位解绑无操作", func(t *testing.T) {
		st.Unbind(3)
		if st.BoundCount() != 1 {
			t.Errorf("BoundCount() = %d", st.BoundCount())
		}
	})

	t.Run("最早开始时间", func(t *testing.T) {
		st.Bind(4, 1)
		start, ok := st.EarliestStart(1)
		if !ok || !start.Equal(st.Facts().ShiftStart(0)) {
			t.Errorf("EarliestStart(1) = %v, %v", start, ok)
		}
		if _, ok := st.EarliestStart(2); ok {
			t.Error("未绑定任务不应有开始时间")
		}
	})
}

func TestBind_Panics(t *testing.T) {
	st := New(testFacts(t))
	tests := []struct {
		name string
		fn   func()
	}{
		{"槽位越界", func() { st.Bind(99, 0) }},
		{"任务越界", func() { st.Bind(0, 7) }},
		{"负数槽位", func() { st.Unbind(-1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn()
		})
	}
}

func TestIndicesMatchFold(t *testing.T) {
	st := New(testFacts(t))
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		slot := rng.Intn(st.NumSlots())
		if rng.Intn(3) == 0 {
			st.Unbind(slot)
		} else {
			st.Bind(slot, rng.Intn(st.Facts().NumTasks()))
		}
		assertIndicesEqual(t, st, recount(st))
	}
}

type recordingListener struct {
	events []string
}

func (l *recordingListener) BeforeChange(st *State, slot, task int) {
	l.events = append(l.events, "before")
}

func (l *recordingListener) AfterChange(st *State, slot, task int) {
	l.events = append(l.events, "after")
}

func TestListener(t *testing.T) {
	st := New(testFacts(t))
	l := &recordingListener{}
	st.SetListener(l)

	st.Bind(0, 0)
	st.Bind(0, 1) // 解绑 + 绑定
	st.Bind(0, 1) // 无变化
	st.Unbind(0)

	if len(l.events) != 8 {
		t.Errorf("events = %v, expected 8", l.events)
	}
}

func TestCloneAndRestore(t *testing.T) {
	st := New(testFacts(t))
	st.Bind(0, 0)
	st.Bind(2, 1)
	snap := st.Snapshot()

	c := st.Clone()
	c.Bind(1, 2)
	c.Unbind(0)
	if st.TaskAt(1) != None || st.TaskAt(0) != 0 {
		t.Error("修改副本影响了原状态")
	}

	c.Restore(snap)
	assertIndicesEqual(t, c, st)
	for i := 0; i < st.NumSlots(); i++ {
		if c.TaskAt(i) != st.TaskAt(i) {
			t.Errorf("Restore 后槽位 %d = %d, expected %d", i, c.TaskAt(i), st.TaskAt(i))
		}
	}
}
