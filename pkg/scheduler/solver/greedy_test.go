package solver

import (
	"context"
	"testing"
	"time"

	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/constraint/builtin"
	"github.com/paiban/mito/pkg/scheduler/solution"
)

var now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func int64Ptr(v int64) *int64 { return &v }

func compile(t *testing.T, p *model.Problem) *model.FactSet {
	t.Helper()
	fs, err := model.Compile(p)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return fs
}

func chainProblem() *model.Problem {
	due := now.Add(10 * 24 * time.Hour)
	return &model.Problem{
		FloorCapacity: 1,
		PiGroups:      []model.PiGroup{{ID: 1}},
		Persons:       []model.Person{{ID: 1, PiGroupID: 1}},
		Shifts:        []model.Shift{{ID: 1, Start: now.Add(24 * time.Hour), Length: 60}},
		Tasks: []model.Task{
			{ID: 1, PersonID: 1},                                                           // 0
			{ID: 2, PersonID: 1, PrecedingTaskID: int64Ptr(1)},                             // 1
			{ID: 3, PersonID: 1, PrecedingTaskID: int64Ptr(2), ImmediatelyFollows: true},   // 2+5
			{ID: 4, PersonID: 1, PrecedingTaskID: int64Ptr(404)},                           // 1，缺失
			{ID: 5, PersonID: 1, DueDate: &due},                                            // -10
			{ID: 6, PersonID: 1, PrecedingTaskID: int64Ptr(7)},                             // 循环
			{ID: 7, PersonID: 1, PrecedingTaskID: int64Ptr(6)},                             // 循环
		},
	}
}

func TestDifficulty(t *testing.T) {
	fs := compile(t, chainProblem())

	tests := []struct {
		name    string
		task    int
		want    int
		warning bool
	}{
		{"无前置", 0, 0, false},
		{"一级前置", 1, 1, false},
		{"两级前置且紧接", 2, 7, false},
		{"缺失前置引用", 3, 1, true},
		{"截止日期", 4, -10, false},
		{"循环", 5, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, w := Difficulty(fs, tt.task, now)
			if got != tt.want {
				t.Errorf("Difficulty() = %d, expected %d", got, tt.want)
			}
			if (w != "") != tt.warning {
				t.Errorf("warning = %q, expected warning=%v", w, tt.warning)
			}
		})
	}
}

func TestOrderTasks(t *testing.T) {
	fs := compile(t, chainProblem())
	order, warnings := OrderTasks(fs, now)

	// 难度: t3=7, t6=2, t7=2, t2=1, t4=1, t1=0, t5=-10
	want := []int64{3, 6, 7, 2, 4, 1, 5}
	for i, idx := range order {
		if fs.Task(idx).ID != want[i] {
			t.Fatalf("order[%d] = task %d, expected %d", i, fs.Task(idx).ID, want[i])
		}
	}
	if len(warnings) != 3 {
		t.Errorf("warnings = %v, expected 3", warnings)
	}
}

func TestOrderSlots(t *testing.T) {
	fs := compile(t, &model.Problem{
		FloorCapacity: 1,
		Shifts: []model.Shift{
			{ID: 1, Start: now.Add(5 * 24 * time.Hour), Length: 60},
			{ID: 2, Start: now.Add(-3 * 24 * time.Hour), Length: 60}, // 过去，强度取 0
			{ID: 3, Start: now.Add(2 * time.Hour), Length: 60},
			{ID: 4, Start: now.Add(24 * time.Hour), Length: 60},
		},
	})
	st := solution.New(fs)
	got := OrderSlots(st, now)
	want := []int{1, 2, 3, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("OrderSlots() = %v, expected %v", got, want)
		}
	}
}

func TestFeasible(t *testing.T) {
	office := int64(1)
	fs := compile(t, &model.Problem{
		FloorCapacity: 2,
		PiGroups:      []model.PiGroup{{ID: 1}},
		Rooms:         []model.Room{{ID: 1, Capacity: 1}},
		Equipment:     []model.Equipment{{ID: 1, Capacity: 1}},
		Persons: []model.Person{
			{ID: 1, OfficeID: &office, PiGroupID: 1},
			{ID: 2, PiGroupID: 1, WeeklyShiftLimit: 1},
			{ID: 3, PiGroupID: 1},
			{ID: 4, OfficeID: &office, PiGroupID: 1,
				Unavailable: []model.TimeRange{{Start: now.Add(48 * time.Hour), End: now.Add(49 * time.Hour)}}},
		},
		Shifts: []model.Shift{
			{ID: 1, Start: now.Add(24 * time.Hour), Length: 60},
			{ID: 2, Start: now.Add(48 * time.Hour), Length: 60},
		},
		Tasks: []model.Task{
			{ID: 1, PersonID: 1},
			{ID: 2, PersonID: 1},
			{ID: 3, PersonID: 2, RequiredEquipment: []model.EquipmentUsage{{EquipmentID: 1, Units: 1}}},
			{ID: 4, PersonID: 2, RequiredEquipment: []model.EquipmentUsage{{EquipmentID: 1, Units: 2}}},
			{ID: 5, PersonID: 3, PrecedingTaskID: int64Ptr(3)},
			{ID: 6, PersonID: 4},
		},
	})
	st := solution.New(fs)
	st.Bind(0, 0)

	tests := []struct {
		name string
		slot int
		task int
		want bool
	}{
		{"槽位已占用", 0, 1, false},
		{"人员同班次已预约", 1, 1, false},
		{"房间已满", 1, 5, false},
		{"设备超出容量", 1, 3, false},
		{"人员不可用", 2, 5, false},
		{"可行", 1, 2, true},
		{"前置未安排不阻止", 1, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Feasible(st, tt.slot, tt.task); got != tt.want {
				t.Errorf("Feasible(%d, %d) = %v, expected %v", tt.slot, tt.task, got, tt.want)
			}
		})
	}

	t.Run("每周上限已满", func(t *testing.T) {
		st.Bind(1, 2)
		if Feasible(st, 3, 3) {
			t.Error("达到每周上限后不应可行")
		}
	})

	t.Run("不晚于已安排的后继", func(t *testing.T) {
		st2 := solution.New(fs)
		st2.Bind(0, 4) // 后继安排在班次0
		if Feasible(st2, 2, 2) {
			t.Error("前置任务不应安排在后继之后")
		}
		if !Feasible(st2, 1, 2) {
			t.Error("与后继同时开始应可行")
		}
	})

	t.Run("不早于已安排的前置", func(t *testing.T) {
		st3 := solution.New(fs)
		st3.Bind(2, 2) // 前置安排在班次1
		if Feasible(st3, 0, 4) {
			t.Error("后继任务不应安排在前置之前")
		}
	})
}

func TestGreedySolver_Solve(t *testing.T) {
	fs := compile(t, chainProblem())
	manager := builtin.NewDefaultManager(constraint.DefaultWeights())
	s := NewGreedySolver(manager)
	s.SetClock(fixedClock)

	st := solution.New(fs)
	result, err := s.Solve(context.Background(), st)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}

	// 只有一个槽位，难度最高的任务获得它
	if st.TaskAt(0) != 2 {
		t.Errorf("TaskAt(0) = %d, expected task index 2", st.TaskAt(0))
	}
	if result.Statistics.AssignedTasks != 1 || result.Statistics.UnassignedTasks != 6 {
		t.Errorf("Statistics = %+v", result.Statistics)
	}
	if len(result.Warnings) != 3 {
		t.Errorf("Warnings = %v", result.Warnings)
	}
	if result.Score != manager.Evaluate(st) {
		t.Errorf("Score = %v, expected %v", result.Score, manager.Evaluate(st))
	}
}

func labProblem() *model.Problem {
	office := int64(1)
	var shifts []model.Shift
	for d := 0; d < 6; d++ {
		shifts = append(shifts, model.Shift{ID: int64(d + 1), Start: now.Add(time.Duration(d*24) * time.Hour), Length: 240})
	}
	var tasks []model.Task
	for i := 0; i < 12; i++ {
		tasks = append(tasks, model.Task{ID: int64(100 + i), PersonID: int64(i%3 + 1), RequiredLabs: []int64{2}, Priority: i % 4})
	}
	return &model.Problem{
		FloorCapacity: 3,
		PiGroups:      []model.PiGroup{{ID: 1}, {ID: 2}},
		Rooms:         []model.Room{{ID: 1, Capacity: 3}, {ID: 2, Capacity: 2}},
		Persons: []model.Person{
			{ID: 1, OfficeID: &office, PiGroupID: 1, WeeklyShiftLimit: 3},
			{ID: 2, OfficeID: &office, PiGroupID: 2},
			{ID: 3, PiGroupID: 2},
		},
		Shifts: shifts,
		Tasks:  tasks,
	}
}

func TestGreedySolver_NoDoubleBooking(t *testing.T) {
	fs := compile(t, labProblem())
	s := NewGreedySolver(nil)
	s.SetClock(fixedClock)

	st := solution.New(fs)
	st.Bind(5, 0) // 已绑定的任务不会再次安排
	if _, err := s.Solve(context.Background(), st); err != nil {
		t.Fatalf("Solve() error = %v", err)
	}

	for task := 0; task < fs.NumTasks(); task++ {
		if st.TaskCount(task) > 1 {
			t.Errorf("任务 %d 被安排了 %d 次", task, st.TaskCount(task))
		}
	}

	manager := builtin.NewDefaultManager(constraint.DefaultWeights())
	if score := manager.Evaluate(st); !score.Feasible() {
		t.Errorf("构造结果应无硬约束违反: %v", score)
	}
}

func TestGreedySolver_Deterministic(t *testing.T) {
	run := func() []int {
		fs := compile(t, labProblem())
		s := NewGreedySolver(nil)
		s.SetClock(fixedClock)
		st := solution.New(fs)
		if _, err := s.Solve(context.Background(), st); err != nil {
			t.Fatalf("Solve() error = %v", err)
		}
		return st.Snapshot()
	}

	first := run()
	for i := 0; i < 3; i++ {
		again := run()
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("第 %d 次运行槽位 %d 不同: %d != %d", i, j, again[j], first[j])
			}
		}
	}
}

func TestGreedySolver_Cancelled(t *testing.T) {
	fs := compile(t, labProblem())
	s := NewGreedySolver(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := solution.New(fs)
	result, err := s.Solve(ctx, st)
	if err == nil {
		t.Fatal("expected context error")
	}
	if result == nil || st.BoundCount() != 0 {
		t.Error("取消后应返回结果且不绑定任何任务")
	}
}
