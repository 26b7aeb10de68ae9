package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paiban/mito/pkg/errors"
	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/optimizer"
)

var monday = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func int64Ptr(v int64) *int64 { return &v }

func labProblem() *model.Problem {
	office := int64(1)
	due := monday.Add(3 * 24 * time.Hour)
	var shifts []model.Shift
	for d := 0; d < 5; d++ {
		shifts = append(shifts, model.Shift{ID: int64(d + 1), Start: monday.Add(time.Duration(d*24) * time.Hour), Length: 240})
	}
	return &model.Problem{
		FloorCapacity: 2,
		PiGroups:      []model.PiGroup{{ID: 1, Name: "结构组"}, {ID: 2, Name: "合成组"}},
		Rooms:         []model.Room{{ID: 1, Name: "办公室", Capacity: 2}, {ID: 2, Name: "洁净室", Capacity: 1}},
		Equipment:     []model.Equipment{{ID: 1, Name: "电镜", Capacity: 1}},
		Persons: []model.Person{
			{ID: 1, Name: "张三", OfficeID: &office, PiGroupID: 1, WeeklyShiftLimit: 2},
			{ID: 2, Name: "李四", OfficeID: &office, PiGroupID: 2},
			{ID: 3, Name: "王五", PiGroupID: 2},
		},
		Shifts: shifts,
		Tasks: []model.Task{
			{ID: 11, PersonID: 1, Name: "制样", RequiredLabs: []int64{2}},
			{ID: 12, PersonID: 1, Name: "观测", PrecedingTaskID: int64Ptr(11),
				RequiredEquipment: []model.EquipmentUsage{{EquipmentID: 1, Units: 1}}},
			{ID: 13, PersonID: 1, Name: "复测", DueDate: &due},
			{ID: 14, PersonID: 2, Name: "合成", Priority: 3, RequiredLabs: []int64{2}},
			{ID: 15, PersonID: 3, Name: "表征", PrecedingTaskID: int64Ptr(99),
				RequiredEquipment: []model.EquipmentUsage{{EquipmentID: 1, Units: 1}}},
		},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return monday.Add(-24 * time.Hour) }
	cfg.Optimization.MaxIterations = 300
	cfg.Optimization.MaxTime = 0
	cfg.Optimization.StopOnPlateau = false
	cfg.Optimization.Seed = 17
	cfg.Optimization.VerifyScore = true
	return cfg
}

func compile(t *testing.T) *model.FactSet {
	t.Helper()
	fs, err := model.Compile(labProblem())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return fs
}

type bestCounter struct{ bests int }

func (c *bestCounter) StepCompleted(int, constraint.Score, bool) {}
func (c *bestCounter) BestImproved(int, constraint.Score)        { c.bests++ }

func TestSolve(t *testing.T) {
	fs := compile(t)
	engine := NewEngine(testConfig())
	obs := &bestCounter{}
	engine.SetObserver(obs)

	result, err := engine.Solve(context.Background(), fs)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}

	if result.RunID == uuid.Nil {
		t.Error("RunID 不应为空")
	}
	if len(result.Assignments) != 10 {
		t.Fatalf("len(Assignments) = %d, expected 10", len(result.Assignments))
	}
	if !result.Feasible || result.Score.Hard != 0 {
		t.Errorf("Score = %v, expected feasible", result.Score)
	}
	if result.Termination != optimizer.TerminationMaxSteps {
		t.Errorf("Termination = %s", result.Termination)
	}
	if result.Construction == nil || result.Search == nil {
		t.Fatal("应包含构造与搜索统计")
	}
	if result.Score.Compare(result.Search.InitialScore) < 0 {
		t.Errorf("最终得分 %v 劣于构造得分 %v", result.Score, result.Search.InitialScore)
	}
	if result.Violations == nil || !result.Violations.IsValid {
		t.Errorf("Violations = %+v", result.Violations)
	}

	if len(result.Warnings) == 0 {
		t.Error("应包含缺失前置任务的警告")
	}

	bound := 0
	for i, a := range result.Assignments {
		if a.SlotID != i {
			t.Errorf("Assignments[%d].SlotID = %d", i, a.SlotID)
		}
		if a.Bound() {
			bound++
			if a.PersonName == "" || a.PersonID == nil {
				t.Errorf("Assignments[%d] 缺少人员信息", i)
			}
		}
		if !a.End.After(a.Start) {
			t.Errorf("Assignments[%d] 结束时间不晚于开始时间", i)
		}
	}
	if bound+len(result.Unassigned) < fs.NumTasks() {
		t.Errorf("bound %d + unassigned %d < tasks %d", bound, len(result.Unassigned), fs.NumTasks())
	}
}

func TestSolve_Deterministic(t *testing.T) {
	var first *Result
	for i := 0; i < 3; i++ {
		result, err := Solve(context.Background(), compile(t), testConfig())
		if err != nil {
			t.Fatalf("Solve() error = %v", err)
		}
		if first == nil {
			first = result
			continue
		}
		if result.Score != first.Score {
			t.Fatalf("第 %d 次得分 %v != %v", i, result.Score, first.Score)
		}
		for j := range first.Assignments {
			a, b := first.Assignments[j], result.Assignments[j]
			if (a.TaskID == nil) != (b.TaskID == nil) || (a.TaskID != nil && *a.TaskID != *b.TaskID) {
				t.Fatalf("第 %d 次槽位 %d 分配不同", i, j)
			}
		}
	}
}

func TestSolve_Phases(t *testing.T) {
	t.Run("只构造", func(t *testing.T) {
		cfg := testConfig()
		cfg.SkipLocalSearch = true
		result, err := Solve(context.Background(), compile(t), cfg)
		if err != nil {
			t.Fatalf("Solve() error = %v", err)
		}
		if result.Search != nil || result.Termination != "" {
			t.Error("跳过局部搜索时不应有搜索结果")
		}
		if result.Construction.AssignedTasks == 0 {
			t.Error("构造阶段应安排任务")
		}
	})

	t.Run("只搜索", func(t *testing.T) {
		cfg := testConfig()
		cfg.SkipConstruction = true
		result, err := Solve(context.Background(), compile(t), cfg)
		if err != nil {
			t.Fatalf("Solve() error = %v", err)
		}
		if result.Construction != nil {
			t.Error("跳过构造时不应有构造统计")
		}
		if result.Search.InitialScore != (constraint.Score{}) {
			t.Errorf("空状态初始得分应为 0: %v", result.Search.InitialScore)
		}
	})
}

func TestSolve_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Solve(ctx, compile(t), testConfig())
	if err != nil {
		t.Fatalf("取消不应返回错误: %v", err)
	}
	if result.Termination != optimizer.TerminationCancelled {
		t.Errorf("Termination = %s, expected %s", result.Termination, optimizer.TerminationCancelled)
	}
	if len(result.Unassigned) != 5 {
		t.Errorf("Unassigned = %v, expected all tasks", result.Unassigned)
	}
}

func TestSolve_NilFacts(t *testing.T) {
	_, err := Solve(context.Background(), nil, DefaultConfig())
	if !errors.Is(err, errors.CodeEmptyProblem) {
		t.Errorf("err = %v, expected %s", err, errors.CodeEmptyProblem)
	}
}

func TestAppendUnique(t *testing.T) {
	got := appendUnique([]string{"a"}, "b", "a", "b", "c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("appendUnique() = %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("appendUnique() = %v, expected %v", got, want)
		}
	}
}
