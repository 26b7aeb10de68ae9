package stats

import (
	"strings"
	"testing"
	"time"
)

func TestCoverageAnalyzer_Analyze(t *testing.T) {
	analyzer := NewCoverageAnalyzer()
	metrics := analyzer.Analyze(sampleFacts(), sampleAssignments())

	if metrics.TotalSlots != 4 || metrics.BoundSlots != 3 {
		t.Errorf("slots = %d/%d, expected 3/4", metrics.BoundSlots, metrics.TotalSlots)
	}
	if metrics.SlotUtilization != 75 {
		t.Errorf("SlotUtilization = %.1f, expected 75", metrics.SlotUtilization)
	}
	if metrics.ScheduledTasks != 3 || metrics.TaskCoverage != 75 {
		t.Errorf("tasks = %d (%.1f%%), expected 3 (75%%)", metrics.ScheduledTasks, metrics.TaskCoverage)
	}

	if len(metrics.UnassignedTasks) != 1 || metrics.UnassignedTasks[0].TaskID != 13 {
		t.Fatalf("UnassignedTasks = %+v", metrics.UnassignedTasks)
	}
	if u := metrics.UnassignedTasks[0]; u.PersonName != "王五" || u.DueDate != "2024-03-05" {
		t.Errorf("UnassignedTasks[0] = %+v", u)
	}

	// 观测截止 03-05 09:00，安排在 03-05 09:00，不早于截止时间
	if len(metrics.LateTasks) != 1 || metrics.LateTasks[0].TaskID != 11 {
		t.Errorf("LateTasks = %+v", metrics.LateTasks)
	}
	if len(metrics.RepeatedTasks) != 0 {
		t.Errorf("RepeatedTasks = %v", metrics.RepeatedTasks)
	}

	day := metrics.DailyCoverage["2024-03-04"]
	if day.TotalSlots != 2 || day.Bound != 2 || day.CoverageRate != 100 || day.StaffCount != 2 || day.TotalHours != 8 {
		t.Errorf("DailyCoverage[03-04] = %+v", day)
	}
	day = metrics.DailyCoverage["2024-03-05"]
	if day.TotalSlots != 2 || day.Bound != 1 || day.CoverageRate != 50 {
		t.Errorf("DailyCoverage[03-05] = %+v", day)
	}
}

func TestCoverageAnalyzer_RepeatedTasks(t *testing.T) {
	assignments := sampleAssignments()
	assignments[3] = bound(3, monday.Add(24*time.Hour), 8, 10, 1, "张三")

	metrics := NewCoverageAnalyzer().Analyze(sampleFacts(), assignments)
	if len(metrics.RepeatedTasks) != 1 || metrics.RepeatedTasks[0] != 10 {
		t.Errorf("RepeatedTasks = %v, expected [10]", metrics.RepeatedTasks)
	}
}

func TestCoverageAnalyzer_EmptyInput(t *testing.T) {
	metrics := NewCoverageAnalyzer().Analyze(nil, nil)
	if metrics == nil {
		t.Fatal("Should return empty metrics for nil input")
	}
	if metrics.TaskCoverage != 100 || metrics.SlotUtilization != 0 {
		t.Errorf("metrics = %+v", metrics)
	}
}

func TestCoverageAnalyzer_AnalyzeTimeRange(t *testing.T) {
	metrics := NewCoverageAnalyzer().AnalyzeTimeRange(sampleFacts(), sampleAssignments(),
		monday, monday.Add(12*time.Hour))

	if metrics.TotalSlots != 2 {
		t.Errorf("TotalSlots = %d, expected 2", metrics.TotalSlots)
	}
	if len(metrics.UnassignedTasks) != 2 {
		t.Errorf("UnassignedTasks = %d, expected 2", len(metrics.UnassignedTasks))
	}
}

func TestCoverageAnalyzer_Report(t *testing.T) {
	analyzer := NewCoverageAnalyzer()
	report := analyzer.GenerateCoverageReport(analyzer.Analyze(sampleFacts(), sampleAssignments()))

	for _, want := range []string{"总槽位数: 4", "任务覆盖率: 75.0%", "王五 - 表征", "【超出截止日期】"} {
		if !strings.Contains(report, want) {
			t.Errorf("报告缺少 %q:\n%s", want, report)
		}
	}
}
