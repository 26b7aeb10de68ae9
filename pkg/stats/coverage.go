// Package stats 提供排班结果统计分析功能
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler"
)

// CoverageMetrics 覆盖率指标
type CoverageMetrics struct {
	// 槽位利用
	TotalSlots      int     `json:"total_slots"`      // 总槽位数
	BoundSlots      int     `json:"bound_slots"`      // 已绑定槽位数
	SlotUtilization float64 `json:"slot_utilization"` // 槽位利用率 (%)

	// 任务覆盖
	TotalTasks     int     `json:"total_tasks"`     // 总任务数
	ScheduledTasks int     `json:"scheduled_tasks"` // 已安排任务数
	TaskCoverage   float64 `json:"task_coverage"`   // 任务覆盖率 (%)

	// 按日期统计
	DailyCoverage map[string]DayCoverage `json:"daily_coverage"`

	// 问题识别
	UnassignedTasks []UnassignedTask `json:"unassigned_tasks"` // 未安排的任务
	LateTasks       []LateTask       `json:"late_tasks"`       // 未在截止日期前安排
	RepeatedTasks   []int64          `json:"repeated_tasks"`   // 被安排多次的任务
}

// DayCoverage 每日覆盖情况
type DayCoverage struct {
	Date         string  `json:"date"`
	TotalSlots   int     `json:"total_slots"`
	Bound        int     `json:"bound"`
	CoverageRate float64 `json:"coverage_rate"`
	StaffCount   int     `json:"staff_count"` // 当日不同人员数
	TotalHours   float64 `json:"total_hours"`
}

// UnassignedTask 未安排的任务
type UnassignedTask struct {
	TaskID          int64  `json:"task_id"`
	TaskName        string `json:"task_name"`
	PersonID        int64  `json:"person_id"`
	PersonName      string `json:"person_name"`
	Priority        int    `json:"priority"`
	DueDate         string `json:"due_date,omitempty"`
	PrecedingTaskID *int64 `json:"preceding_task_id,omitempty"`
}

// LateTask 安排时间不早于截止日期的任务
type LateTask struct {
	TaskID   int64  `json:"task_id"`
	TaskName string `json:"task_name"`
	DueDate  string `json:"due_date"`
	Start    string `json:"start"`
}

const dateLayout = "2006-01-02"

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct{}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{}
}

// Analyze 分析覆盖率
func (c *CoverageAnalyzer) Analyze(facts *model.FactSet, assignments []scheduler.Assignment) *CoverageMetrics {
	metrics := &CoverageMetrics{
		TotalSlots:      len(assignments),
		DailyCoverage:   make(map[string]DayCoverage),
		UnassignedTasks: make([]UnassignedTask, 0),
		LateTasks:       make([]LateTask, 0),
		RepeatedTasks:   make([]int64, 0),
	}
	if facts != nil {
		metrics.TotalTasks = facts.NumTasks()
	}

	taskSlots := make(map[int64]int)
	dailyStats := make(map[string]*DayCoverage)
	dailyPersons := make(map[string]map[int64]bool)

	for _, a := range assignments {
		date := a.Start.Format(dateLayout)
		day, exists := dailyStats[date]
		if !exists {
			day = &DayCoverage{Date: date}
			dailyStats[date] = day
			dailyPersons[date] = make(map[int64]bool)
		}
		day.TotalSlots++

		if !a.Bound() {
			continue
		}
		metrics.BoundSlots++
		day.Bound++
		day.TotalHours += a.End.Sub(a.Start).Hours()
		if a.PersonID != nil {
			dailyPersons[date][*a.PersonID] = true
		}

		taskSlots[*a.TaskID]++
		if facts == nil {
			continue
		}
		if t, ok := facts.TaskIndex(*a.TaskID); ok {
			task := facts.Task(t)
			if task.DueDate != nil && !a.Start.Before(*task.DueDate) {
				metrics.LateTasks = append(metrics.LateTasks, LateTask{
					TaskID:   task.ID,
					TaskName: task.Name,
					DueDate:  task.DueDate.Format(dateLayout),
					Start:    a.Start.Format(time.RFC3339),
				})
			}
		}
	}

	for date, day := range dailyStats {
		if day.TotalSlots > 0 {
			day.CoverageRate = float64(day.Bound) / float64(day.TotalSlots) * 100
		}
		day.StaffCount = len(dailyPersons[date])
		metrics.DailyCoverage[date] = *day
	}

	for id, n := range taskSlots {
		if n > 1 {
			metrics.RepeatedTasks = append(metrics.RepeatedTasks, id)
		}
	}
	sort.Slice(metrics.RepeatedTasks, func(i, j int) bool { return metrics.RepeatedTasks[i] < metrics.RepeatedTasks[j] })

	if facts != nil {
		for t := 0; t < facts.NumTasks(); t++ {
			task := facts.Task(t)
			if taskSlots[task.ID] > 0 {
				metrics.ScheduledTasks++
				continue
			}
			person := facts.Person(facts.TaskPerson(t))
			u := UnassignedTask{
				TaskID:          task.ID,
				TaskName:        task.Name,
				PersonID:        person.ID,
				PersonName:      person.Name,
				Priority:        task.Priority,
				PrecedingTaskID: task.PrecedingTaskID,
			}
			if task.DueDate != nil {
				u.DueDate = task.DueDate.Format(dateLayout)
			}
			metrics.UnassignedTasks = append(metrics.UnassignedTasks, u)
		}
	}

	if metrics.TotalSlots > 0 {
		metrics.SlotUtilization = float64(metrics.BoundSlots) / float64(metrics.TotalSlots) * 100
	}
	if metrics.TotalTasks > 0 {
		metrics.TaskCoverage = float64(metrics.ScheduledTasks) / float64(metrics.TotalTasks) * 100
	} else {
		metrics.TaskCoverage = 100
	}

	return metrics
}

// AnalyzeTimeRange 分析 [start, end) 内开始的槽位
func (c *CoverageAnalyzer) AnalyzeTimeRange(facts *model.FactSet, assignments []scheduler.Assignment, start, end time.Time) *CoverageMetrics {
	var filtered []scheduler.Assignment
	for _, a := range assignments {
		if !a.Start.Before(start) && a.Start.Before(end) {
			filtered = append(filtered, a)
		}
	}
	return c.Analyze(facts, filtered)
}

// GenerateCoverageReport 生成覆盖率报告
func (c *CoverageAnalyzer) GenerateCoverageReport(metrics *CoverageMetrics) string {
	var b strings.Builder
	b.WriteString("=== 覆盖率分析报告 ===\n\n")

	b.WriteString("【整体情况】\n")
	fmt.Fprintf(&b, "  总槽位数: %d\n", metrics.TotalSlots)
	fmt.Fprintf(&b, "  已绑定槽位: %d\n", metrics.BoundSlots)
	fmt.Fprintf(&b, "  槽位利用率: %.1f%%\n", metrics.SlotUtilization)
	fmt.Fprintf(&b, "  任务覆盖率: %.1f%% (%d/%d)\n\n", metrics.TaskCoverage, metrics.ScheduledTasks, metrics.TotalTasks)

	if len(metrics.UnassignedTasks) > 0 {
		b.WriteString("【未安排任务】\n")
		for _, u := range metrics.UnassignedTasks {
			fmt.Fprintf(&b, "  - %s - %s (任务 %d, 优先级 %d)\n", u.PersonName, u.TaskName, u.TaskID, u.Priority)
		}
		b.WriteString("\n")
	}

	if len(metrics.LateTasks) > 0 {
		b.WriteString("【超出截止日期】\n")
		for _, l := range metrics.LateTasks {
			fmt.Fprintf(&b, "  - %s 截止 %s，安排于 %s\n", l.TaskName, l.DueDate, l.Start)
		}
	}

	return b.String()
}
