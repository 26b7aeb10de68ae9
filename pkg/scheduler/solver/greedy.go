// Package solver 提供构造初始解的求解器
package solver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/paiban/mito/pkg/logger"
	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/solution"
)

// Solver 求解器接口
type Solver interface {
	// Solve 在给定状态上生成分配
	Solve(ctx context.Context, st *solution.State) (*Result, error)

	// Name 返回求解器名称
	Name() string
}

// Result 求解结果
type Result struct {
	Score      constraint.Score `json:"score"`
	Statistics *Statistics      `json:"statistics"`
	Warnings   []string         `json:"warnings,omitempty"`
	Duration   time.Duration    `json:"duration"`
	Message    string           `json:"message,omitempty"`
}

// Statistics 构造统计
type Statistics struct {
	TotalTasks      int     `json:"total_tasks"`
	AssignedTasks   int     `json:"assigned_tasks"`
	UnassignedTasks int     `json:"unassigned_tasks"`
	TotalSlots      int     `json:"total_slots"`
	AssignRate      float64 `json:"assign_rate"`
	Iterations      int     `json:"iterations"`
}

// GreedySolver 构造启发式求解器
// 按难度降序处理任务，按强度为每个任务选择第一个可行槽位，不回溯
type GreedySolver struct {
	constraintManager *constraint.Manager
	logger            *logger.SolverLogger
	now               func() time.Time
}

// NewGreedySolver 创建构造启发式求解器
func NewGreedySolver(cm *constraint.Manager) *GreedySolver {
	return &GreedySolver{
		constraintManager: cm,
		logger:            logger.NewSolverLogger("construction"),
		now:               time.Now,
	}
}

// Name 返回求解器名称
func (s *GreedySolver) Name() string {
	return "GreedySolver"
}

// SetClock 设置时钟，用于计算距离截止日期和班次开始的天数
func (s *GreedySolver) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetLogger 设置日志器
func (s *GreedySolver) SetLogger(l *logger.SolverLogger) {
	if l != nil {
		s.logger = l
	}
}

// Solve 对尚未绑定的任务执行一次贪心构造
func (s *GreedySolver) Solve(ctx context.Context, st *solution.State) (*Result, error) {
	startTime := time.Now()
	fs := st.Facts()
	now := s.now()

	result := &Result{
		Statistics: &Statistics{
			TotalTasks: fs.NumTasks(),
			TotalSlots: st.NumSlots(),
		},
	}

	tasks, warnings := OrderTasks(fs, now)
	for _, w := range warnings {
		s.logger.Warning(w)
	}
	result.Warnings = warnings
	slots := OrderSlots(st, now)

	var err error
	for _, task := range tasks {
		if err = ctx.Err(); err != nil {
			break
		}
		if st.TaskCount(task) > 0 {
			continue
		}
		for _, slot := range slots {
			result.Statistics.Iterations++
			if Feasible(st, slot, task) {
				st.Bind(slot, task)
				break
			}
		}
	}

	for t := 0; t < fs.NumTasks(); t++ {
		if st.TaskCount(t) > 0 {
			result.Statistics.AssignedTasks++
		}
	}
	result.Statistics.UnassignedTasks = fs.NumTasks() - result.Statistics.AssignedTasks
	if fs.NumTasks() > 0 {
		result.Statistics.AssignRate = float64(result.Statistics.AssignedTasks) / float64(fs.NumTasks()) * 100
	}

	if s.constraintManager != nil {
		result.Score = s.constraintManager.Evaluate(st)
	}
	result.Duration = time.Since(startTime)
	result.Message = fmt.Sprintf("已安排 %d/%d 个任务", result.Statistics.AssignedTasks, fs.NumTasks())
	s.logger.PhaseComplete("construction", result.Statistics.Iterations, result.Score.Hard, result.Score.Soft, result.Duration)

	return result, err
}

// Difficulty 计算任务难度：前置链长度 + 5×紧接前置 − 距截止日期天数
// 前置链遇到循环或缺失引用时提前结束，返回部分长度和警告
func Difficulty(fs *model.FactSet, task int, now time.Time) (int, string) {
	chain := 0
	warning := ""
	visited := map[int]bool{task: true}
	for cur := task; fs.HasPredecessorRef(cur); {
		chain++
		pred := fs.Predecessor(cur)
		if pred < 0 {
			warning = fmt.Sprintf("任务 %d 的前置任务 %d 不存在，前置链在此截断",
				fs.Task(cur).ID, *fs.Task(cur).PrecedingTaskID)
			break
		}
		if visited[pred] {
			warning = fmt.Sprintf("任务 %d 的前置链存在循环", fs.Task(task).ID)
			break
		}
		visited[pred] = true
		cur = pred
	}

	d := chain
	t := fs.Task(task)
	if t.ImmediatelyFollows {
		d += 5
	}
	if t.DueDate != nil {
		d -= model.DaysBetween(now, *t.DueDate)
	}
	return d, warning
}

// OrderTasks 按难度降序、任务ID升序排列任务下标
func OrderTasks(fs *model.FactSet, now time.Time) ([]int, []string) {
	n := fs.NumTasks()
	difficulty := make([]int, n)
	order := make([]int, n)
	var warnings []string
	for t := 0; t < n; t++ {
		d, w := Difficulty(fs, t, now)
		difficulty[t] = d
		order[t] = t
		if w != "" {
			warnings = append(warnings, w)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if difficulty[a] != difficulty[b] {
			return difficulty[a] > difficulty[b]
		}
		return fs.Task(a).ID < fs.Task(b).ID
	})
	return order, warnings
}

// strength 返回距班次开始的天数（不小于 0），越小越优先
func strength(fs *model.FactSet, shift int, now time.Time) int {
	days := model.DaysBetween(now, fs.ShiftStart(shift))
	if days < 0 {
		return 0
	}
	return days
}

// OrderSlots 按强度排列槽位：越早开始越优先，相同时按槽位ID
func OrderSlots(st *solution.State, now time.Time) []int {
	fs := st.Facts()
	n := st.NumSlots()
	days := make([]int, n)
	order := make([]int, n)
	for i := 0; i < n; i++ {
		days[i] = strength(fs, st.ShiftOf(i), now)
		order[i] = i
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if days[a] != days[b] {
			return days[a] < days[b]
		}
		return a < b
	})
	return order
}

// Feasible 廉价的可行性预检，不做完整评分
func Feasible(st *solution.State, slot, task int) bool {
	if st.TaskAt(slot) != solution.None {
		return false
	}

	fs := st.Facts()
	shift := st.ShiftOf(slot)
	person := fs.TaskPerson(task)

	if st.PersonShiftCount(person, shift) > 0 {
		return false
	}
	if fs.Unavailable(person, shift) {
		return false
	}
	if limit := fs.WeeklyLimit(person); limit > 0 && st.PersonWeekCount(person, fs.ShiftWeek(shift)) >= limit {
		return false
	}

	for _, p := range fs.ShiftPoints(shift) {
		for _, r := range fs.OccupiedRooms(task) {
			if st.RoomLoad(p, r)+1 > fs.RoomCapacity(r) {
				return false
			}
		}
		for _, u := range fs.TaskEquipment(task) {
			if st.EquipmentLoad(p, u.Equipment)+u.Units > fs.EquipmentCapacity(u.Equipment) {
				return false
			}
		}
	}

	start := fs.ShiftStart(shift)
	for _, succ := range fs.Successors(task) {
		if s, ok := st.EarliestStart(succ); ok && start.After(s) {
			return false
		}
	}
	if pred := fs.Predecessor(task); pred >= 0 && pred != task {
		if s, ok := st.EarliestStart(pred); ok && s.After(start) {
			return false
		}
	}
	return true
}
