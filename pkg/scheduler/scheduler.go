// Package scheduler 组合构造启发式与局部搜索，提供完整的求解入口
package scheduler

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/paiban/mito/pkg/errors"
	"github.com/paiban/mito/pkg/logger"
	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/constraint/builtin"
	"github.com/paiban/mito/pkg/scheduler/optimizer"
	"github.com/paiban/mito/pkg/scheduler/solution"
	"github.com/paiban/mito/pkg/scheduler/solver"
)

// Config 求解配置
type Config struct {
	Weights          constraint.Weights            `json:"weights"`
	Optimization     *optimizer.OptimizationConfig `json:"optimization"`
	SkipConstruction bool                          `json:"skip_construction,omitempty"`
	SkipLocalSearch  bool                          `json:"skip_local_search,omitempty"`

	// Disabled 不参与评分的约束类型
	Disabled []constraint.Type `json:"disabled,omitempty"`

	// Now 构造阶段使用的时钟，nil 时为 time.Now
	Now func() time.Time `json:"-"`
}

// DefaultConfig 默认求解配置
func DefaultConfig() Config {
	return Config{
		Weights:      constraint.DefaultWeights(),
		Optimization: optimizer.DefaultOptConfig(),
	}
}

// Assignment 一个槽位及其绑定的任务
type Assignment struct {
	SlotID     int       `json:"slot_id"`
	ShiftID    int64     `json:"shift_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	TaskID     *int64    `json:"task_id,omitempty"`
	TaskName   string    `json:"task_name,omitempty"`
	PersonID   *int64    `json:"person_id,omitempty"`
	PersonName string    `json:"person_name,omitempty"`
}

// Bound 槽位是否绑定了任务
func (a *Assignment) Bound() bool {
	return a.TaskID != nil
}

// Result 求解结果
type Result struct {
	RunID        uuid.UUID             `json:"run_id"`
	Assignments  []Assignment          `json:"assignments"`
	Unassigned   []int64               `json:"unassigned_tasks,omitempty"`
	Score        constraint.Score      `json:"score"`
	Feasible     bool                  `json:"feasible"`
	Termination  optimizer.Termination `json:"termination,omitempty"`
	Warnings     []string              `json:"warnings,omitempty"`
	Construction *solver.Statistics    `json:"construction,omitempty"`
	Search       *optimizer.Result     `json:"search,omitempty"`
	Violations   *constraint.Result    `json:"violations,omitempty"`
	Duration     time.Duration         `json:"duration"`
}

// Engine 求解引擎
type Engine struct {
	config   Config
	manager  *constraint.Manager
	observer optimizer.Observer
	logger   *logger.SolverLogger
}

// NewEngine 按配置创建求解引擎并注册内置约束
func NewEngine(cfg Config) *Engine {
	if cfg.Optimization == nil {
		cfg.Optimization = optimizer.DefaultOptConfig()
	}
	return &Engine{
		config:  cfg,
		manager: builtin.NewManager(cfg.Weights, cfg.Disabled),
		logger:  logger.NewSolverLogger("engine"),
	}
}

// SetObserver 设置局部搜索观察者
func (e *Engine) SetObserver(obs optimizer.Observer) {
	e.observer = obs
}

// Manager 返回约束管理器
func (e *Engine) Manager() *constraint.Manager {
	return e.manager
}

// Solve 使用默认约束和给定配置求解
func Solve(ctx context.Context, facts *model.FactSet, cfg Config) (*Result, error) {
	return NewEngine(cfg).Solve(ctx, facts)
}

// Solve 先构造初始解，再执行局部搜索，返回搜索过程中的最优解
// 硬得分非零不是错误，调用方通过 Result.Feasible 区分
func (e *Engine) Solve(ctx context.Context, facts *model.FactSet) (*Result, error) {
	if facts == nil {
		return nil, errors.New(errors.CodeEmptyProblem, "问题事实为空")
	}

	start := time.Now()
	runID := uuid.New()
	log := e.logger.WithRun(runID.String())

	st := solution.New(facts)
	log.StartSolve(facts.NumTasks(), st.NumSlots())

	result := &Result{
		RunID:    runID,
		Warnings: append([]string(nil), facts.Warnings()...),
	}

	cancelled := false
	if !e.config.SkipConstruction {
		greedy := solver.NewGreedySolver(e.manager)
		greedy.SetClock(e.config.Now)
		greedy.SetLogger(log)
		cr, err := greedy.Solve(ctx, st)
		if err != nil {
			if !isCancellation(err) {
				return nil, errors.Wrap(err, errors.CodeInternal, "构造初始解失败")
			}
			cancelled = true
		}
		result.Construction = cr.Statistics
		result.Warnings = appendUnique(result.Warnings, cr.Warnings...)
	}

	if cancelled {
		result.Termination = optimizer.TerminationCancelled
	} else if !e.config.SkipLocalSearch {
		opt := optimizer.NewLocalSearchOptimizer(e.config.Optimization, e.manager)
		opt.SetLogger(log)
		if e.observer != nil {
			opt.SetObserver(e.observer)
		}
		sr, err := opt.Optimize(ctx, st)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "局部搜索失败")
		}
		result.Search = sr
		result.Termination = sr.Termination
	}

	result.Score = e.manager.Evaluate(st)
	result.Feasible = result.Score.Feasible()
	result.Violations = e.manager.Explain(st)
	result.Assignments, result.Unassigned = collect(st)
	result.Duration = time.Since(start)

	log.SolveComplete(string(result.Termination), result.Score.Hard, result.Score.Soft, result.Duration)
	return result, nil
}

func isCancellation(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

// collect 按槽位顺序输出分配，并列出未安排的任务
func collect(st *solution.State) ([]Assignment, []int64) {
	fs := st.Facts()
	assignments := make([]Assignment, st.NumSlots())
	for i := range assignments {
		shift := fs.Shift(st.ShiftOf(i))
		a := Assignment{
			SlotID:  i,
			ShiftID: shift.ID,
			Start:   shift.Start,
			End:     shift.End(),
		}
		if t := st.TaskAt(i); t != solution.None {
			task := fs.Task(t)
			person := fs.Person(fs.TaskPerson(t))
			taskID, personID := task.ID, person.ID
			a.TaskID = &taskID
			a.TaskName = task.Name
			a.PersonID = &personID
			a.PersonName = person.Name
		}
		assignments[i] = a
	}

	var unassigned []int64
	for t := 0; t < fs.NumTasks(); t++ {
		if st.TaskCount(t) == 0 {
			unassigned = append(unassigned, fs.Task(t).ID)
		}
	}
	return assignments, unassigned
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}
