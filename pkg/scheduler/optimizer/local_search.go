// Package optimizer 提供局部搜索优化算法
package optimizer

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/paiban/mito/pkg/logger"
	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/solution"
)

// Phase 搜索阶段
type Phase string

const (
	PhaseInitialized Phase = "INITIALIZED"
	PhaseRunning     Phase = "RUNNING"
	PhaseTerminated  Phase = "TERMINATED"
)

// Termination 终止原因
type Termination string

const (
	TerminationMaxSteps      Termination = "max_steps"
	TerminationMaxTime       Termination = "max_time"
	TerminationNoImprovement Termination = "no_improvement"
	TerminationCancelled     Termination = "cancelled"
)

// OptimizationConfig 优化配置
type OptimizationConfig struct {
	MaxIterations    int           `json:"max_iterations"`    // 最大步数，0 表示不限制
	MaxTime          time.Duration `json:"max_time"`          // 最大运行时间，0 表示不限制
	InitialTemp      float64       `json:"initial_temp"`      // 模拟退火初始温度
	CoolingRate      float64       `json:"cooling_rate"`      // 冷却速率
	TabuSize         int           `json:"tabu_size"`         // 禁忌表大小
	NeighborhoodSize int           `json:"neighborhood_size"` // 每步采样的候选移动数
	WindowDays       int           `json:"window_days"`       // 候选槽位时间窗口（天），0 表示不限制
	ParallelWorkers  int           `json:"parallel_workers"`  // 并行评估协程数，<=1 表示串行
	StopOnPlateau    bool          `json:"stop_on_plateau"`   // 平台期停止
	PlateauThreshold int           `json:"plateau_threshold"` // 平台期阈值（无改进步数）
	HardEnergyScale  float64       `json:"hard_energy_scale"` // 退火能量中硬得分的放大系数
	Seed             int64         `json:"seed"`              // 随机种子，0 表示按时间生成
	VerifyScore      bool          `json:"verify_score"`      // 每次接受后用全量评估校验增量得分
}

// DefaultOptConfig 默认优化配置
func DefaultOptConfig() *OptimizationConfig {
	return &OptimizationConfig{
		MaxIterations:    10000,
		MaxTime:          30 * time.Second,
		InitialTemp:      100.0,
		CoolingRate:      0.999,
		TabuSize:         50,
		NeighborhoodSize: 20,
		WindowDays:       7,
		ParallelWorkers:  1,
		StopOnPlateau:    true,
		PlateauThreshold: 2000,
		HardEnergyScale:  1000,
	}
}

// Observer 搜索过程观察者
type Observer interface {
	StepCompleted(step int, current constraint.Score, accepted bool)
	BestImproved(step int, best constraint.Score)
}

// Result 优化结果
type Result struct {
	Score           constraint.Score `json:"score"`
	InitialScore    constraint.Score `json:"initial_score"`
	Steps           int              `json:"steps"`
	AcceptedMoves   int              `json:"accepted_moves"`
	Improvements    int              `json:"improvements"`
	ScoreMismatches int              `json:"score_mismatches"`
	Termination     Termination      `json:"termination"`
	Duration        time.Duration    `json:"duration"`
}

// LocalSearchOptimizer 局部搜索优化器：模拟退火 + 禁忌表
type LocalSearchOptimizer struct {
	config   *OptimizationConfig
	manager  *constraint.Manager
	tabuList *TabuList
	rng      *rand.Rand
	logger   *logger.SolverLogger
	observer Observer
	phase    Phase
}

// NewLocalSearchOptimizer 创建局部搜索优化器
func NewLocalSearchOptimizer(config *OptimizationConfig, manager *constraint.Manager) *LocalSearchOptimizer {
	if config == nil {
		config = DefaultOptConfig()
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LocalSearchOptimizer{
		config:   config,
		manager:  manager,
		tabuList: NewTabuList(config.TabuSize),
		rng:      rand.New(rand.NewSource(seed)),
		logger:   logger.NewSolverLogger("local_search"),
		phase:    PhaseInitialized,
	}
}

// SetObserver 设置观察者
func (o *LocalSearchOptimizer) SetObserver(obs Observer) {
	o.observer = obs
}

// SetLogger 设置日志器
func (o *LocalSearchOptimizer) SetLogger(l *logger.SolverLogger) {
	if l != nil {
		o.logger = l
	}
}

// Phase 返回当前阶段
func (o *LocalSearchOptimizer) Phase() Phase {
	return o.phase
}

// Optimize 在 st 上执行局部搜索，返回时 st 为搜索过程中的最优解
// 取消不视为错误：以当前最优解结束并标记为 cancelled
func (o *LocalSearchOptimizer) Optimize(ctx context.Context, st *solution.State) (*Result, error) {
	start := time.Now()
	o.phase = PhaseRunning
	defer func() { o.phase = PhaseTerminated }()

	calc := constraint.NewCalculator(o.manager)
	current := calc.Attach(st)
	defer calc.Detach(st)

	best := current
	bestSnapshot := st.Snapshot()
	result := &Result{InitialScore: current}

	var evaluator CandidateEvaluator
	if o.config.ParallelWorkers > 1 {
		pe := NewParallelEvaluator(o.config.ParallelWorkers, st, o.manager)
		defer pe.Close()
		evaluator = pe
	} else {
		evaluator = NewSequentialEvaluator(st, calc)
	}
	neighbors := NewNeighborhoodGenerator(st.Facts(), o.config.WindowDays, o.rng)

	temperature := o.config.InitialTemp
	noImprovementCount := 0

	for step := 0; ; step++ {
		if reason, done := o.shouldStop(ctx, step, start, noImprovementCount); done {
			result.Termination = reason
			break
		}
		result.Steps = step + 1

		accepted := false
		moves := neighbors.Generate(st, o.config.NeighborhoodSize)
		if len(moves) > 0 {
			scores := evaluator.Evaluate(ctx, moves)
			if ctx.Err() != nil {
				result.Termination = TerminationCancelled
				break
			}

			if idx := o.selectMove(st, moves, scores, best); idx >= 0 {
				candidate := scores[idx]
				if o.accept(current, candidate, temperature) {
					m := moves[idx]
					m.Apply(st)
					evaluator.Commit(m)
					for _, b := range m.Removed() {
						o.tabuList.Add(b.key())
					}
					current = calc.Score()
					accepted = true
					result.AcceptedMoves++

					if o.config.VerifyScore {
						if full := calc.FullScore(st); full != current {
							o.logger.ScoreMismatch(step, current.String(), full.String())
							result.ScoreMismatches++
						}
					}
				}
			}
		}

		if accepted && current.Better(best) {
			best = current
			bestSnapshot = st.Snapshot()
			noImprovementCount = 0
			result.Improvements++
			o.logger.NewBest(step, best.Hard, best.Soft)
			if o.observer != nil {
				o.observer.BestImproved(step, best)
			}
		} else {
			noImprovementCount++
		}

		if o.observer != nil {
			o.observer.StepCompleted(step, current, accepted)
		}

		// 降温
		temperature *= o.config.CoolingRate
	}

	// 恢复到最优解，计算器仍挂在状态上，得分随之更新
	st.Restore(bestSnapshot)
	result.Score = calc.Score()
	result.Duration = time.Since(start)
	o.logger.PhaseComplete("local_search", result.Steps, result.Score.Hard, result.Score.Soft, result.Duration)

	return result, nil
}

// shouldStop 每步开始时检查终止条件，先满足者生效
func (o *LocalSearchOptimizer) shouldStop(ctx context.Context, step int, start time.Time, noImprovement int) (Termination, bool) {
	switch {
	case ctx.Err() != nil:
		return TerminationCancelled, true
	case o.config.MaxIterations > 0 && step >= o.config.MaxIterations:
		return TerminationMaxSteps, true
	case o.config.MaxTime > 0 && time.Since(start) >= o.config.MaxTime:
		return TerminationMaxTime, true
	case o.config.StopOnPlateau && o.config.PlateauThreshold > 0 && noImprovement >= o.config.PlateauThreshold:
		return TerminationNoImprovement, true
	}
	return "", false
}

// selectMove 选出得分最高的非禁忌候选，得分相同取下标小者
// 禁忌移动若优于历史最优仍可选择
func (o *LocalSearchOptimizer) selectMove(st *solution.State, moves []*Move, scores []constraint.Score, best constraint.Score) int {
	idx := -1
	for i, m := range moves {
		if idx >= 0 && !scores[i].Better(scores[idx]) {
			continue
		}
		if o.isTabu(st, m) && !scores[i].Better(best) {
			continue
		}
		idx = i
	}
	return idx
}

func (o *LocalSearchOptimizer) isTabu(st *solution.State, m *Move) bool {
	for _, b := range m.Added(st) {
		if o.tabuList.Contains(b.key()) {
			return true
		}
	}
	return false
}

// accept 硬得分提升，或硬得分不变且软得分提升时接受；否则按模拟退火概率接受
func (o *LocalSearchOptimizer) accept(current, candidate constraint.Score, temperature float64) bool {
	if candidate.Hard > current.Hard || (candidate.Hard == current.Hard && candidate.Soft > current.Soft) {
		return true
	}
	delta := float64(current.Hard-candidate.Hard)*o.config.HardEnergyScale + float64(current.Soft-candidate.Soft)
	return o.rng.Float64() < boltzmannProbability(delta, temperature)
}

// boltzmannProbability 计算模拟退火的接受概率
// delta: 能量差 (new - old)
// temperature: 当前温度
func boltzmannProbability(delta, temperature float64) float64 {
	if delta <= 0 {
		return 1.0
	}
	if temperature <= 0 {
		return 0.0
	}
	return math.Exp(-delta / temperature)
}

// TabuList 禁忌表，按插入顺序淘汰
type TabuList struct {
	items   map[uint64]struct{}
	order   []uint64
	maxSize int
}

// NewTabuList 创建禁忌表，size<=0 时禁用
func NewTabuList(size int) *TabuList {
	if size < 0 {
		size = 0
	}
	return &TabuList{
		items:   make(map[uint64]struct{}),
		order:   make([]uint64, 0, size),
		maxSize: size,
	}
}

// Add 添加到禁忌表
func (t *TabuList) Add(key uint64) {
	if t.maxSize == 0 {
		return
	}
	if _, exists := t.items[key]; exists {
		return
	}

	// 超出容量时移除最旧的
	if len(t.order) >= t.maxSize {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.items, oldest)
	}

	t.items[key] = struct{}{}
	t.order = append(t.order, key)
}

// Contains 检查是否在禁忌表中
func (t *TabuList) Contains(key uint64) bool {
	_, exists := t.items[key]
	return exists
}

// Len 返回禁忌表长度
func (t *TabuList) Len() int {
	return len(t.order)
}

// Clear 清空禁忌表
func (t *TabuList) Clear() {
	t.items = make(map[uint64]struct{})
	t.order = t.order[:0]
}
