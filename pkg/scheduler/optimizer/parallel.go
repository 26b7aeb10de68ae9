package optimizer

import (
	"context"
	"sync"

	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/solution"
)

// CandidateEvaluator 候选移动评估器
// Evaluate 返回每个移动执行后的得分，不改变调用方可见的状态
type CandidateEvaluator interface {
	Evaluate(ctx context.Context, moves []*Move) []constraint.Score
	// Commit 在主状态接受移动后同步评估器
	Commit(m *Move)
}

// replica 评估用状态副本及其增量计算器
type replica struct {
	state *solution.State
	calc  *constraint.Calculator
}

func newReplica(st *solution.State, manager *constraint.Manager) *replica {
	r := &replica{state: st, calc: constraint.NewCalculator(manager)}
	r.calc.Attach(st)
	return r
}

// score 执行移动、读取得分后撤销
func (r *replica) score(m *Move) constraint.Score {
	m.Apply(r.state)
	s := r.calc.Score()
	m.Undo(r.state)
	return s
}

// SequentialEvaluator 在主状态上就地执行并撤销移动
type SequentialEvaluator struct {
	calc  *constraint.Calculator
	state *solution.State
}

// NewSequentialEvaluator 创建串行评估器，calc 必须已挂在 st 上
func NewSequentialEvaluator(st *solution.State, calc *constraint.Calculator) *SequentialEvaluator {
	return &SequentialEvaluator{calc: calc, state: st}
}

// Evaluate 实现 CandidateEvaluator
func (e *SequentialEvaluator) Evaluate(ctx context.Context, moves []*Move) []constraint.Score {
	r := replica{state: e.state, calc: e.calc}
	scores := make([]constraint.Score, len(moves))
	for i, m := range moves {
		scores[i] = r.score(m)
	}
	return scores
}

// Commit 主状态即评估状态，无需同步
func (e *SequentialEvaluator) Commit(m *Move) {}

// ParallelEvaluator 并行评估器
// 每个工作协程持有独立副本，主状态接受移动后通过重放保持同步
type ParallelEvaluator struct {
	workers  int
	replicas []*replica
}

// NewParallelEvaluator 以 st 的当前状态创建并行评估器
func NewParallelEvaluator(workers int, st *solution.State, manager *constraint.Manager) *ParallelEvaluator {
	if workers <= 0 {
		workers = 4
	}
	p := &ParallelEvaluator{workers: workers}
	for i := 0; i < workers; i++ {
		p.replicas = append(p.replicas, newReplica(st.Clone(), manager))
	}
	return p
}

// Evaluate 实现 CandidateEvaluator
func (p *ParallelEvaluator) Evaluate(ctx context.Context, moves []*Move) []constraint.Score {
	scores := make([]constraint.Score, len(moves))
	if len(moves) == 0 {
		return scores
	}

	jobChan := make(chan int, len(moves))
	for i := range moves {
		jobChan <- i
	}
	close(jobChan)

	// 每个下标只写一次，无需加锁
	var wg sync.WaitGroup
	for _, r := range p.replicas {
		wg.Add(1)
		go func(r *replica) {
			defer wg.Done()
			for i := range jobChan {
				if ctx.Err() != nil {
					return
				}
				scores[i] = r.score(moves[i])
			}
		}(r)
	}
	wg.Wait()

	return scores
}

// Commit 在每个副本上重放移动
func (p *ParallelEvaluator) Commit(m *Move) {
	for _, r := range p.replicas {
		replay := *m
		replay.Apply(r.state)
	}
}

// Workers 返回工作协程数量
func (p *ParallelEvaluator) Workers() int {
	return p.workers
}

// Close 释放副本
func (p *ParallelEvaluator) Close() {
	for _, r := range p.replicas {
		r.calc.Detach(r.state)
	}
	p.replicas = nil
}
