package constraint

import (
	"sort"
	"sync"

	"github.com/paiban/mito/pkg/logger"
	"github.com/paiban/mito/pkg/scheduler/solution"
)

// Manager 约束管理器
type Manager struct {
	constraints []Constraint
	mu          sync.RWMutex
	logger      *logger.SolverLogger
}

// NewManager 创建约束管理器
func NewManager() *Manager {
	return &Manager{
		constraints: make([]Constraint, 0),
		logger:      logger.NewSolverLogger("constraint"),
	}
}

// Register 注册约束，同类型约束会被替换
func (m *Manager) Register(c Constraint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.constraints {
		if existing.Type() == c.Type() {
			m.constraints[i] = c
			return
		}
	}

	m.constraints = append(m.constraints, c)

	// 硬约束在前，权重高的在前
	sort.SliceStable(m.constraints, func(i, j int) bool {
		ci, cj := m.constraints[i], m.constraints[j]
		if ci.Category() != cj.Category() {
			return ci.Category() == CategoryHard
		}
		return ci.Weight() > cj.Weight()
	})
}

// Unregister 注销约束
func (m *Manager) Unregister(t Type) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.constraints {
		if c.Type() == t {
			m.constraints = append(m.constraints[:i], m.constraints[i+1:]...)
			return
		}
	}
}

// GetConstraint 获取约束
func (m *Manager) GetConstraint(t Type) Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.constraints {
		if c.Type() == t {
			return c
		}
	}
	return nil
}

// GetAll 获取所有约束
func (m *Manager) GetAll() []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Constraint, len(m.constraints))
	copy(result, m.constraints)
	return result
}

// GetByCategory 按类别获取约束
func (m *Manager) GetByCategory(cat Category) []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Constraint
	for _, c := range m.constraints {
		if c.Category() == cat {
			result = append(result, c)
		}
	}
	return result
}

// Evaluate 全量评估所有约束
func (m *Manager) Evaluate(st *solution.State) Score {
	return evaluate(m.GetAll(), st)
}

func evaluate(constraints []Constraint, st *solution.State) Score {
	var score Score
	for _, c := range constraints {
		score = score.Add(of(c.Category(), c.Evaluate(st)))
	}
	return score
}

// Explain 全量评估并列出每个约束的贡献和违反详情
func (m *Manager) Explain(st *solution.State) *Result {
	result := &Result{
		IsValid:        true,
		Breakdown:      make([]Breakdown, 0, m.Count()),
		HardViolations: make([]ViolationDetail, 0),
		SoftViolations: make([]ViolationDetail, 0),
	}

	for _, c := range m.GetAll() {
		v := c.Evaluate(st)
		result.Score = result.Score.Add(of(c.Category(), v))
		result.Breakdown = append(result.Breakdown, Breakdown{
			ConstraintType: c.Type(),
			ConstraintName: c.Name(),
			Category:       c.Category(),
			Score:          v,
		})

		for _, d := range c.Explain(st) {
			if c.Category() == CategoryHard {
				result.HardViolations = append(result.HardViolations, d)
				m.logger.ConstraintViolation(c.Name(), d.Message)
			} else {
				result.SoftViolations = append(result.SoftViolations, d)
			}
		}
	}

	result.IsValid = result.Score.Feasible()
	return result
}

// Count 返回约束数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.constraints)
}

// Summary 返回约束摘要
func (m *Manager) Summary() map[string]interface{} {
	return map[string]interface{}{
		"total": m.Count(),
		"hard":  len(m.GetByCategory(CategoryHard)),
		"soft":  len(m.GetByCategory(CategorySoft)),
	}
}
