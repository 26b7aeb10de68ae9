package constraint

import (
	"github.com/paiban/mito/pkg/scheduler/solution"
)

// Calculator 增量得分计算器
// 作为状态的监听器，在每次单个变更前减去、变更后加上受影响分组的贡献
type Calculator struct {
	constraints []Constraint
	score       Score
}

// NewCalculator 以管理器当前注册的约束创建计算器
func NewCalculator(m *Manager) *Calculator {
	return &Calculator{constraints: m.GetAll()}
}

// Attach 全量计算初始得分并挂到状态上
func (c *Calculator) Attach(st *solution.State) Score {
	c.score = evaluate(c.constraints, st)
	st.SetListener(c)
	return c.score
}

// Detach 从状态上移除
func (c *Calculator) Detach(st *solution.State) {
	st.SetListener(nil)
}

// Score 返回当前得分
func (c *Calculator) Score() Score {
	return c.score
}

// FullScore 忽略增量结果重新全量计算
func (c *Calculator) FullScore(st *solution.State) Score {
	return evaluate(c.constraints, st)
}

// Constraints 返回计算器使用的约束
func (c *Calculator) Constraints() []Constraint {
	return c.constraints
}

func (c *Calculator) touch(st *solution.State, slot, task int) Score {
	var s Score
	for _, con := range c.constraints {
		if v := con.Touch(st, slot, task); v != 0 {
			s = s.Add(of(con.Category(), v))
		}
	}
	return s
}

// BeforeChange 实现 solution.Listener
func (c *Calculator) BeforeChange(st *solution.State, slot, task int) {
	c.score = c.score.Sub(c.touch(st, slot, task))
}

// AfterChange 实现 solution.Listener
func (c *Calculator) AfterChange(st *solution.State, slot, task int) {
	c.score = c.score.Add(c.touch(st, slot, task))
}
