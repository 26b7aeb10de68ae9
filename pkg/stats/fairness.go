package stats

import (
	"math"
	"sort"

	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler"
)

// FairnessMetrics 公平性指标
type FairnessMetrics struct {
	// 课题组分配
	PiGroupGini     float64     `json:"pi_group_gini"`     // 课题组分配基尼系数 (0=完全公平, 1=完全不公平)
	PiGroupVariance float64     `json:"pi_group_variance"` // 课题组分配方差
	PiGroupStdDev   float64     `json:"pi_group_std_dev"`  // 课题组分配标准差
	AvgPerPiGroup   float64     `json:"avg_per_pi_group"`  // 每组平均分配数
	GroupStats      []GroupStat `json:"group_stats"`       // 课题组统计
	FairnessPenalty int64       `json:"fairness_penalty"`  // 平方和，与公平性约束一致

	// 人员工时
	WorkloadGini float64      `json:"workload_gini"` // 人员工时基尼系数
	MaxHours     float64      `json:"max_hours"`     // 最大工时
	MinHours     float64      `json:"min_hours"`     // 最小工时
	HoursRange   float64      `json:"hours_range"`   // 工时极差
	PersonStats  []PersonStat `json:"person_stats"`  // 人员统计

	// 综合评分
	OverallFairnessScore float64 `json:"overall_fairness_score"` // 综合公平性评分 (0-100)
}

// GroupStat 课题组统计
type GroupStat struct {
	PiGroupID   int64   `json:"pi_group_id"`
	Name        string  `json:"name"`
	Persons     int     `json:"persons"`
	Assignments int     `json:"assignments"`
	Share       float64 `json:"share"`     // 占全部分配的百分比
	Deviation   float64 `json:"deviation"` // 与平均值的偏差百分比
}

// PersonStat 人员统计
type PersonStat struct {
	PersonID    int64   `json:"person_id"`
	PersonName  string  `json:"person_name"`
	PiGroupID   int64   `json:"pi_group_id"`
	Assignments int     `json:"assignments"`
	TotalHours  float64 `json:"total_hours"`
	MaxPerWeek  int     `json:"max_per_week"`
	WeeklyLimit int     `json:"weekly_limit"`
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct{}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{}
}

// Analyze 分析课题组之间和人员之间的分配公平性
func (f *FairnessAnalyzer) Analyze(facts *model.FactSet, assignments []scheduler.Assignment) *FairnessMetrics {
	if facts == nil || facts.NumPersons() == 0 {
		return &FairnessMetrics{
			GroupStats:           make([]GroupStat, 0),
			PersonStats:          make([]PersonStat, 0),
			OverallFairnessScore: 100,
		}
	}

	personIdx := make(map[int64]int, facts.NumPersons())
	for p := 0; p < facts.NumPersons(); p++ {
		personIdx[facts.Person(p).ID] = p
	}

	persons := make([]PersonStat, facts.NumPersons())
	weekly := make([]map[int]int, facts.NumPersons())
	for p := range persons {
		person := facts.Person(p)
		persons[p] = PersonStat{
			PersonID:    person.ID,
			PersonName:  person.Name,
			PiGroupID:   person.PiGroupID,
			WeeklyLimit: person.WeeklyShiftLimit,
		}
		weekly[p] = make(map[int]int)
	}

	groups := make([]GroupStat, facts.NumPiGroups())
	for g := range groups {
		pg := facts.PiGroup(g)
		groups[g] = GroupStat{PiGroupID: pg.ID, Name: pg.Name}
	}
	for p := 0; p < facts.NumPersons(); p++ {
		groups[facts.PersonPiGroup(p)].Persons++
	}

	total := 0
	for _, a := range assignments {
		if !a.Bound() || a.PersonID == nil {
			continue
		}
		p, ok := personIdx[*a.PersonID]
		if !ok {
			continue
		}
		total++
		persons[p].Assignments++
		persons[p].TotalHours += a.End.Sub(a.Start).Hours()
		week := model.WeekKey(a.Start)
		weekly[p][week]++
		if weekly[p][week] > persons[p].MaxPerWeek {
			persons[p].MaxPerWeek = weekly[p][week]
		}
		groups[facts.PersonPiGroup(p)].Assignments++
	}

	counts := make([]float64, len(groups))
	var penalty int64
	for g := range groups {
		n := groups[g].Assignments
		counts[g] = float64(n)
		penalty += int64(n) * int64(n)
		if total > 0 {
			groups[g].Share = float64(n) / float64(total) * 100
		}
	}
	avg := calculateMean(counts)
	variance := calculateVariance(counts, avg)
	for g := range groups {
		if avg > 0 {
			groups[g].Deviation = (counts[g] - avg) / avg * 100
		}
	}

	hours := make([]float64, len(persons))
	for p := range persons {
		hours[p] = persons[p].TotalHours
	}
	maxHours, minHours := calculateRange(hours)

	groupGini := calculateGini(counts)
	workloadGini := calculateGini(hours)

	sort.SliceStable(persons, func(i, j int) bool {
		return persons[i].TotalHours > persons[j].TotalHours
	})

	return &FairnessMetrics{
		PiGroupGini:          groupGini,
		PiGroupVariance:      variance,
		PiGroupStdDev:        math.Sqrt(variance),
		AvgPerPiGroup:        avg,
		GroupStats:           groups,
		FairnessPenalty:      penalty,
		WorkloadGini:         workloadGini,
		MaxHours:             maxHours,
		MinHours:             minHours,
		HoursRange:           maxHours - minHours,
		PersonStats:          persons,
		OverallFairnessScore: calculateOverallScore(groupGini, workloadGini),
	}
}

// CompareSchedules 比较两个方案的公平性
func (f *FairnessAnalyzer) CompareSchedules(facts *model.FactSet, schedule1, schedule2 []scheduler.Assignment) map[string]float64 {
	metrics1 := f.Analyze(facts, schedule1)
	metrics2 := f.Analyze(facts, schedule2)

	return map[string]float64{
		"pi_group_gini_diff":      metrics2.PiGroupGini - metrics1.PiGroupGini,
		"workload_gini_diff":      metrics2.WorkloadGini - metrics1.WorkloadGini,
		"overall_score_diff":      metrics2.OverallFairnessScore - metrics1.OverallFairnessScore,
		"schedule1_overall_score": metrics1.OverallFairnessScore,
		"schedule2_overall_score": metrics2.OverallFairnessScore,
	}
}

// calculateMean 计算平均值
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateVariance 计算方差
func calculateVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// calculateRange 计算极值
func calculateRange(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// calculateGini 计算基尼系数
func calculateGini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}

	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}

// calculateOverallScore 综合评分，课题组公平性权重更高
func calculateOverallScore(groupGini, workloadGini float64) float64 {
	const (
		groupWeight    = 0.6
		workloadWeight = 0.4
	)
	score := groupWeight*(1-groupGini)*100 + workloadWeight*(1-workloadGini)*100
	return math.Max(0, math.Min(100, score))
}
