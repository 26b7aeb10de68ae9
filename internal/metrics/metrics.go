// Package metrics 提供Prometheus监控指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paiban/mito/pkg/scheduler"
	"github.com/paiban/mito/pkg/scheduler/constraint"
)

const namespace = "mito"

// Metrics 服务与求解引擎指标
// 同时实现 optimizer.Observer，可直接挂到求解引擎上
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	solveTotal    *prometheus.CounterVec
	solveDuration prometheus.Histogram
	activeSolves  prometheus.Gauge

	searchSteps      prometheus.Counter
	acceptedMoves    prometheus.Counter
	bestImprovements prometheus.Counter
	bestHard         prometheus.Gauge
	bestSoft         prometheus.Gauge

	unassignedTasks prometheus.Gauge
	slotUtilization prometheus.Gauge
	piGroupGini     prometheus.Gauge
}

// New 创建并注册全部指标
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP请求延迟",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		}, []string{"method", "path"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP请求总数",
		}, []string{"method", "path", "status"}),

		solveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solve_total",
			Help:      "求解次数",
		}, []string{"termination", "feasible"}),
		solveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "求解耗时",
			Buckets:   []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0},
		}),
		activeSolves: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_solves",
			Help:      "正在进行的求解数",
		}),

		searchSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_steps_total",
			Help:      "局部搜索步数",
		}),
		acceptedMoves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_accepted_moves_total",
			Help:      "被接受的移动数",
		}),
		bestImprovements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_best_improvements_total",
			Help:      "最优解更新次数",
		}),
		bestHard: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_hard_score",
			Help:      "最近一次求解的最优硬得分",
		}),
		bestSoft: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_soft_score",
			Help:      "最近一次求解的最优软得分",
		}),

		unassignedTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unassigned_tasks",
			Help:      "最近一次求解未安排的任务数",
		}),
		slotUtilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slot_utilization_percent",
			Help:      "最近一次求解的槽位利用率",
		}),
		piGroupGini: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pi_group_gini",
			Help:      "最近一次求解的课题组分配基尼系数",
		}),
	}

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.solveTotal, m.solveDuration, m.activeSolves,
		m.searchSteps, m.acceptedMoves, m.bestImprovements, m.bestHard, m.bestSoft,
		m.unassignedTasks, m.slotUtilization, m.piGroupGini,
		collectors.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return m
}

// Handler 返回Prometheus格式的指标HTTP处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest 记录请求指标
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// SolveStarted 记录求解开始
func (m *Metrics) SolveStarted() {
	if m == nil {
		return
	}
	m.activeSolves.Inc()
}

// SolveFinished 记录求解结束，res 为 nil 表示求解出错
func (m *Metrics) SolveFinished(res *scheduler.Result, duration time.Duration) {
	if m == nil {
		return
	}
	m.activeSolves.Dec()
	m.solveDuration.Observe(duration.Seconds())

	if res == nil {
		m.solveTotal.WithLabelValues("error", "false").Inc()
		return
	}
	termination := string(res.Termination)
	if termination == "" {
		termination = "construction_only"
	}
	m.solveTotal.WithLabelValues(termination, strconv.FormatBool(res.Feasible)).Inc()
	m.unassignedTasks.Set(float64(len(res.Unassigned)))
	m.bestHard.Set(float64(res.Score.Hard))
	m.bestSoft.Set(float64(res.Score.Soft))
}

// SetSlotUtilization 设置槽位利用率
func (m *Metrics) SetSlotUtilization(percent float64) {
	if m == nil {
		return
	}
	m.slotUtilization.Set(percent)
}

// SetPiGroupGini 设置课题组分配基尼系数
func (m *Metrics) SetPiGroupGini(gini float64) {
	if m == nil {
		return
	}
	m.piGroupGini.Set(gini)
}

// StepCompleted 实现 optimizer.Observer
func (m *Metrics) StepCompleted(step int, current constraint.Score, accepted bool) {
	if m == nil {
		return
	}
	m.searchSteps.Inc()
	if accepted {
		m.acceptedMoves.Inc()
	}
}

// BestImproved 实现 optimizer.Observer
func (m *Metrics) BestImproved(step int, best constraint.Score) {
	if m == nil {
		return
	}
	m.bestImprovements.Inc()
	m.bestHard.Set(float64(best.Hard))
	m.bestSoft.Set(float64(best.Soft))
}
