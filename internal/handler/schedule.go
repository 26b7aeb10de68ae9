// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/paiban/mito/internal/constraints"
	"github.com/paiban/mito/internal/metrics"
	"github.com/paiban/mito/internal/repository"
	"github.com/paiban/mito/pkg/errors"
	"github.com/paiban/mito/pkg/logger"
	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler"
	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/constraint/builtin"
	"github.com/paiban/mito/pkg/scheduler/optimizer"
	"github.com/paiban/mito/pkg/stats"
)

// ScheduleHandler 求解处理器
type ScheduleHandler struct {
	config   scheduler.Config
	metrics  *metrics.Metrics
	facts    *repository.FactRepository
	runs     *repository.RunRepository
	validate *validator.Validate
	maxBody  int64
	timeout  time.Duration
}

// NewScheduleHandler 创建求解处理器，m 可以为 nil
func NewScheduleHandler(cfg scheduler.Config, m *metrics.Metrics) *ScheduleHandler {
	if cfg.Optimization == nil {
		cfg.Optimization = optimizer.DefaultOptConfig()
	}
	return &ScheduleHandler{
		config:   cfg,
		metrics:  m,
		validate: newValidator(),
		maxBody:  10 << 20,
		timeout:  60 * time.Second,
	}
}

// WithRepositories 启用数据库加载问题与保存运行记录
func (h *ScheduleHandler) WithRepositories(facts *repository.FactRepository, runs *repository.RunRepository) *ScheduleHandler {
	h.facts = facts
	h.runs = runs
	return h
}

// WithLimits 设置请求体上限与单次求解超时
func (h *ScheduleHandler) WithLimits(maxBody int64, timeout time.Duration) *ScheduleHandler {
	if maxBody > 0 {
		h.maxBody = maxBody
	}
	if timeout > 0 {
		h.timeout = timeout
	}
	return h
}

// Register 注册路由
func (h *ScheduleHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/solve", h.Solve)
	mux.HandleFunc("GET /api/v1/constraints", h.Constraints)
	mux.HandleFunc("POST /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/validate", h.Check)
	mux.HandleFunc("POST /api/v1/export/{format}", h.Export)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)
	mux.HandleFunc("DELETE /api/v1/runs/{id}", h.DeleteRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/export/{format}", h.ExportRun)
}

// SolveRequest 求解请求，problem 与 source 二选一
type SolveRequest struct {
	Problem *model.Problem `json:"problem,omitempty" validate:"required_without=Source"`
	Source  *ProblemSource `json:"source,omitempty" validate:"required_without=Problem"`
	Options *SolveOptions  `json:"options,omitempty"`
}

// ProblemSource 从数据库加载问题的范围
type ProblemSource struct {
	FloorCapacity int       `json:"floor_capacity" validate:"min=0"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
}

// SolveOptions 覆盖默认求解参数
type SolveOptions struct {
	MaxIterations   *int   `json:"max_iterations,omitempty" validate:"omitempty,min=0"`
	TimeoutSeconds  int    `json:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=3600"`
	Seed            *int64 `json:"seed,omitempty"`
	Workers         int    `json:"workers,omitempty" validate:"omitempty,min=1,max=64"`
	SkipLocalSearch bool   `json:"skip_local_search,omitempty"`
	Save            *bool  `json:"save,omitempty"` // 默认在启用数据库时保存
}

// SolveResponse 求解响应
type SolveResponse struct {
	*scheduler.Result
	Coverage *stats.CoverageMetrics `json:"coverage"`
	Fairness *stats.FairnessMetrics `json:"fairness"`
	Saved    bool                   `json:"saved"`
}

// Solve 求解一个问题
func (h *ScheduleHandler) Solve(w http.ResponseWriter, r *http.Request) {
	var req SolveRequest
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := h.validateStruct(&req); err != nil {
		respondError(w, err)
		return
	}

	problem, appErr := h.loadProblem(r.Context(), &req)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	facts, err := model.Compile(problem)
	if err != nil {
		respondError(w, toAppError(err, "问题编译失败"))
		return
	}

	cfg := h.engineConfig(req.Options)
	timeout := h.timeout
	if req.Options != nil && req.Options.TimeoutSeconds > 0 {
		timeout = time.Duration(req.Options.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	engine := scheduler.NewEngine(cfg)
	if h.metrics != nil {
		engine.SetObserver(h.metrics)
	}

	start := time.Now()
	h.metrics.SolveStarted()
	result, err := engine.Solve(ctx, facts)
	h.metrics.SolveFinished(result, time.Since(start))
	if err != nil {
		respondError(w, toAppError(err, "求解失败"))
		return
	}

	resp := SolveResponse{
		Result:   result,
		Coverage: stats.NewCoverageAnalyzer().Analyze(facts, result.Assignments),
		Fairness: stats.NewFairnessAnalyzer().Analyze(facts, result.Assignments),
	}
	h.metrics.SetSlotUtilization(resp.Coverage.SlotUtilization)
	h.metrics.SetPiGroupGini(resp.Fairness.PiGroupGini)

	if h.shouldSave(req.Options) {
		// 求解已完成，保存失败只记录日志
		if _, err := h.runs.Save(r.Context(), result); err != nil {
			logger.WithContext(r.Context()).Error().Err(err).
				Str("run_id", result.RunID.String()).
				Msg("保存运行记录失败")
		} else {
			resp.Saved = true
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Constraints 返回约束库与当前生效权重
func (h *ScheduleHandler) Constraints(w http.ResponseWriter, r *http.Request) {
	typ := r.URL.Query().Get("type")
	lib := constraints.GetLibrary(h.config.Weights)
	if typ != "" {
		lib = constraints.GetByType(typ, h.config.Weights)
	}
	manager := h.manager()
	for i := range lib {
		lib[i].Enabled = manager.GetConstraint(constraint.Type(lib[i].Name)) != nil
	}
	respondJSON(w, http.StatusOK, constraints.LibraryResponse{
		Library: lib,
		Summary: manager.Summary(),
	})
}

// manager 按当前权重和关闭列表创建约束管理器
func (h *ScheduleHandler) manager() *constraint.Manager {
	return builtin.NewManager(h.config.Weights, h.config.Disabled)
}

func (h *ScheduleHandler) loadProblem(ctx context.Context, req *SolveRequest) (*model.Problem, *errors.AppError) {
	if req.Problem != nil {
		return req.Problem, nil
	}
	if h.facts == nil {
		return nil, errors.New(errors.CodeInvalidInput, "未启用数据库，请在请求中提供 problem")
	}
	problem, err := h.facts.LoadProblem(ctx, repository.ProblemFilter{
		FloorCapacity: req.Source.FloorCapacity,
		From:          req.Source.From,
		To:            req.Source.To,
	})
	if err != nil {
		return nil, toAppError(err, "加载问题失败")
	}
	if err := h.validateStruct(problem); err != nil {
		return nil, err
	}
	return problem, nil
}

func (h *ScheduleHandler) engineConfig(opts *SolveOptions) scheduler.Config {
	cfg := h.config
	opt := *cfg.Optimization
	cfg.Optimization = &opt
	if opts == nil {
		return cfg
	}
	if opts.MaxIterations != nil {
		opt.MaxIterations = *opts.MaxIterations
	}
	if opts.Seed != nil {
		opt.Seed = *opts.Seed
	}
	if opts.Workers > 0 {
		opt.ParallelWorkers = opts.Workers
	}
	if opts.TimeoutSeconds > 0 {
		opt.MaxTime = time.Duration(opts.TimeoutSeconds) * time.Second
	}
	cfg.SkipLocalSearch = cfg.SkipLocalSearch || opts.SkipLocalSearch
	return cfg
}

func (h *ScheduleHandler) shouldSave(opts *SolveOptions) bool {
	if h.runs == nil {
		return false
	}
	return opts == nil || opts.Save == nil || *opts.Save
}

// decode 解析请求体，超过上限时返回输入错误
func (h *ScheduleHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) *errors.AppError {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败")
	}
	return nil
}

// toAppError 保留已有错误码，其余归为内部错误
func toAppError(err error, message string) *errors.AppError {
	if errors.GetCode(err) != errors.CodeUnknown {
		return errors.As(err)
	}
	return errors.Wrap(err, errors.CodeInternal, message)
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
		"fields":  err.Fields,
	})
}
