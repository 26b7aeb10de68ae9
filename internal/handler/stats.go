package handler

import (
	"net/http"

	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler"
	"github.com/paiban/mito/pkg/stats"
	plan "github.com/paiban/mito/pkg/validator"
)

// StatsRequest 统计请求
type StatsRequest struct {
	Problem     *model.Problem         `json:"problem" validate:"required"`
	Assignments []scheduler.Assignment `json:"assignments"`
}

// CheckRequest 方案校验请求
type CheckRequest struct {
	Problem     *model.Problem         `json:"problem" validate:"required"`
	Assignments []scheduler.Assignment `json:"assignments" validate:"required"`
}

// StatsResponse 统计响应
type StatsResponse struct {
	Coverage *stats.CoverageMetrics `json:"coverage"`
	Fairness *stats.FairnessMetrics `json:"fairness"`
	Report   string                 `json:"report"`
}

// Stats 分析一组分配的覆盖率与公平性
func (h *ScheduleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var req StatsRequest
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := h.validateStruct(&req); err != nil {
		respondError(w, err)
		return
	}
	facts, err := model.Compile(req.Problem)
	if err != nil {
		respondError(w, toAppError(err, "问题编译失败"))
		return
	}

	coverage := stats.NewCoverageAnalyzer()
	resp := StatsResponse{
		Coverage: coverage.Analyze(facts, req.Assignments),
		Fairness: stats.NewFairnessAnalyzer().Analyze(facts, req.Assignments),
	}
	resp.Report = coverage.GenerateCoverageReport(resp.Coverage)

	respondJSON(w, http.StatusOK, resp)
}

// Check 按当前权重评估外部提交的方案
func (h *ScheduleHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := h.validateStruct(&req); err != nil {
		respondError(w, err)
		return
	}
	facts, err := model.Compile(req.Problem)
	if err != nil {
		respondError(w, toAppError(err, "问题编译失败"))
		return
	}

	detector := plan.NewConflictDetector(h.manager())
	respondJSON(w, http.StatusOK, detector.Check(facts, req.Assignments))
}
