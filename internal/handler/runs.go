package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/paiban/mito/internal/repository"
	"github.com/paiban/mito/pkg/errors"
	"github.com/paiban/mito/pkg/scheduler"
)

// RunListResponse 运行列表响应
type RunListResponse struct {
	Runs   []*repository.Run `json:"runs"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// RunResponse 运行详情
type RunResponse struct {
	*repository.Run
	Assignments []scheduler.Assignment `json:"assignments"`
}

// ListRuns 分页列出运行记录
// 查询参数: limit, offset, feasible=true|false, since=RFC3339
func (h *ScheduleHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, errNoDatabase())
		return
	}
	filter, appErr := parseListFilter(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	runs, total, err := h.runs.List(r.Context(), filter)
	if err != nil {
		respondError(w, toAppError(err, "查询运行列表失败"))
		return
	}
	respondJSON(w, http.StatusOK, RunListResponse{
		Runs:   runs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// GetRun 获取运行记录及其分配
func (h *ScheduleHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, errNoDatabase())
		return
	}
	id, appErr := parseRunID(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, toAppError(err, "查询运行记录失败"))
		return
	}
	assignments, err := h.runs.GetAssignments(r.Context(), id)
	if err != nil {
		respondError(w, toAppError(err, "查询运行分配失败"))
		return
	}
	respondJSON(w, http.StatusOK, RunResponse{Run: run, Assignments: assignments})
}

// DeleteRun 删除运行记录
func (h *ScheduleHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, errNoDatabase())
		return
	}
	id, appErr := parseRunID(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	if err := h.runs.Delete(r.Context(), id); err != nil {
		respondError(w, toAppError(err, "删除运行记录失败"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseListFilter(r *http.Request) (repository.ListFilter, *errors.AppError) {
	q := r.URL.Query()
	filter := repository.DefaultListFilter()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, errors.InvalidInput("limit", "必须是整数")
		}
		filter = filter.WithLimit(n)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, errors.InvalidInput("offset", "必须是整数")
		}
		filter = filter.WithOffset(n)
	}
	if v := q.Get("feasible"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.InvalidInput("feasible", "必须是 true 或 false")
		}
		filter = filter.WithFeasible(b)
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.InvalidInput("since", "时间格式应为 RFC3339")
		}
		filter.Since = t
	}
	return filter.Normalize(), nil
}
