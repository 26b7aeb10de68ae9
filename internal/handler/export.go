package handler

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/paiban/mito/pkg/errors"
	"github.com/paiban/mito/pkg/export"
	"github.com/paiban/mito/pkg/scheduler"
)

// ExportRequest 导出请求
type ExportRequest struct {
	Title       string                 `json:"title,omitempty" validate:"max=200"`
	Assignments []scheduler.Assignment `json:"assignments" validate:"required"`
}

// Export 将请求中的分配导出为 csv 或 pdf
func (h *ScheduleHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := h.validateStruct(&req); err != nil {
		respondError(w, err)
		return
	}
	writeExport(w, r.PathValue("format"), req.Assignments, req.Title, "schedule")
}

// ExportRun 导出已保存的运行
func (h *ScheduleHandler) ExportRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, errNoDatabase())
		return
	}
	id, appErr := parseRunID(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	assignments, err := h.runs.GetAssignments(r.Context(), id)
	if err != nil {
		respondError(w, toAppError(err, "查询运行分配失败"))
		return
	}
	writeExport(w, r.PathValue("format"), assignments, "Run "+id.String(), "run-"+id.String())
}

func writeExport(w http.ResponseWriter, format string, assignments []scheduler.Assignment, title, filename string) {
	data := export.CalendarDataset(assignments)

	var (
		body        []byte
		err         error
		contentType string
	)
	switch format {
	case "csv":
		body, err = export.NewCSVExporter().Render(data)
		contentType = "text/csv; charset=utf-8"
	case "pdf":
		body, err = export.NewPDFExporter().Render(data, title)
		contentType = "application/pdf"
	default:
		respondError(w, errors.InvalidInput("format", "仅支持 csv 或 pdf"))
		return
	}
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInternal, "导出失败"))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, filename, format))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func parseRunID(r *http.Request) (uuid.UUID, *errors.AppError) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CodeInvalidInput, "无效的运行ID格式")
	}
	return id, nil
}

func errNoDatabase() *errors.AppError {
	return errors.New(errors.CodeNotFound, "未启用数据库，运行记录不可用")
}
