package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/paiban/mito/internal/metrics"
	"github.com/paiban/mito/internal/repository"
	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler"
	"github.com/paiban/mito/pkg/scheduler/constraint"
)

var monday = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func sampleProblem() *model.Problem {
	office := int64(1)
	var shifts []model.Shift
	for d := 0; d < 3; d++ {
		shifts = append(shifts, model.Shift{ID: int64(d + 1), Start: monday.Add(time.Duration(d*24) * time.Hour), Length: 240})
	}
	return &model.Problem{
		FloorCapacity: 2,
		PiGroups:      []model.PiGroup{{ID: 1, Name: "结构组"}, {ID: 2, Name: "合成组"}},
		Rooms:         []model.Room{{ID: 1, Name: "办公室", Capacity: 2}, {ID: 2, Name: "洁净室", Capacity: 1}},
		Persons: []model.Person{
			{ID: 1, Name: "Alice", OfficeID: &office, PiGroupID: 1},
			{ID: 2, Name: "Bob", OfficeID: &office, PiGroupID: 2},
		},
		Shifts: shifts,
		Tasks: []model.Task{
			{ID: 11, PersonID: 1, Name: "PCR", RequiredLabs: []int64{2}},
			{ID: 12, PersonID: 1, Name: "Imaging"},
			{ID: 13, PersonID: 2, Name: "Synthesis", Priority: 3},
		},
	}
}

func testHandler() *ScheduleHandler {
	cfg := scheduler.DefaultConfig()
	cfg.Now = func() time.Time { return monday.Add(-24 * time.Hour) }
	cfg.Optimization.MaxTime = 0
	cfg.Optimization.StopOnPlateau = false
	return NewScheduleHandler(cfg, metrics.New())
}

func serve(h *ScheduleHandler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		json.NewEncoder(&buf).Encode(b)
	}
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("解析错误响应失败: %v", err)
	}
	return body
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestSolve(t *testing.T) {
	h := testHandler()
	req := SolveRequest{
		Problem: sampleProblem(),
		Options: &SolveOptions{MaxIterations: intPtr(200), Seed: int64Ptr(7)},
	}

	rec := serve(h, http.MethodPost, "/api/v1/solve", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		RunID       string                 `json:"run_id"`
		Assignments []scheduler.Assignment `json:"assignments"`
		Feasible    bool                   `json:"feasible"`
		Termination string                 `json:"termination"`
		Coverage    struct {
			TotalSlots int `json:"total_slots"`
		} `json:"coverage"`
		Saved bool `json:"saved"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if _, err := uuid.Parse(resp.RunID); err != nil {
		t.Errorf("run_id 无效: %q", resp.RunID)
	}
	// 3 个班次 x 楼层容量 2
	if len(resp.Assignments) != 6 || resp.Coverage.TotalSlots != 6 {
		t.Errorf("期望 6 个槽位, got %d / %d", len(resp.Assignments), resp.Coverage.TotalSlots)
	}
	if !resp.Feasible {
		t.Error("简单问题应得到可行解")
	}
	if resp.Termination != "max_steps" {
		t.Errorf("期望按步数终止, got %q", resp.Termination)
	}
	if resp.Saved {
		t.Error("未启用数据库时不应保存")
	}

	mrec := httptest.NewRecorder()
	h.metrics.Handler().ServeHTTP(mrec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(mrec.Body.String(), `mito_solve_total{feasible="true",termination="max_steps"} 1`) {
		t.Error("求解指标未记录")
	}
}

func TestSolve_Invalid(t *testing.T) {
	badShift := sampleProblem()
	badShift.Shifts[0].Length = 0

	negFloor := sampleProblem()
	negFloor.FloorCapacity = -1

	unknownPerson := sampleProblem()
	unknownPerson.Tasks[0].PersonID = 99

	tests := []struct {
		name      string
		body      interface{}
		wantCode  string
		wantField string
	}{
		{"空请求", "{}", "VALIDATION_FAILED", "problem"},
		{"非法JSON", "{", "INVALID_INPUT", ""},
		{"未知字段", `{"problme": {}}`, "INVALID_INPUT", ""},
		{"班次长度为0", SolveRequest{Problem: badShift}, "VALIDATION_FAILED", "problem.shifts[0].length"},
		{"楼层容量为负", SolveRequest{Problem: negFloor}, "VALIDATION_FAILED", "problem.floor_capacity"},
		{"选项越界", SolveRequest{Problem: sampleProblem(), Options: &SolveOptions{Workers: 100}}, "VALIDATION_FAILED", "options.workers"},
		{"引用不存在的人员", SolveRequest{Problem: unknownPerson}, "UNKNOWN_REFERENCE", "person_id"},
		{"未启用数据库", SolveRequest{Source: &ProblemSource{FloorCapacity: 2}}, "INVALID_INPUT", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(testHandler(), http.MethodPost, "/api/v1/solve", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("期望 400, got %d: %s", rec.Code, rec.Body.String())
			}
			body := decodeError(t, rec)
			if body.Code != tt.wantCode {
				t.Errorf("期望错误码 %s, got %s", tt.wantCode, body.Code)
			}
			if tt.wantField != "" {
				if _, ok := body.Fields[tt.wantField]; !ok {
					t.Errorf("期望字段 %s 报错, got %v", tt.wantField, body.Fields)
				}
			}
		})
	}
}

func TestSolve_UnknownReferenceField(t *testing.T) {
	problem := sampleProblem()
	problem.Tasks[0].PersonID = 99

	rec := serve(testHandler(), http.MethodPost, "/api/v1/solve", SolveRequest{Problem: problem})
	body := decodeError(t, rec)
	// 引用ID以数字返回
	if id, ok := body.Fields["person_id"].(float64); !ok || id != 99 {
		t.Errorf("期望 person_id=99, got %#v", body.Fields["person_id"])
	}
}

func TestSolve_SavesRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("创建 sqlmock 失败: %v", err)
	}
	defer db.Close()

	h := testHandler().WithRepositories(repository.NewFactRepository(db), repository.NewRunRepository(db))

	// 没有任务时不写入槽位
	problem := sampleProblem()
	problem.Tasks = nil

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO solve_runs")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := serve(h, http.MethodPost, "/api/v1/solve", SolveRequest{
		Problem: problem,
		Options: &SolveOptions{MaxIterations: intPtr(10)},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Saved bool `json:"saved"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Saved {
		t.Error("启用数据库时应保存运行记录")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("语句未全部执行: %v", err)
	}
}

func TestSolve_SaveFailureStillResponds(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("创建 sqlmock 失败: %v", err)
	}
	defer db.Close()

	h := testHandler().WithRepositories(repository.NewFactRepository(db), repository.NewRunRepository(db))
	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	rec := serve(h, http.MethodPost, "/api/v1/solve", SolveRequest{
		Problem: sampleProblem(),
		Options: &SolveOptions{MaxIterations: intPtr(10)},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("保存失败不应影响求解结果, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"saved":true`) {
		t.Error("保存失败时 saved 应为 false")
	}
}

func TestSolve_SkipSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("创建 sqlmock 失败: %v", err)
	}
	defer db.Close()

	h := testHandler().WithRepositories(repository.NewFactRepository(db), repository.NewRunRepository(db))
	save := false
	rec := serve(h, http.MethodPost, "/api/v1/solve", SolveRequest{
		Problem: sampleProblem(),
		Options: &SolveOptions{MaxIterations: intPtr(10), Save: &save},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("save=false 时不应访问数据库: %v", err)
	}
}

func TestEngineConfig(t *testing.T) {
	h := testHandler()
	h.config.Optimization.MaxIterations = 500

	cfg := h.engineConfig(&SolveOptions{MaxIterations: intPtr(0), Workers: 4, TimeoutSeconds: 5, SkipLocalSearch: true})
	if cfg.Optimization.MaxIterations != 0 || cfg.Optimization.ParallelWorkers != 4 {
		t.Errorf("选项未生效: %+v", cfg.Optimization)
	}
	if cfg.Optimization.MaxTime != 5*time.Second || !cfg.SkipLocalSearch {
		t.Errorf("超时或阶段选项未生效: %+v", cfg)
	}
	if h.config.Optimization.MaxIterations != 500 {
		t.Error("请求选项不应修改处理器的默认配置")
	}
}

func TestConstraints(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 13},
		{"?type=hard", 8},
		{"?type=soft", 5},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := serve(testHandler(), http.MethodGet, "/api/v1/constraints"+tt.query, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("期望 200, got %d", rec.Code)
			}
			var resp struct {
				Library []json.RawMessage      `json:"library"`
				Summary map[string]interface{} `json:"summary"`
			}
			json.NewDecoder(rec.Body).Decode(&resp)
			if len(resp.Library) != tt.want {
				t.Errorf("期望 %d 条约束, got %d", tt.want, len(resp.Library))
			}
			if len(resp.Summary) == 0 {
				t.Error("缺少约束摘要")
			}
		})
	}
}

func TestConstraints_Disabled(t *testing.T) {
	h := testHandler()
	h.config.Disabled = []constraint.Type{constraint.TypeFloorOccupancy}

	rec := serve(h, http.MethodGet, "/api/v1/constraints?type=hard", nil)
	var resp struct {
		Library []struct {
			Name    string `json:"name"`
			Enabled bool   `json:"enabled"`
		} `json:"library"`
		Summary map[string]interface{} `json:"summary"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)

	for _, def := range resp.Library {
		if want := def.Name != string(constraint.TypeFloorOccupancy); def.Enabled != want {
			t.Errorf("%s enabled = %v, expected %v", def.Name, def.Enabled, want)
		}
	}
	if resp.Summary["hard"] != float64(7) {
		t.Errorf("期望 7 条生效的硬约束, got %v", resp.Summary["hard"])
	}
}

func boundAssignments() []scheduler.Assignment {
	return []scheduler.Assignment{
		{SlotID: 0, ShiftID: 1, Start: monday, End: monday.Add(4 * time.Hour),
			TaskID: int64Ptr(11), TaskName: "PCR", PersonID: int64Ptr(1), PersonName: "Alice"},
		{SlotID: 1, ShiftID: 1, Start: monday, End: monday.Add(4 * time.Hour)},
	}
}

func TestStats(t *testing.T) {
	rec := serve(testHandler(), http.MethodPost, "/api/v1/stats", StatsRequest{
		Problem:     sampleProblem(),
		Assignments: boundAssignments(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Coverage struct {
			ScheduledTasks int `json:"scheduled_tasks"`
			TotalTasks     int `json:"total_tasks"`
		} `json:"coverage"`
		Report string `json:"report"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Coverage.ScheduledTasks != 1 || resp.Coverage.TotalTasks != 3 {
		t.Errorf("覆盖率错误: %+v", resp.Coverage)
	}
	if resp.Report == "" {
		t.Error("缺少文本报告")
	}
}

func TestStats_MissingProblem(t *testing.T) {
	rec := serve(testHandler(), http.MethodPost, "/api/v1/stats", `{"assignments": []}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("期望 400, got %d", rec.Code)
	}
}

func TestCheck(t *testing.T) {
	assignments := boundAssignments()
	// Alice 的第二个任务放到同一班次
	assignments[1].TaskID = int64Ptr(12)

	rec := serve(testHandler(), http.MethodPost, "/api/v1/validate", CheckRequest{
		Problem:     sampleProblem(),
		Assignments: assignments,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Feasible bool `json:"feasible"`
		Loaded   int  `json:"loaded"`
		Score    struct {
			Hard int64 `json:"hard"`
		} `json:"score"`
		Conflicts []struct {
			Type string `json:"type"`
		} `json:"conflicts"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Feasible {
		t.Error("同一人员同一班次两个任务应不可行")
	}
	if resp.Loaded != 2 {
		t.Errorf("期望载入 2 个分配, got %d", resp.Loaded)
	}
	if resp.Score.Hard >= 0 {
		t.Errorf("期望负的硬得分, got %d", resp.Score.Hard)
	}
	if len(resp.Conflicts) == 0 || resp.Conflicts[0].Type != "violation" {
		t.Errorf("期望约束冲突, got %+v", resp.Conflicts)
	}
}

func TestCheck_MissingAssignments(t *testing.T) {
	rec := serve(testHandler(), http.MethodPost, "/api/v1/validate", CheckRequest{Problem: sampleProblem()})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("期望 400, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Fields["assignments"] == nil {
		t.Errorf("期望 assignments 字段错误, got %+v", body.Fields)
	}
}

func TestExport(t *testing.T) {
	tests := []struct {
		format      string
		wantStatus  int
		contentType string
		prefix      string
	}{
		{"csv", http.StatusOK, "text/csv; charset=utf-8", "Subject,Start Date,Start Time,End Date,End Time\n"},
		{"pdf", http.StatusOK, "application/pdf", "%PDF"},
		{"xlsx", http.StatusBadRequest, "application/json", ""},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := serve(testHandler(), http.MethodPost, "/api/v1/export/"+tt.format, ExportRequest{
				Title:       "Week 10",
				Assignments: boundAssignments(),
			})
			if rec.Code != tt.wantStatus {
				t.Fatalf("期望 %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type 错误: %s", got)
			}
			if !strings.HasPrefix(rec.Body.String(), tt.prefix) {
				t.Errorf("内容开头错误: %.40q", rec.Body.String())
			}
		})
	}
}

func TestExport_CSVRows(t *testing.T) {
	rec := serve(testHandler(), http.MethodPost, "/api/v1/export/csv", ExportRequest{Assignments: boundAssignments()})
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	// 未绑定的槽位不导出
	if len(lines) != 2 {
		t.Fatalf("期望表头加 1 行, got %d", len(lines))
	}
	if lines[1] != "Alice - PCR,03/04/2024,09:00:00,03/04/2024,13:00:00" {
		t.Errorf("导出行错误: %s", lines[1])
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "schedule.csv") {
		t.Error("缺少附件文件名")
	}
}

func TestRuns_NoDatabase(t *testing.T) {
	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/runs"},
		{http.MethodGet, "/api/v1/runs/" + uuid.NewString()},
		{http.MethodDelete, "/api/v1/runs/" + uuid.NewString()},
		{http.MethodGet, "/api/v1/runs/" + uuid.NewString() + "/export/csv"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			rec := serve(testHandler(), p.method, p.path, nil)
			if rec.Code != http.StatusNotFound {
				t.Errorf("期望 404, got %d", rec.Code)
			}
		})
	}
}

func runsHandler(t *testing.T) (*ScheduleHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("创建 sqlmock 失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return testHandler().WithRepositories(repository.NewFactRepository(db), repository.NewRunRepository(db)), mock
}

var runColumnNames = []string{
	"id", "hard_score", "soft_score", "feasible", "termination", "steps",
	"total_slots", "bound_slots", "unassigned", "warnings", "duration_ms", "created_at",
}

var assignmentColumnNames = []string{
	"slot_id", "shift_id", "start_time", "end_time", "task_id", "task_name", "person_id", "person_name",
}

func TestGetRun(t *testing.T) {
	h, mock := runsHandler(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM solve_runs WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(runColumnNames).
			AddRow(id.String(), 0, -5, true, "max_steps", 300, 2, 1, "{}", "{}", 1500, monday))
	mock.ExpectQuery(regexp.QuoteMeta("FROM run_assignments")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(assignmentColumnNames).
			AddRow(0, 1, monday, monday.Add(4*time.Hour), 11, "PCR", 1, "Alice"))

	rec := serve(h, http.MethodGet, "/api/v1/runs/"+id.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID          string                 `json:"id"`
		SoftScore   int64                  `json:"soft_score"`
		Assignments []scheduler.Assignment `json:"assignments"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.ID != id.String() || resp.SoftScore != -5 || len(resp.Assignments) != 1 {
		t.Errorf("运行详情错误: %+v", resp)
	}
}

func TestGetRun_Errors(t *testing.T) {
	t.Run("无效ID", func(t *testing.T) {
		h, _ := runsHandler(t)
		rec := serve(h, http.MethodGet, "/api/v1/runs/not-a-uuid", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("期望 400, got %d", rec.Code)
		}
	})
	t.Run("不存在", func(t *testing.T) {
		h, mock := runsHandler(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM solve_runs WHERE id = $1")).WillReturnError(sql.ErrNoRows)
		rec := serve(h, http.MethodGet, "/api/v1/runs/"+uuid.NewString(), nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("期望 404, got %d", rec.Code)
		}
		if body := decodeError(t, rec); body.Code != "NOT_FOUND" {
			t.Errorf("期望 NOT_FOUND, got %s", body.Code)
		}
	})
}

func TestListRuns(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setup      func(sqlmock.Sqlmock)
		wantStatus int
		wantLimit  int
	}{
		{
			name:  "默认分页",
			query: "",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM solve_runs")).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
				m.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
					WithArgs(20, 0).
					WillReturnRows(sqlmock.NewRows(runColumnNames).
						AddRow(uuid.NewString(), 0, 3, true, "max_time", 10, 2, 2, "{}", "{}", 20, monday))
			},
			wantStatus: http.StatusOK,
			wantLimit:  20,
		},
		{
			name:  "只看可行解",
			query: "?feasible=true&limit=5&offset=10",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("WHERE feasible = $1")).
					WithArgs(true).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
				m.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
					WithArgs(true, 5, 10).
					WillReturnRows(sqlmock.NewRows(runColumnNames))
			},
			wantStatus: http.StatusOK,
			wantLimit:  5,
		},
		{
			name:       "非法参数",
			query:      "?limit=abc",
			setup:      func(sqlmock.Sqlmock) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "非法时间",
			query:      "?since=yesterday",
			setup:      func(sqlmock.Sqlmock) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mock := runsHandler(t)
			tt.setup(mock)

			rec := serve(h, http.MethodGet, "/api/v1/runs"+tt.query, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("期望 %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp RunListResponse
			json.NewDecoder(rec.Body).Decode(&resp)
			if resp.Limit != tt.wantLimit {
				t.Errorf("期望 limit %d, got %d", tt.wantLimit, resp.Limit)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("语句未全部执行: %v", err)
			}
		})
	}
}

func TestDeleteRun(t *testing.T) {
	h, mock := runsHandler(t)
	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM solve_runs WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := serve(h, http.MethodDelete, "/api/v1/runs/"+id.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("期望 204, got %d", rec.Code)
	}
}

func TestExportRun(t *testing.T) {
	h, mock := runsHandler(t)
	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM run_assignments")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(assignmentColumnNames).
			AddRow(0, 1, monday, monday.Add(4*time.Hour), 11, "PCR", 1, "Alice"))

	rec := serve(h, http.MethodGet, "/api/v1/runs/"+id.String()+"/export/csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Alice - PCR") {
		t.Errorf("导出内容缺少分配: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "run-"+id.String()+".csv") {
		t.Errorf("文件名错误: %s", rec.Header().Get("Content-Disposition"))
	}
}
