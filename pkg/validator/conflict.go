// Package validator 校验外部提交的排班方案
package validator

import (
	"fmt"

	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler"
	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/solution"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictUnknownShift ConflictType = "unknown_shift" // 班次不存在
	ConflictUnknownTask  ConflictType = "unknown_task"  // 任务不存在
	ConflictShiftFull    ConflictType = "shift_full"    // 班次槽位已满
	ConflictSlotMoved    ConflictType = "slot_moved"    // 指定槽位不可用，已改用同班次其他槽位
	ConflictViolation    ConflictType = "violation"     // 约束违反
)

// Conflict 冲突信息
type Conflict struct {
	Type     ConflictType `json:"type"`
	Severity string       `json:"severity"` // error/warning
	SlotID   *int         `json:"slot_id,omitempty"`
	ShiftID  int64        `json:"shift_id,omitempty"`
	TaskIDs  []int64      `json:"task_ids,omitempty"`
	Message  string       `json:"message"`
}

// Report 校验结果
type Report struct {
	Score      constraint.Score   `json:"score"`
	Feasible   bool               `json:"feasible"`
	Loaded     int                `json:"loaded"` // 成功载入的分配数
	Conflicts  []Conflict         `json:"conflicts"`
	Violations *constraint.Result `json:"violations"`
}

// HasErrors 是否存在错误级冲突
func (r *Report) HasErrors() bool {
	for _, c := range r.Conflicts {
		if c.Severity == "error" {
			return true
		}
	}
	return false
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	manager *constraint.Manager
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(manager *constraint.Manager) *ConflictDetector {
	return &ConflictDetector{manager: manager}
}

// Check 将分配载入槽位并做全量评估
// 未绑定任务的分配会被忽略
func (d *ConflictDetector) Check(facts *model.FactSet, assignments []scheduler.Assignment) *Report {
	st := solution.New(facts)
	report := &Report{Conflicts: make([]Conflict, 0)}

	shiftIdx := make(map[int64]int, facts.NumShifts())
	for s := 0; s < facts.NumShifts(); s++ {
		shiftIdx[facts.Shift(s).ID] = s
	}

	for _, a := range assignments {
		if !a.Bound() {
			continue
		}
		slotID := a.SlotID
		shift, ok := shiftIdx[a.ShiftID]
		if !ok {
			report.Conflicts = append(report.Conflicts, Conflict{
				Type:     ConflictUnknownShift,
				Severity: "error",
				SlotID:   &slotID,
				ShiftID:  a.ShiftID,
				TaskIDs:  []int64{*a.TaskID},
				Message:  fmt.Sprintf("班次 %d 不存在", a.ShiftID),
			})
			continue
		}
		task, ok := facts.TaskIndex(*a.TaskID)
		if !ok {
			report.Conflicts = append(report.Conflicts, Conflict{
				Type:     ConflictUnknownTask,
				Severity: "error",
				SlotID:   &slotID,
				ShiftID:  a.ShiftID,
				TaskIDs:  []int64{*a.TaskID},
				Message:  fmt.Sprintf("任务 %d 不存在", *a.TaskID),
			})
			continue
		}

		slot := pickSlot(st, shift, a.SlotID)
		if slot < 0 {
			report.Conflicts = append(report.Conflicts, Conflict{
				Type:     ConflictShiftFull,
				Severity: "error",
				SlotID:   &slotID,
				ShiftID:  a.ShiftID,
				TaskIDs:  []int64{*a.TaskID},
				Message:  fmt.Sprintf("班次 %d 的 %d 个槽位已满", a.ShiftID, facts.SlotCapacity(shift)),
			})
			continue
		}
		if slot != a.SlotID {
			report.Conflicts = append(report.Conflicts, Conflict{
				Type:     ConflictSlotMoved,
				Severity: "warning",
				SlotID:   &slotID,
				ShiftID:  a.ShiftID,
				TaskIDs:  []int64{*a.TaskID},
				Message:  fmt.Sprintf("槽位 %d 不属于班次 %d 或已占用，改用槽位 %d", a.SlotID, a.ShiftID, slot),
			})
		}
		st.Bind(slot, task)
		report.Loaded++
	}

	report.Violations = d.manager.Explain(st)
	report.Score = report.Violations.Score
	report.Feasible = report.Violations.IsValid

	for _, v := range report.Violations.HardViolations {
		report.Conflicts = append(report.Conflicts, Conflict{
			Type:     ConflictViolation,
			Severity: "error",
			TaskIDs:  v.TaskIDs,
			Message:  fmt.Sprintf("%s: %s", v.ConstraintName, v.Message),
		})
	}
	return report
}

// pickSlot 优先使用指定槽位，否则取班次内第一个空槽位，无可用槽位返回 -1
func pickSlot(st *solution.State, shift, preferred int) int {
	if preferred >= 0 && preferred < st.NumSlots() &&
		st.ShiftOf(preferred) == shift && st.TaskAt(preferred) == solution.None {
		return preferred
	}
	for _, slot := range st.ShiftSlots(shift) {
		if st.TaskAt(slot) == solution.None {
			return slot
		}
	}
	return -1
}
