package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/paiban/mito/pkg/errors"
)

// Usage 编译后的设备占用（稠密下标）
type Usage struct {
	Equipment int
	Units     int
}

// FactSet 编译后的不可变事实集合
// 每类事实按输入顺序分配稠密下标，求解热路径只使用下标
type FactSet struct {
	FloorCapacity int

	piGroups  []PiGroup
	persons   []Person
	rooms     []Room
	equipment []Equipment
	shifts    []Shift
	tasks     []Task

	taskByID map[int64]int

	personPiGroup []int
	personLimit   []int
	unavailable   []bool // person*numShifts+shift

	taskPerson    []int
	taskRooms     [][]int
	taskEquipment [][]Usage
	taskPred      []int
	taskPredRef   []bool
	taskSucc      [][]int

	shiftPoints   [][]int
	shiftWeek     []int
	shiftCapacity []int
	pointTimes    []time.Time
	weekKeys      []int

	warnings []string
}

// Compile 校验问题输入并生成事实集合
func Compile(p *Problem) (*FactSet, error) {
	if p == nil {
		return nil, errors.New(errors.CodeEmptyProblem, "问题输入为空")
	}
	if p.FloorCapacity < 0 {
		return nil, errors.InvalidInput("floor_capacity", "不能为负数")
	}

	fs := &FactSet{
		FloorCapacity: p.FloorCapacity,
		piGroups:      append([]PiGroup(nil), p.PiGroups...),
		persons:       append([]Person(nil), p.Persons...),
		rooms:         append([]Room(nil), p.Rooms...),
		equipment:     append([]Equipment(nil), p.Equipment...),
		shifts:        append([]Shift(nil), p.Shifts...),
		tasks:         append([]Task(nil), p.Tasks...),
	}

	groupIdx, err := indexIDs("课题组", len(fs.piGroups), func(i int) int64 { return fs.piGroups[i].ID })
	if err != nil {
		return nil, err
	}
	roomIdx, err := indexIDs("房间", len(fs.rooms), func(i int) int64 { return fs.rooms[i].ID })
	if err != nil {
		return nil, err
	}
	equipIdx, err := indexIDs("设备", len(fs.equipment), func(i int) int64 { return fs.equipment[i].ID })
	if err != nil {
		return nil, err
	}
	personIdx, err := indexIDs("人员", len(fs.persons), func(i int) int64 { return fs.persons[i].ID })
	if err != nil {
		return nil, err
	}
	if _, err := indexIDs("班次", len(fs.shifts), func(i int) int64 { return fs.shifts[i].ID }); err != nil {
		return nil, err
	}
	fs.taskByID, err = indexIDs("任务", len(fs.tasks), func(i int) int64 { return fs.tasks[i].ID })
	if err != nil {
		return nil, err
	}

	for _, r := range fs.rooms {
		if r.Capacity < 0 {
			return nil, errors.InvalidInput(fmt.Sprintf("rooms[%d].capacity", r.ID), "不能为负数")
		}
	}
	for _, e := range fs.equipment {
		if e.Capacity < 0 {
			return nil, errors.InvalidInput(fmt.Sprintf("equipment[%d].capacity", e.ID), "不能为负数")
		}
	}

	if err := fs.compileShifts(); err != nil {
		return nil, err
	}
	if err := fs.compilePersons(groupIdx, roomIdx); err != nil {
		return nil, err
	}
	if err := fs.compileTasks(personIdx, roomIdx, equipIdx); err != nil {
		return nil, err
	}
	return fs, nil
}

// indexIDs 建立外部ID到稠密下标的映射并检查重复
func indexIDs(kind string, n int, id func(int) int64) (map[int64]int, error) {
	m := make(map[int64]int, n)
	for i := 0; i < n; i++ {
		if _, dup := m[id(i)]; dup {
			return nil, errors.DuplicateID(kind, id(i))
		}
		m[id(i)] = i
	}
	return m, nil
}

func (fs *FactSet) compileShifts() error {
	pointSet := make(map[int64]time.Time)
	for i := range fs.shifts {
		s := &fs.shifts[i]
		if s.Length <= 0 {
			return errors.InvalidInput(fmt.Sprintf("shifts[%d].length", s.ID), "必须大于0")
		}
		pointSet[s.Start.UnixNano()] = s.Start
		for _, g := range s.TimeGrains {
			pointSet[g.Start.UnixNano()] = g.Start
		}
	}

	keys := make([]int64, 0, len(pointSet))
	for k := range pointSet {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	pointIdx := make(map[int64]int, len(keys))
	fs.pointTimes = make([]time.Time, len(keys))
	for i, k := range keys {
		pointIdx[k] = i
		fs.pointTimes[i] = pointSet[k]
	}

	weekIdx := make(map[int]int)
	fs.shiftPoints = make([][]int, len(fs.shifts))
	fs.shiftWeek = make([]int, len(fs.shifts))
	fs.shiftCapacity = make([]int, len(fs.shifts))
	for i := range fs.shifts {
		s := &fs.shifts[i]
		// 班次覆盖窗口 [Start, End) 内的全部时间点，窗口重叠的班次必然共享其中较晚的开始时间点
		start, end := s.Start.UnixNano(), s.End().UnixNano()
		seen := make(map[int]bool)
		for p := sort.Search(len(keys), func(j int) bool { return keys[j] >= start }); p < len(keys) && keys[p] < end; p++ {
			seen[p] = true
			fs.shiftPoints[i] = append(fs.shiftPoints[i], p)
		}
		for _, g := range s.TimeGrains {
			if p := pointIdx[g.Start.UnixNano()]; !seen[p] {
				seen[p] = true
				fs.shiftPoints[i] = append(fs.shiftPoints[i], p)
			}
		}
		sort.Ints(fs.shiftPoints[i])

		key := WeekKey(s.Start)
		w, ok := weekIdx[key]
		if !ok {
			w = len(fs.weekKeys)
			weekIdx[key] = w
			fs.weekKeys = append(fs.weekKeys, key)
		}
		fs.shiftWeek[i] = w

		fs.shiftCapacity[i] = fs.FloorCapacity
		if s.Capacity > 0 {
			fs.shiftCapacity[i] = s.Capacity
		}
	}
	return nil
}

func (fs *FactSet) compilePersons(groupIdx, roomIdx map[int64]int) error {
	n := len(fs.persons)
	fs.personPiGroup = make([]int, n)
	fs.personLimit = make([]int, n)
	fs.unavailable = make([]bool, n*len(fs.shifts))
	for i := range fs.persons {
		p := &fs.persons[i]
		owner := fmt.Sprintf("人员 %d", p.ID)
		g, ok := groupIdx[p.PiGroupID]
		if !ok {
			return errors.UnknownReference(owner, "pi_group_id", p.PiGroupID)
		}
		fs.personPiGroup[i] = g
		if p.OfficeID != nil {
			if _, ok := roomIdx[*p.OfficeID]; !ok {
				return errors.UnknownReference(owner, "office_id", *p.OfficeID)
			}
		}
		if p.WeeklyShiftLimit < 0 {
			return errors.InvalidInput(fmt.Sprintf("persons[%d].weekly_shift_limit", p.ID), "不能为负数")
		}
		fs.personLimit[i] = p.WeeklyShiftLimit

		for s := range fs.shifts {
			w := fs.shifts[s].Window()
			for _, r := range p.Unavailable {
				if r.Overlaps(w) {
					fs.unavailable[i*len(fs.shifts)+s] = true
					break
				}
			}
		}
	}
	return nil
}

func (fs *FactSet) compileTasks(personIdx, roomIdx, equipIdx map[int64]int) error {
	n := len(fs.tasks)
	fs.taskPerson = make([]int, n)
	fs.taskRooms = make([][]int, n)
	fs.taskEquipment = make([][]Usage, n)
	fs.taskPred = make([]int, n)
	fs.taskPredRef = make([]bool, n)
	fs.taskSucc = make([][]int, n)

	for i := range fs.tasks {
		t := &fs.tasks[i]
		owner := fmt.Sprintf("任务 %d", t.ID)
		p, ok := personIdx[t.PersonID]
		if !ok {
			return errors.UnknownReference(owner, "person_id", t.PersonID)
		}
		fs.taskPerson[i] = p

		seen := make(map[int]bool)
		if office := fs.persons[p].OfficeID; office != nil {
			r := roomIdx[*office]
			seen[r] = true
			fs.taskRooms[i] = append(fs.taskRooms[i], r)
		}
		for _, lab := range t.RequiredLabs {
			r, ok := roomIdx[lab]
			if !ok {
				return errors.UnknownReference(owner, "required_labs", lab)
			}
			if !seen[r] {
				seen[r] = true
				fs.taskRooms[i] = append(fs.taskRooms[i], r)
			}
		}

		units := make(map[int]int)
		var order []int
		for _, u := range t.RequiredEquipment {
			e, ok := equipIdx[u.EquipmentID]
			if !ok {
				return errors.UnknownReference(owner, "required_equipment", u.EquipmentID)
			}
			if u.Units <= 0 {
				return errors.InvalidInput(fmt.Sprintf("tasks[%d].required_equipment", t.ID), "占用数量必须大于0")
			}
			if _, ok := units[e]; !ok {
				order = append(order, e)
			}
			units[e] += u.Units
		}
		for _, e := range order {
			fs.taskEquipment[i] = append(fs.taskEquipment[i], Usage{Equipment: e, Units: units[e]})
		}

		fs.taskPred[i] = -1
		if t.PrecedingTaskID != nil {
			fs.taskPredRef[i] = true
			if pred, ok := fs.taskByID[*t.PrecedingTaskID]; ok {
				fs.taskPred[i] = pred
			} else {
				fs.warnings = append(fs.warnings,
					fmt.Sprintf("任务 %d 的前置任务 %d 不存在，已忽略该前置关系", t.ID, *t.PrecedingTaskID))
			}
		}
	}

	for i, pred := range fs.taskPred {
		if pred >= 0 && pred != i {
			fs.taskSucc[pred] = append(fs.taskSucc[pred], i)
		}
	}
	return nil
}

// Warnings 返回编译期间产生的警告
func (fs *FactSet) Warnings() []string {
	return append([]string(nil), fs.warnings...)
}

func (fs *FactSet) NumTasks() int      { return len(fs.tasks) }
func (fs *FactSet) NumShifts() int     { return len(fs.shifts) }
func (fs *FactSet) NumPersons() int    { return len(fs.persons) }
func (fs *FactSet) NumRooms() int      { return len(fs.rooms) }
func (fs *FactSet) NumEquipment() int  { return len(fs.equipment) }
func (fs *FactSet) NumPiGroups() int   { return len(fs.piGroups) }
func (fs *FactSet) NumTimePoints() int { return len(fs.pointTimes) }
func (fs *FactSet) NumWeeks() int      { return len(fs.weekKeys) }

func (fs *FactSet) Task(i int) *Task           { return &fs.tasks[i] }
func (fs *FactSet) Shift(i int) *Shift         { return &fs.shifts[i] }
func (fs *FactSet) Person(i int) *Person       { return &fs.persons[i] }
func (fs *FactSet) Room(i int) *Room           { return &fs.rooms[i] }
func (fs *FactSet) Equipment(i int) *Equipment { return &fs.equipment[i] }
func (fs *FactSet) PiGroup(i int) *PiGroup     { return &fs.piGroups[i] }

// TaskIndex 按外部ID查找任务下标
func (fs *FactSet) TaskIndex(id int64) (int, bool) {
	i, ok := fs.taskByID[id]
	return i, ok
}

// TaskPerson 返回任务所属人员下标
func (fs *FactSet) TaskPerson(t int) int { return fs.taskPerson[t] }

// TaskPiGroup 返回任务所属课题组下标
func (fs *FactSet) TaskPiGroup(t int) int { return fs.personPiGroup[fs.taskPerson[t]] }

// OccupiedRooms 返回任务占用的房间：人员办公室 ∪ 任务实验室
func (fs *FactSet) OccupiedRooms(t int) []int { return fs.taskRooms[t] }

// TaskEquipment 返回任务的设备占用
func (fs *FactSet) TaskEquipment(t int) []Usage { return fs.taskEquipment[t] }

// Predecessor 返回前置任务下标，无前置或引用缺失时为 -1
func (fs *FactSet) Predecessor(t int) int { return fs.taskPred[t] }

// HasPredecessorRef 任务是否声明了前置任务（无论其是否存在）
func (fs *FactSet) HasPredecessorRef(t int) bool { return fs.taskPredRef[t] }

// Successors 返回以该任务为前置的任务下标
func (fs *FactSet) Successors(t int) []int { return fs.taskSucc[t] }

// DueBefore 班次开始时间是否早于任务截止日期（无截止日期视为满足）
func (fs *FactSet) DueBefore(t, s int) bool {
	due := fs.tasks[t].DueDate
	return due == nil || fs.shifts[s].Start.Before(*due)
}

// ShiftStart 返回班次开始时间
func (fs *FactSet) ShiftStart(s int) time.Time { return fs.shifts[s].Start }

// ShiftPoints 返回班次覆盖的时间点下标
func (fs *FactSet) ShiftPoints(s int) []int { return fs.shiftPoints[s] }

// ShiftWeek 返回班次所在周下标
func (fs *FactSet) ShiftWeek(s int) int { return fs.shiftWeek[s] }

// SlotCapacity 返回班次的槽位数量
func (fs *FactSet) SlotCapacity(s int) int { return fs.shiftCapacity[s] }

// WeekKey 返回周下标对应的 ISO 周标识
func (fs *FactSet) WeekKey(w int) int { return fs.weekKeys[w] }

// TimePoint 返回时间点下标对应的时间
func (fs *FactSet) TimePoint(p int) time.Time { return fs.pointTimes[p] }

// PersonPiGroup 返回人员所属课题组下标
func (fs *FactSet) PersonPiGroup(p int) int { return fs.personPiGroup[p] }

// WeeklyLimit 返回人员每周班次上限，0 表示不限制
func (fs *FactSet) WeeklyLimit(p int) int { return fs.personLimit[p] }

// Unavailable 人员在该班次是否不可用
func (fs *FactSet) Unavailable(p, s int) bool { return fs.unavailable[p*len(fs.shifts)+s] }

// RoomCapacity 返回房间容量
func (fs *FactSet) RoomCapacity(r int) int { return fs.rooms[r].Capacity }

// EquipmentCapacity 返回设备容量
func (fs *FactSet) EquipmentCapacity(e int) int { return fs.equipment[e].Capacity }
