package stats

import (
	"time"

	"github.com/paiban/mito/pkg/model"
	"github.com/paiban/mito/pkg/scheduler"
)

var monday = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func sampleFacts() *model.FactSet {
	due := monday.Add(24 * time.Hour)
	fs, err := model.Compile(&model.Problem{
		FloorCapacity: 2,
		PiGroups:      []model.PiGroup{{ID: 1, Name: "结构组"}, {ID: 2, Name: "合成组"}},
		Persons: []model.Person{
			{ID: 1, Name: "张三", PiGroupID: 1, WeeklyShiftLimit: 2},
			{ID: 2, Name: "李四", PiGroupID: 2},
			{ID: 3, Name: "王五", PiGroupID: 2},
		},
		Shifts: []model.Shift{
			{ID: 1, Start: monday, Length: 240},
			{ID: 2, Start: monday.Add(24 * time.Hour), Length: 480},
		},
		Tasks: []model.Task{
			{ID: 10, PersonID: 1, Name: "制样"},
			{ID: 11, PersonID: 1, Name: "观测", DueDate: &due},
			{ID: 12, PersonID: 2, Name: "合成", Priority: 2},
			{ID: 13, PersonID: 3, Name: "表征", DueDate: &due},
		},
	})
	if err != nil {
		panic(err)
	}
	return fs
}

func bound(slot int, start time.Time, hours int, taskID, personID int64, person string) scheduler.Assignment {
	return scheduler.Assignment{
		SlotID:     slot,
		Start:      start,
		End:        start.Add(time.Duration(hours) * time.Hour),
		TaskID:     &taskID,
		PersonID:   &personID,
		PersonName: person,
	}
}

func empty(slot int, start time.Time, hours int) scheduler.Assignment {
	return scheduler.Assignment{SlotID: slot, Start: start, End: start.Add(time.Duration(hours) * time.Hour)}
}

// sampleAssignments 张三安排两次（其一晚于截止日期），李四一次，王五未安排
func sampleAssignments() []scheduler.Assignment {
	tuesday := monday.Add(24 * time.Hour)
	return []scheduler.Assignment{
		bound(0, monday, 4, 10, 1, "张三"),
		bound(1, monday, 4, 12, 2, "李四"),
		bound(2, tuesday, 8, 11, 1, "张三"),
		empty(3, tuesday, 8),
	}
}
