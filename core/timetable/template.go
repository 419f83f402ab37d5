package timetable

import "fmt"

// templateSlots are the period times of the built-in week.
var templateSlots = []string{"8:00-8:45", "8:45-9:30", "9:30-10:15", "10:30-11:15", "11:15-12:00", "12:45-13:30"}

// templateSubjects are the subjects of the built-in week, by day, one per slot.
var templateSubjects = map[string][]string{
	"Monday":    {"Mathematics", "English", "Science", "Social Studies", "Computer Science", "Physical Education"},
	"Tuesday":   {"English", "Mathematics", "Hindi", "Science", "Art", "Library"},
	"Wednesday": {"Science", "Mathematics", "English", "Computer Science", "Social Studies", "Music"},
	"Thursday":  {"Mathematics", "Science", "English", "Hindi", "Social Studies", "Physical Education"},
	"Friday":    {"English", "Science", "Mathematics", "Art", "Computer Science", "Assembly"},
}

// Template returns the built-in Monday to Friday schedule.
func Template() map[string][]Period {
	days := make(map[string][]Period, len(templateSubjects))
	for day, subjects := range templateSubjects {
		periods := make([]Period, 0, len(subjects))
		for i, subject := range subjects {
			periods = append(periods, Period{
				Time:    templateSlots[i],
				Subject: subject,
				Teacher: "TBA",
				Room:    fmt.Sprintf("Room %d01", i+1),
			})
		}
		days[day] = periods
	}
	return days
}
