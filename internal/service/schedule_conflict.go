package service

import "github.com/noah-isme/course-swap-api/internal/models"

// BlocksOverlap reports whether two meetings share a weekday and overlap as
// half-open intervals. Touching endpoints do not overlap.
func BlocksOverlap(a, b models.ScheduleBlock) bool {
	return a.DayOfWeek == b.DayOfWeek && a.StartMinute < b.EndMinute && a.EndMinute > b.StartMinute
}

// HasScheduleConflict reports whether any meeting of a overlaps any meeting of b.
func HasScheduleConflict(a, b models.WeeklySchedule) bool {
	for _, x := range a {
		for _, y := range b {
			if BlocksOverlap(x, y) {
				return true
			}
		}
	}
	return false
}

// ConflictingCourses returns the ids of courses whose schedule overlaps
// schedule, skipping any id in exclude.
func ConflictingCourses(schedule models.WeeklySchedule, courses []models.Course, exclude ...string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	var ids []string
	for _, course := range courses {
		if _, ok := skip[course.ID]; ok {
			continue
		}
		if HasScheduleConflict(schedule, course.Schedule) {
			ids = append(ids, course.ID)
		}
	}
	return ids
}
