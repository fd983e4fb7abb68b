package models

import "time"

// ProcessingWeekdays is the turnaround quoted to applicants on submit.
const ProcessingWeekdays = 3

// AddWeekdays advances t by n days that fall Monday through Friday.
func AddWeekdays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return t
}
