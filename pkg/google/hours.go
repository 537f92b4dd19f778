package google

import "time"

const minutesPerWeek = 7 * 24 * 60

// Business statuses reported by the API.
const (
	StatusOperational       = "OPERATIONAL"
	StatusClosedTemporarily = "CLOSED_TEMPORARILY"
	StatusClosedPermanently = "CLOSED_PERMANENTLY"
)

// OpenAt reports whether p is open at t. known is false when the place has
// no weekly schedule or no UTC offset to place t in its local week.
func (p Place) OpenAt(t time.Time) (open, known bool) {
	switch p.BusinessStatus {
	case StatusClosedTemporarily, StatusClosedPermanently:
		return false, true
	}
	if p.RegularOpeningHours == nil || len(p.RegularOpeningHours.Periods) == 0 || p.UTCOffsetMinutes == nil {
		return false, false
	}

	local := t.UTC().Add(time.Duration(*p.UTCOffsetMinutes) * time.Minute)
	now := int(local.Weekday())*24*60 + local.Hour()*60 + local.Minute()

	for _, period := range p.RegularOpeningHours.Periods {
		if period.Close == nil {
			return true, true
		}
		start := period.Open.weekMinute()
		end := period.Close.weekMinute()
		if end <= start {
			end += minutesPerWeek
		}
		if (now >= start && now < end) || (now+minutesPerWeek >= start && now+minutesPerWeek < end) {
			return true, true
		}
	}
	return false, true
}

func (pt Point) weekMinute() int {
	return ((pt.Day%7+7)%7)*24*60 + pt.Hour*60 + pt.Minute
}
