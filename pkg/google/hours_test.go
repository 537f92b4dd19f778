package google

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func offset(m int) *int { return &m }

func TestPlace_OpenAt(t *testing.T) {
	// Friday 17:00 to Saturday 02:00, local UTC-4.
	overnight := &OpeningHours{Periods: []Period{
		{Open: Point{Day: 5, Hour: 17}, Close: &Point{Day: 6, Hour: 2}},
	}}
	// Saturday 20:00 to Sunday 03:00 crosses the week boundary.
	wrap := &OpeningHours{Periods: []Period{
		{Open: Point{Day: 6, Hour: 20}, Close: &Point{Day: 0, Hour: 3}},
	}}
	allDay := &OpeningHours{Periods: []Period{{Open: Point{Day: 0}}}}

	// 2026-03-13 is a Friday.
	utc := func(day, hour, minute int) time.Time {
		return time.Date(2026, 3, day, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name      string
		place     Place
		at        time.Time
		wantOpen  bool
		wantKnown bool
	}{
		{"overnight evening", Place{RegularOpeningHours: overnight, UTCOffsetMinutes: offset(-240)}, utc(13, 23, 0), true, true},
		{"overnight after midnight", Place{RegularOpeningHours: overnight, UTCOffsetMinutes: offset(-240)}, utc(14, 5, 30), true, true},
		{"overnight at close", Place{RegularOpeningHours: overnight, UTCOffsetMinutes: offset(-240)}, utc(14, 6, 0), false, true},
		{"before opening", Place{RegularOpeningHours: overnight, UTCOffsetMinutes: offset(-240)}, utc(13, 20, 59), false, true},
		{"at opening", Place{RegularOpeningHours: overnight, UTCOffsetMinutes: offset(-240)}, utc(13, 21, 0), true, true},
		{"week wrap saturday", Place{RegularOpeningHours: wrap, UTCOffsetMinutes: offset(0)}, utc(14, 22, 0), true, true},
		{"week wrap sunday", Place{RegularOpeningHours: wrap, UTCOffsetMinutes: offset(0)}, utc(15, 1, 0), true, true},
		{"week wrap closed", Place{RegularOpeningHours: wrap, UTCOffsetMinutes: offset(0)}, utc(15, 4, 0), false, true},
		{"open 24 hours", Place{RegularOpeningHours: allDay, UTCOffsetMinutes: offset(60)}, utc(11, 9, 0), true, true},
		{"no hours", Place{UTCOffsetMinutes: offset(0)}, utc(13, 12, 0), false, false},
		{"empty periods", Place{RegularOpeningHours: &OpeningHours{}, UTCOffsetMinutes: offset(0)}, utc(13, 12, 0), false, false},
		{"no offset", Place{RegularOpeningHours: overnight}, utc(13, 23, 0), false, false},
		{"permanently closed", Place{BusinessStatus: StatusClosedPermanently}, utc(13, 23, 0), false, true},
		{"temporarily closed with hours", Place{BusinessStatus: StatusClosedTemporarily, RegularOpeningHours: allDay, UTCOffsetMinutes: offset(0)}, utc(13, 23, 0), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, known := tt.place.OpenAt(tt.at)
			assert.Equal(t, tt.wantOpen, open)
			assert.Equal(t, tt.wantKnown, known)
		})
	}
}

func TestPlace_OpenAt_UsesPlaceOffsetNotCallerZone(t *testing.T) {
	p := Place{
		RegularOpeningHours: &OpeningHours{Periods: []Period{
			{Open: Point{Day: 5, Hour: 9}, Close: &Point{Day: 5, Hour: 17}},
		}},
		UTCOffsetMinutes: offset(-240),
	}
	loc := time.FixedZone("UTC+9", 9*3600)
	// Saturday 03:00 in UTC+9 is Friday 14:00 at UTC-4.
	at := time.Date(2026, 3, 14, 3, 0, 0, 0, loc)
	open, known := p.OpenAt(at)
	assert.True(t, known)
	assert.True(t, open)
}
