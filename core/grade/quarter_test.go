package grade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func date(month time.Month) time.Time {
	return time.Date(2024, month, 15, 10, 0, 0, 0, time.UTC)
}

func TestNewCalendar(t *testing.T) {
	tests := []struct {
		name    string
		months  []int
		wantErr bool
	}{
		{name: "default", months: DefaultStartMonths},
		{name: "calendar year", months: []int{1, 4, 7, 10}},
		{name: "too few", months: []int{1, 4, 7}, wantErr: true},
		{name: "out of range", months: []int{0, 4, 7, 10}, wantErr: true},
		{name: "duplicate", months: []int{1, 4, 4, 10}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCalendar(tt.months)
			assert.Equal(t, tt.wantErr, err != nil, "NewCalendar() error = %v", err)
		})
	}
}

func TestCalendar_QuarterForDate(t *testing.T) {
	cal, err := NewCalendar(DefaultStartMonths)
	require.NoError(t, err)

	want := map[time.Month]Quarter{
		time.June: 1, time.July: 1, time.August: 1,
		time.September: 2, time.October: 2, time.November: 2,
		time.December: 3, time.January: 3, time.February: 3,
		time.March: 4, time.April: 4, time.May: 4,
	}
	for month, quarter := range want {
		assert.Equal(t, quarter, cal.QuarterForDate(date(month)), month.String())
	}
}

func TestCalendar_CurrentQuarter(t *testing.T) {
	cal, _ := NewCalendar(DefaultStartMonths)
	now := date(time.October) // Q2 by date

	tests := []struct {
		name   string
		grades []Grade
		want   Quarter
	}{
		{name: "no grades: quarter of date", want: 2},
		{
			name:   "nothing filled",
			grades: []Grade{{Subject: "Math"}},
			want:   1,
		},
		{
			name: "one subject missing q1",
			grades: []Grade{
				{Subject: "Math", Q1: q(90), Q2: q(90)},
				{Subject: "Science"},
			},
			want: 1,
		},
		{
			name: "q1 filled everywhere",
			grades: []Grade{
				{Subject: "Math", Q1: q(90), Q2: q(90)},
				{Subject: "Science", Q1: q(85)},
			},
			want: 2,
		},
		{
			name: "all filled",
			grades: []Grade{
				{Subject: "Math", Q1: q(90), Q2: q(90), Q3: q(90), Q4: q(90)},
				{Subject: "Science", Q1: q(85), Q2: q(85), Q3: q(85), Q4: q(85)},
			},
			want: NoQuarter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.CurrentQuarter(tt.grades, now))
		})
	}
}

func TestQuarterStatusFor(t *testing.T) {
	tests := []struct {
		name    string
		q       Quarter
		current Quarter
		filled  bool
		pending bool
		want    QuarterStatus
	}{
		{name: "current", q: 2, current: 2, filled: true, pending: true, want: StatusEditable},
		{name: "pending request", q: 1, current: 2, filled: true, pending: true, want: StatusPending},
		{name: "submitted", q: 1, current: 2, filled: true, want: StatusSubmitted},
		{name: "not submitted", q: 3, current: 2, want: StatusNotSubmitted},
		{name: "all filled", q: 4, current: NoQuarter, filled: true, want: StatusSubmitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuarterStatusFor(tt.q, tt.current, tt.filled, tt.pending))
		})
	}
}

func TestChangedQuarters(t *testing.T) {
	before := []Grade{
		{Subject: "Math", Q1: q(90), Q2: q(85)},
		{Subject: "Science", Q1: q(80)},
	}
	tests := []struct {
		name  string
		after []Grade
		want  []Quarter
	}{
		{name: "unchanged", after: before, want: []Quarter{}},
		{
			name:  "subject case ignored",
			after: []Grade{
				{Subject: "math", Q1: q(90), Q2: q(85)},
				{Subject: "SCIENCE", Q1: q(80)},
			},
			want: []Quarter{},
		},
		{
			name:  "q2 changed",
			after: []Grade{
				{Subject: "Math", Q1: q(90), Q2: q(86)},
				{Subject: "Science", Q1: q(80)},
			},
			want: []Quarter{2},
		},
		{
			name:  "q3 added",
			after: []Grade{
				{Subject: "Math", Q1: q(90), Q2: q(85), Q3: q(70)},
				{Subject: "Science", Q1: q(80)},
			},
			want: []Quarter{3},
		},
		{
			name:  "subject removed",
			after: []Grade{{Subject: "Math", Q1: q(90), Q2: q(85)}},
			want:  []Quarter{1},
		},
		{
			name:  "new empty subject",
			after: append(append([]Grade{}, before...), Grade{Subject: "English", Q4: null.Float64{}}),
			want:  []Quarter{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sortedQuarters(changedQuarters(before, tt.after)))
		})
	}
}
