package orchestrator

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields the next fire time after a given instant. Implementations
// must be safe for concurrent use.
type Schedule interface {
	Next(after time.Time) time.Time
	String() string
}

type intervalSchedule struct {
	interval time.Duration
}

// Every returns a fixed-interval schedule.
func Every(interval time.Duration) Schedule {
	return intervalSchedule{interval: interval}
}

func (s intervalSchedule) Next(after time.Time) time.Time {
	return after.Add(s.interval)
}

func (s intervalSchedule) String() string {
	return "every " + s.interval.String()
}

type cronSchedule struct {
	expr     string
	schedule cron.Schedule
}

// Cron parses a standard five-field cron expression, including the @every
// and @hourly style descriptors.
func Cron(expr string) (Schedule, error) {
	parsed, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return cronSchedule{expr: expr, schedule: parsed}, nil
}

func (s cronSchedule) Next(after time.Time) time.Time {
	return s.schedule.Next(after)
}

func (s cronSchedule) String() string {
	return s.expr
}
