package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronSchedule runs a job on a standard 5-field cron expression
// ("minute hour day-of-month month day-of-week") or a descriptor such as "@hourly".
type CronSchedule struct {
	expr     string
	schedule cron.Schedule
}

// ParseCronSchedule parses expr.
func ParseCronSchedule(expr string) (*CronSchedule, error) {
	s, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return &CronSchedule{expr: expr, schedule: s}, nil
}

// MustParseCronSchedule is like ParseCronSchedule but panics on error.
func MustParseCronSchedule(expr string) *CronSchedule {
	s, err := ParseCronSchedule(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// Next returns the first activation strictly after t.
func (c *CronSchedule) Next(t time.Time) time.Time {
	return c.schedule.Next(t)
}

// String returns the original expression.
func (c *CronSchedule) String() string {
	return c.expr
}
