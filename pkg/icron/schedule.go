package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser accepts six-field expressions (leading seconds) and descriptors such
// as "@hourly". Schedulers built with cron.WithParser(Parser) agree with
// NextTrigger on what an expression means.
var Parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type TriggerInfo struct {
	Expression    string
	Next          time.Time
	TimeUntilNext time.Duration
}

// Validate reports whether expr parses.
func Validate(expr string) error {
	if _, err := Parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// NextTrigger computes when expr fires next after refTime.
func NextTrigger(expr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := Parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	next := schedule.Next(refTime)
	return &TriggerInfo{
		Expression:    expr,
		Next:          next,
		TimeUntilNext: next.Sub(refTime),
	}, nil
}

func (t *TriggerInfo) String() string {
	return fmt.Sprintf("%s (next %s, in %s)",
		t.Expression, t.Next.Format(time.RFC3339), t.TimeUntilNext.Round(time.Second))
}
