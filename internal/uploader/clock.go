package uploader

import "time"

// Clock supplies the scheduler's notion of "now" for eligibility
// comparisons. Injectable so tests can pin time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
