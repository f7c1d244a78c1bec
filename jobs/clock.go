package jobs

import "time"

// Clock supplies wall-clock time in the target timezone. The bot evaluates
// "today" in Nepal time regardless of where the process runs.
type Clock interface {
	Now() time.Time
}

type zoneClock struct {
	location *time.Location
}

// NewZoneClock returns a Clock pinned to the given location.
func NewZoneClock(location *time.Location) Clock {
	return zoneClock{location: location}
}

func (c zoneClock) Now() time.Time {
	return time.Now().In(c.location)
}
