package domain

import "time"

// DerivedStat is computed from one row's raw counters and the window length.
type DerivedStat struct {
	Key      Key
	Counters Counters

	// SumRate is Sum per second (bytes/s for queues).
	SumRate float64
	// CountRate is Count per second (packets/s, samples/s).
	CountRate float64
	// Average is Sum/Count, 0 when Count is 0.
	Average float64
}

// Derive computes rates over seconds. seconds must be > 0.
func Derive(key Key, c Counters, seconds float64) DerivedStat {
	s := DerivedStat{
		Key:       key,
		Counters:  c,
		SumRate:   float64(c.Sum) / seconds,
		CountRate: float64(c.Count) / seconds,
	}
	if c.Count > 0 {
		s.Average = float64(c.Sum) / float64(c.Count)
	}
	return s
}

// WindowSnapshot is the immutable result of one aggregation pass.
type WindowSnapshot struct {
	Table       string
	Measurement string
	At          time.Time
	Window      time.Duration

	// Rows are sorted by key ascending.
	Rows  []DerivedStat
	Total DerivedStat

	// Distribution is set only for event-pushed tables.
	Distribution *Distribution
}

// WindowSeconds returns the elapsed window in seconds.
func (s *WindowSnapshot) WindowSeconds() float64 {
	return s.Window.Seconds()
}

// Row returns the row for key.
func (s *WindowSnapshot) Row(key Key) (DerivedStat, bool) {
	for _, r := range s.Rows {
		if r.Key == key {
			return r, true
		}
	}
	return DerivedStat{}, false
}
