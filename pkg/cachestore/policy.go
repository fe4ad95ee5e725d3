package cachestore

import "time"

// Decision is the outcome of evaluating a cached record's age.
type Decision int

const (
	// DecisionFresh serves the cached record as-is.
	DecisionFresh Decision = iota
	// DecisionRefresh serves the cached record but wants a background
	// refresh (stale-while-revalidate).
	DecisionRefresh
	// DecisionExpired treats the record as absent.
	DecisionExpired
)

// Windows holds the three freshness thresholds for one transit mode.
//
// TooFresh throttles re-fetches against the upstream service, TooOld marks
// the stale-while-revalidate boundary and NotUseful marks the point past
// which a record must not be shown at all.
type Windows struct {
	TooFresh  time.Duration
	TooOld    time.Duration
	NotUseful time.Duration
}

// Evaluate applies the thresholds in their fixed order: too-fresh wins,
// then not-useful, then too-old.
func (w Windows) Evaluate(age time.Duration) Decision {
	if age < w.TooFresh {
		return DecisionFresh
	}

	if age > w.NotUseful {
		return DecisionExpired
	}

	if age > w.TooOld {
		return DecisionRefresh
	}

	return DecisionFresh
}

// Policy maps record types (bus, bike) onto their windows.
type Policy struct {
	Windows map[string]Windows
}

func (p Policy) For(recordType string) Windows {
	if w, ok := p.Windows[recordType]; ok {
		return w
	}

	return Windows{}
}
