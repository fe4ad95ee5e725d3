// Package offline resolves arrivals from a locally stored static timetable
// instead of the network. The timetable itself belongs to an external
// content store; this strategy only knows how to ask it and how to report
// its absence.
package offline

import (
	"context"
	"time"

	"github.com/mmathieum/montransit/pkg/provider"
	"github.com/mmathieum/montransit/pkg/transit"
	"github.com/rs/zerolog/log"
)

const SourceName = "offline"

// ScheduleStore is the external pre-loaded timetable store. It may live on
// removable storage, hence the distinct unmounted state.
type ScheduleStore interface {
	Availability() provider.OfflineAvailability
	NextArrivals(ctx context.Context, q transit.Query) (*transit.Result, error)
}

// Strategy adapts the schedule store to the common strategy contract.
// Cache bypass for forced queries happens at the task layer; by the time
// Fetch runs, the store is always asked for a fresh answer.
type Strategy struct {
	Store ScheduleStore
}

func (s Strategy) SourceName() string {
	return SourceName
}

// Availability is the probe online strategies use to decide whether their
// no-connection message should mention the offline fallback.
func (s Strategy) Availability() provider.OfflineAvailability {
	if s.Store == nil {
		return provider.OfflineNotInstalled
	}

	return s.Store.Availability()
}

func (s Strategy) Fetch(ctx context.Context, env *provider.Env, q transit.Query, progress provider.ProgressFunc) *transit.Result {
	switch s.Availability() {
	case provider.OfflineNotInstalled:
		return transit.NewErrorResult(SourceName, transit.ErrorKindSourceUnavailable, env.Messages.NoOfflineSchedule())

	case provider.OfflineStorageUnmounted:
		return transit.NewErrorResult(SourceName, transit.ErrorKindSourceUnavailable, env.Messages.NoOfflineScheduleCheckStorage())
	}

	progress(env.Messages.Processing())

	if q.When.IsZero() {
		q.When = time.Now()
	}

	result, err := s.Store.NextArrivals(ctx, q)
	if err != nil {
		log.Error().Err(err).Str("stop", q.StopCode).Msg("Offline schedule query failed")
		return transit.NewErrorResult(SourceName, transit.ErrorKindParse, env.Messages.GenericError())
	}

	if result.SourceName == "" {
		result.SourceName = SourceName
	}

	return result
}
