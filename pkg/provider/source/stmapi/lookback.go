package stmapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mmathieum/montransit/pkg/provider"
	"github.com/mmathieum/montransit/pkg/transit"
	"github.com/rs/zerolog/log"
)

// previousTime re-issues the arrivals request one hour before the first
// known arrival and extracts the arrival immediately preceding the primary
// window. Best-effort: every failure is swallowed and yields no previous
// time.
//
// The secondary response is a superset overlapping the primary window, so
// the scan walks from latest to earliest: entries still inside the known
// window are skipped, and the first unknown entry found after the overlap
// is the previous arrival.
func (s Strategy) previousTime(ctx context.Context, env *provider.Env, q transit.Query, rawTimes []string) string {
	if len(rawTimes) == 0 {
		return ""
	}

	first, err := strconv.Atoi(rawTimes[0])
	if err != nil || first < 100 {
		return ""
	}

	lookback := fmt.Sprintf("%04d", first-100)

	body, status, err := provider.FetchPage(ctx, env, s.arrivalsURL(q, lookback))
	if err != nil || status != http.StatusOK {
		return ""
	}

	var payload arrivalsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Debug().Err(err).Str("stop", q.StopCode).Msg("Undecodable lookback payload")
		return ""
	}

	known := make(map[string]bool, len(rawTimes))
	for _, raw := range rawTimes {
		known[raw] = true
	}

	seenKnown := false
	for i := len(payload.Result) - 1; i >= 0; i-- {
		if known[payload.Result[i].Time] {
			seenKnown = true
			continue
		}

		if seenKnown {
			formatted, err := transit.FormatTime(payload.Result[i].Time)
			if err != nil {
				return ""
			}

			return formatted
		}
	}

	return ""
}
