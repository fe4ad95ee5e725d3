// Package stminfo resolves arrivals by scraping the legacy desktop
// schedule page.
//
// The desktop page is far too noisy to parse directly, so resolution runs
// in two phases: a line-oriented cleaner copies only the schedule table
// into a synthetic document (cleaner.go), then a streaming markup parse
// driven by the tag-depth tracker rebuilds the times from the table cells
// (parser.go, tagdepth.go).
package stminfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mmathieum/montransit/pkg/provider"
	"github.com/mmathieum/montransit/pkg/transit"
	"github.com/mmathieum/montransit/pkg/util"
	"github.com/rs/zerolog/log"
)

const SourceName = "www2.stm.info"

const eventCategory = "arrivals-provider"

type Strategy struct {
	BaseURL string
}

func (s Strategy) SourceName() string {
	return SourceName
}

func (s Strategy) scheduleURL(q transit.Query) string {
	return fmt.Sprintf("%s/horaires/bus?ligne=%s&arret=%s&lang=%s", s.BaseURL, q.RouteID, q.StopCode, q.Lang())
}

func (s Strategy) Fetch(ctx context.Context, env *provider.Env, q transit.Query, progress provider.ProgressFunc) *transit.Result {
	rawPath, err := s.download(ctx, env, s.scheduleURL(q))
	if err != nil {
		if errors.Is(err, provider.ErrNoConnectivity) {
			return provider.NoConnectivityResult(env, SourceName)
		}

		// Writing the page to local storage failed; the network is fine.
		log.Error().Err(err).Str("stop", q.StopCode).Msg("Failed to store schedule page")
		return transit.NewErrorResult(SourceName, transit.ErrorKindParse, env.Messages.GenericError())
	}
	defer os.Remove(rawPath)

	progress(env.Messages.Processing())

	result, err := s.parse(env, q, rawPath)
	if err != nil {
		log.Error().Err(err).Str("stop", q.StopCode).Msg("Failed to parse legacy schedule page")
		env.TrackEvent(eventCategory, "parse-error", q.StopUID(), 0)

		return transit.NewErrorResult(SourceName, transit.ErrorKindParse, env.Messages.GenericError())
	}

	return result
}

// download streams the response body into a temporary file. The legacy
// source does not branch on the HTTP status: it parses whatever body comes
// back.
func (s Strategy) download(ctx context.Context, env *provider.Env, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := env.HTTPClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrNoConnectivity, err)
	}
	defer resp.Body.Close()

	out, err := os.CreateTemp("", "stminfo-raw-*.html")
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}

	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}

	return out.Name(), nil
}

func (s Strategy) parse(env *provider.Env, q transit.Query, rawPath string) (*transit.Result, error) {
	raw, err := os.Open(rawPath)
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	cleanedPath, confirmed, err := cleanSchedulePage(raw, q.RouteID)
	if err != nil {
		return nil, err
	}
	defer os.Remove(cleanedPath)

	if !confirmed {
		route := q.RouteShortName
		if route == "" {
			route = q.RouteID
		}

		env.TrackEvent(eventCategory, "no-route-table", q.StopUID(), 0)

		return transit.NewErrorResult(SourceName, transit.ErrorKindUpstreamLogic, env.Messages.NoInfoForRoute(route)), nil
	}

	cleaned, err := os.Open(cleanedPath)
	if err != nil {
		return nil, err
	}
	defer cleaned.Close()

	times, notes, err := parseCleanedSchedule(cleaned)
	if err != nil {
		return nil, err
	}

	result := transit.NewResult(SourceName, util.RemoveDuplicateStrings(times, nil)...)

	if len(notes) > 0 {
		result.Message = notes[0]
	}
	if len(notes) > 1 {
		result.Message2 = strings.Join(notes[1:], " ")
	}

	return result, nil
}
