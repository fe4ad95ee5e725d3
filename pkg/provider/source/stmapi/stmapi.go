// Package stmapi resolves arrivals through the JSON arrivals API.
package stmapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mmathieum/montransit/pkg/provider"
	"github.com/mmathieum/montransit/pkg/transit"
	"github.com/rs/zerolog/log"
)

const SourceName = "www.stm.info"

const eventCategory = "arrivals-provider"

// Upstream status codes signalled inside a 200 response.
const (
	codeNoResultsDate = "NoResultsDate"
	codeLastStop      = "LastStop"
)

type Strategy struct {
	BaseURL string
}

func (s Strategy) SourceName() string {
	return SourceName
}

type arrivalEntry struct {
	Time string `json:"time"`
	Note string `json:"note,omitempty"`
}

type messageEntry struct {
	Text string `json:"text"`
}

type statusEntry struct {
	Level string `json:"level"`
	Code  string `json:"code"`
}

type arrivalsResponse struct {
	Result   []arrivalEntry `json:"result"`
	Messages []messageEntry `json:"messages"`
	Status   statusEntry    `json:"status"`
}

func (s Strategy) arrivalsURL(q transit.Query, lookbackTime string) string {
	url := fmt.Sprintf("%s/%s/lines/%s/stops/%s/arrivals?direction=%s&limit=100",
		s.BaseURL, q.Lang(), q.RouteID, q.StopCode, q.TripHeading)

	if lookbackTime != "" {
		url += "&t=" + lookbackTime
	}

	return url
}

func (s Strategy) Fetch(ctx context.Context, env *provider.Env, q transit.Query, progress provider.ProgressFunc) *transit.Result {
	body, status, err := provider.FetchPage(ctx, env, s.arrivalsURL(q, ""))
	if err != nil {
		return provider.NoConnectivityResult(env, SourceName)
	}

	switch status {
	case http.StatusOK:
		progress(env.Messages.Processing())
		return s.parseArrivals(ctx, env, q, body)

	case http.StatusInternalServerError:
		return transit.NewErrorResult(SourceName, transit.ErrorKindUpstreamServer, env.Messages.ServerError(SourceName))

	case http.StatusGatewayTimeout:
		return transit.NewErrorResult(SourceName, transit.ErrorKindUpstreamServer, env.Messages.ServerTimeout(SourceName))

	default:
		env.TrackEvent(eventCategory, "http-error", q.StopUID(), status)
		return transit.NewErrorResult(SourceName, transit.ErrorKindUpstreamServer, env.Messages.HTTPError(SourceName))
	}
}

func (s Strategy) parseArrivals(ctx context.Context, env *provider.Env, q transit.Query, body []byte) *transit.Result {
	var payload arrivalsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error().Err(err).Str("stop", q.StopCode).Msg("Undecodable arrivals payload")
		env.TrackEvent(eventCategory, "parse-error", q.StopUID(), 0)

		return transit.NewErrorResult(SourceName, transit.ErrorKindParse, env.Messages.GenericError())
	}

	if len(payload.Result) == 0 {
		return s.emptyResult(env, q, payload)
	}

	var rawTimes []string
	var times []string

	for _, entry := range payload.Result {
		formatted, err := transit.FormatTime(entry.Time)
		if err != nil {
			log.Error().Err(err).Str("stop", q.StopCode).Msg("Unexpected time value in arrivals payload")
			env.TrackEvent(eventCategory, "parse-error", q.StopUID(), 0)

			return transit.NewErrorResult(SourceName, transit.ErrorKindParse, env.Messages.GenericError())
		}

		rawTimes = append(rawTimes, entry.Time)
		times = append(times, formatted)
	}

	result := transit.NewResult(SourceName, times...)

	if len(payload.Messages) > 0 {
		result.Message = payload.Messages[0].Text
	}
	if len(payload.Messages) > 1 {
		result.Message2 = payload.Messages[1].Text
	}

	result.PreviousTime = s.previousTime(ctx, env, q, rawTimes)

	return result
}

// emptyResult maps an empty result array onto the upstream's own error
// signalling. Every mapped error is reported to the event sink, keyed by
// the stable stop UID.
func (s Strategy) emptyResult(env *provider.Env, q transit.Query, payload arrivalsResponse) *transit.Result {
	code := ""
	if payload.Status.Level == "Error" {
		code = payload.Status.Code
	}

	var message string
	switch code {
	case codeNoResultsDate:
		message = env.Messages.NoResultsForDate(routeDisplay(q))
	case codeLastStop:
		message = env.Messages.DescentOnly()
	default:
		message = env.Messages.NoInfoFromSource(SourceName)
	}

	env.TrackEvent(eventCategory, "upstream-"+defaultCode(code), q.StopUID(), 0)

	return transit.NewErrorResult(SourceName, transit.ErrorKindUpstreamLogic, message)
}

func defaultCode(code string) string {
	if code == "" {
		return "NoResults"
	}

	return code
}

func routeDisplay(q transit.Query) string {
	if q.RouteShortName != "" {
		return q.RouteShortName
	}

	return q.RouteID
}
