// Package stmmobile resolves arrivals by scraping the mobile schedule page.
//
// The page lists every route serving a stop; extraction is scoped to the
// requested route's block first, then times and service notices are pulled
// out of that fragment with the patterns in patterns.go. The markup is
// authoritative: when the upstream page family changes, this whole strategy
// is the thing to replace.
package stmmobile

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmathieum/montransit/pkg/provider"
	"github.com/mmathieum/montransit/pkg/transit"
)

const SourceName = "m.stm.info"

const eventCategory = "arrivals-provider"

type Strategy struct {
	BaseURL string
}

func (s Strategy) SourceName() string {
	return SourceName
}

func (s Strategy) stopURL(q transit.Query) string {
	return fmt.Sprintf("%s/bus/arret/%s?lang=%s", s.BaseURL, q.StopCode, q.Lang())
}

func (s Strategy) Fetch(ctx context.Context, env *provider.Env, q transit.Query, progress provider.ProgressFunc) *transit.Result {
	body, status, err := provider.FetchPage(ctx, env, s.stopURL(q))
	if err != nil {
		return provider.NoConnectivityResult(env, SourceName)
	}

	switch status {
	case http.StatusOK:
		progress(env.Messages.Processing())
		return s.extract(env, q, string(body))

	case http.StatusInternalServerError:
		return transit.NewErrorResult(SourceName, transit.ErrorKindUpstreamServer, env.Messages.ServerError(SourceName))

	case http.StatusGatewayTimeout:
		return transit.NewErrorResult(SourceName, transit.ErrorKindUpstreamServer, env.Messages.ServerTimeout(SourceName))

	default:
		env.TrackEvent(eventCategory, "http-error", q.StopUID(), status)
		return transit.NewErrorResult(SourceName, transit.ErrorKindUpstreamServer, env.Messages.HTTPError(SourceName))
	}
}

func (s Strategy) extract(env *provider.Env, q transit.Query, page string) *transit.Result {
	route := q.RouteShortName
	if route == "" {
		route = q.RouteID
	}

	fragment, ok := scopeFragment(page, route)
	if !ok {
		env.TrackEvent(eventCategory, "no-route-block", q.StopUID(), 0)
		return transit.NewErrorResult(SourceName, transit.ErrorKindUpstreamLogic, env.Messages.NoInfoForRoute(route))
	}

	result := transit.NewResult(SourceName, extractTimes(fragment)...)
	result.Message = extractNote(env, fragment, route)
	result.Message2 = extractMips(fragment, route)

	return result
}

// extractTimes finds every hour token in the schedule part of the scoped
// fragment and normalises it from H:MM to HhMM. The notes and mips
// sub-blocks are cut out first: hour tokens inside a notice refer to
// existing arrivals, they are not additional ones.
func extractTimes(fragment string) []string {
	fragment = notesBlockPattern.ReplaceAllString(fragment, "")
	fragment = mipsBlockPattern.ReplaceAllString(fragment, "")

	var times []string

	for _, token := range hourPattern.FindAllString(fragment, -1) {
		times = append(times, strings.Replace(token, ":", "h", 1))
	}

	return times
}

// extractNote re-scans the fragment for a notes block, keyed either by
// embedded hour tokens or by the route number. A notes block with hour
// tokens becomes "concerns arrivals at <times>: <text>".
func extractNote(env *provider.Env, fragment string, route string) string {
	if m := notesTimesPattern.FindStringSubmatch(fragment); m != nil {
		var concerned []string
		for _, token := range hourPattern.FindAllString(m[1], -1) {
			concerned = append(concerned, strings.Replace(token, ":", "h", 1))
		}

		text := strings.TrimSpace(m[2])
		if len(concerned) > 0 {
			return env.Messages.ConcernsArrivalsAt(strings.Join(concerned, ", "), text)
		}

		return text
	}

	if m := notesRoutePattern(route).FindStringSubmatch(fragment); m != nil {
		return strings.TrimSpace(m[1])
	}

	return ""
}

func extractMips(fragment string, route string) string {
	if m := mipsPattern(route).FindStringSubmatch(fragment); m != nil {
		return strings.TrimSpace(m[1])
	}

	return ""
}
