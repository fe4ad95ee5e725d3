package transit

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Query identifies the stop/route combination a strategy should resolve
// arrival times for. It is immutable input; strategies never modify it.
type Query struct {
	RouteID        string
	RouteShortName string
	StopCode       string
	TripHeading    string
	Locale         string

	// When is the target date/time for the offline schedule lookup.
	// Zero means "now".
	When time.Time

	// Force bypasses the freshness policy and always re-fetches.
	Force bool
}

var ErrInvalidQuery = errors.New("query requires both a route and a stop identifier")

// Validate enforces the query precondition. An invalid query is a caller
// bug and must be rejected before any network traffic happens.
func (q Query) Validate() error {
	if q.RouteID == "" || q.StopCode == "" {
		return ErrInvalidQuery
	}

	return nil
}

// CacheKey is the composite foreign key a cached result is stored under.
func (q Query) CacheKey() string {
	return fmt.Sprintf("%s:%s", q.StopCode, q.RouteID)
}

// StopUID is the stable identifier reported to the event sink.
func (q Query) StopUID() string {
	return fmt.Sprintf("stm-stop-%s-%s", q.StopCode, q.RouteID)
}

// Lang maps the query locale onto one of the two languages the upstream
// sources speak. French is the default for an empty or unknown locale.
func (q Query) Lang() string {
	if strings.HasPrefix(strings.ToLower(q.Locale), "en") {
		return "en"
	}

	return "fr"
}
