package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmathieum/montransit/pkg/transit"
	"github.com/rs/zerolog/log"
)

// ErrNoConnectivity wraps DNS/host/socket level failures so strategies can
// map them onto the canonical no-connection message.
var ErrNoConnectivity = errors.New("no connectivity")

const defaultUserAgent = "montransit/1.0"

// FetchPage GETs a URL and returns the body and status code. Transport
// failures are retried a couple of times with exponential backoff before
// being reported as ErrNoConnectivity; HTTP error statuses are returned
// as-is for the strategy to branch on.
func FetchPage(ctx context.Context, env *Env, url string) ([]byte, int, error) {
	var body []byte
	var status int

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		userAgent := env.UserAgent
		if userAgent == "" {
			userAgent = defaultUserAgent
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := env.HTTPClient().Do(req)
		if err != nil {
			log.Debug().Err(err).Str("url", url).Msg("Transport error, retrying")
			return err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		status = resp.StatusCode

		return nil
	}

	retry := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)

	if err := backoff.Retry(operation, retry); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNoConnectivity, err)
	}

	return body, status, nil
}

// NoConnectivityResult is the canonical result for a transport-level
// failure: the no-connection message plus, when the offline schedule store
// cannot take over, a note saying so.
func NoConnectivityResult(env *Env, sourceName string) *transit.Result {
	message := env.Messages.NoConnection()
	if note := env.OfflineFallbackNote(); note != "" {
		message = message + " " + note
	}

	return transit.NewErrorResult(sourceName, transit.ErrorKindNoConnectivity, message)
}
