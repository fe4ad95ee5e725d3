package routes

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/mmathieum/montransit/pkg/cachestore"
	"github.com/mmathieum/montransit/pkg/provider"
	"github.com/mmathieum/montransit/pkg/transit"
	"golang.org/x/exp/slices"
)

// Resolver holds everything a request needs to run one strategy: the
// registered strategies keyed by source name, the shared execution
// environment and the cache layer.
type Resolver struct {
	Strategies map[string]provider.Strategy
	Default    string

	Env       *provider.Env
	Cache     *cachestore.Store
	Refresher *provider.Prefetcher
}

// SourceNames lists the registered source names in stable order.
func (r *Resolver) SourceNames() []string {
	names := make([]string, 0, len(r.Strategies))
	for name := range r.Strategies {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func ArrivalsRouter(router fiber.Router, resolver *Resolver) {
	router.Get("/:stop/routes/:route/arrivals", resolver.getArrivals)
}

// collectingListener buffers progress notices and hands over the terminal
// result once the task finishes.
type collectingListener struct {
	mu       sync.Mutex
	progress []string
	result   *transit.Result
}

func (l *collectingListener) OnProgress(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = append(l.progress, message)
}

func (l *collectingListener) OnResult(result *transit.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.result = result
}

func (l *collectingListener) snapshot() ([]string, *transit.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.progress...), l.result
}

func (r *Resolver) getArrivals(c *fiber.Ctx) error {
	q := transit.Query{
		RouteID:        c.Params("route"),
		RouteShortName: c.Params("route"),
		StopCode:       c.Params("stop"),
		TripHeading:    c.Query("direction"),
		Locale:         c.Query("lang", "fr"),
		Force:          c.QueryBool("force"),
	}

	sourceName := c.Query("source", r.Default)
	strategy, ok := r.Strategies[sourceName]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Unknown source",
			"sources": r.SourceNames(),
		})
	}

	// Each request gets its own Env so messages come back in the
	// requested language.
	env := *r.Env
	env.Messages = provider.NewCatalog(q.Lang())

	listener := &collectingListener{}
	task := &provider.Task{
		Strategy:   strategy,
		Listener:   listener,
		Env:        &env,
		Cache:      r.Cache,
		RecordType: cachestore.RecordTypeBus,
		Refresher:  r.Refresher,
	}

	if err := task.Start(c.UserContext(), q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	task.Wait()

	progress, result := listener.snapshot()
	if result == nil {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}

	return c.Status(statusFor(result)).JSON(fiber.Map{
		"stop":     q.StopCode,
		"route":    q.RouteID,
		"progress": progress,
		"result":   result,
	})
}

// statusFor maps result error kinds onto HTTP statuses. An upstream logic
// error (no service today, descent-only stop) is still a valid answer.
func statusFor(result *transit.Result) int {
	switch result.ErrorKind {
	case transit.ErrorKindNoConnectivity, transit.ErrorKindUpstreamServer, transit.ErrorKindParse:
		return fiber.StatusBadGateway
	case transit.ErrorKindSourceUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusOK
	}
}
