package stminfo

import (
	"errors"

	"github.com/rs/zerolog/log"
)

// trackedTags is the fixed tag vocabulary the legacy schedule tables use.
var trackedTags = []string{
	"html", "body", "div", "center",
	"table", "tr", "td", "ul", "li",
	"a", "b", "img",
}

// voidTags never receive a matching end tag in the legacy markup.
var voidTags = map[string]bool{
	"img": true,
	"br":  true,
}

var errUnbalancedMarkup = errors.New("unbalanced markup in schedule table")

type tagCount struct {
	// open is how many instances of the tag are currently open.
	open int
	// lastID increases monotonically with every occurrence ever seen, so
	// the parser can tell "the 3rd td currently open" apart from "the 3rd
	// td ever seen". The legacy table layout needs the latter to assign a
	// cell to the arrival-time column versus the note column.
	lastID int
}

// tagTracker is the streaming markup handler driving the legacy table
// parse. Unrecognized tags are logged and ignored; unbalanced markup is an
// explicit error state, never a silent recovery.
type tagTracker struct {
	counts map[string]*tagCount
}

func newTagTracker() *tagTracker {
	counts := make(map[string]*tagCount, len(trackedTags))
	for _, name := range trackedTags {
		counts[name] = &tagCount{}
	}

	return &tagTracker{counts: counts}
}

func (t *tagTracker) StartTag(name string) {
	count, tracked := t.counts[name]
	if !tracked {
		log.Debug().Str("tag", name).Msg("Ignoring unrecognized tag")
		return
	}

	if voidTags[name] {
		count.lastID++
		return
	}

	count.open++
	count.lastID++
}

func (t *tagTracker) EndTag(name string) error {
	count, tracked := t.counts[name]
	if !tracked || voidTags[name] {
		return nil
	}

	count.open--
	if count.open < 0 {
		return errUnbalancedMarkup
	}

	return nil
}

// Open returns how many instances of the tag are currently open.
func (t *tagTracker) Open(name string) int {
	if count, tracked := t.counts[name]; tracked {
		return count.open
	}

	return 0
}

// LastID returns how many instances of the tag have ever been seen.
func (t *tagTracker) LastID(name string) int {
	if count, tracked := t.counts[name]; tracked {
		return count.lastID
	}

	return 0
}

// Finish reports tags left open at end of document.
func (t *tagTracker) Finish() error {
	for _, count := range t.counts {
		if count.open != 0 {
			return errUnbalancedMarkup
		}
	}

	return nil
}
