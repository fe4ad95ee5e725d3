package stmmobile

import (
	"fmt"
	"regexp"
)

// hourPattern matches a generic H:MM token with a one or two digit hour.
var hourPattern = regexp.MustCompile(`\b(\d{1,2}):([0-5]\d)\b`)

// notesBlockPattern and mipsBlockPattern locate whole notice sub-blocks so
// time extraction can ignore them.
var notesBlockPattern = regexp.MustCompile(`(?si)<p class="notes">.*?</p>`)
var mipsBlockPattern = regexp.MustCompile(`(?si)<p class="mips">.*?</p>`)

// notesTimesPattern matches a notes block keyed by a leading run of hour
// tokens: the arrivals the notice applies to, followed by free text.
var notesTimesPattern = regexp.MustCompile(`(?si)<p class="notes">\s*((?:\d{1,2}:[0-5]\d[\s,]*)+)[:\x{2013}-]?\s*(.*?)\s*</p>`)

// scopePattern anchors on the route's section of the stop page. The notes
// and mips sub-blocks may each appear zero or one time; the expression
// tolerates both being absent.
func scopePattern(route string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(
		`(?si)<section class="line" data-line="%s"[^>]*>(.*?(?:<p class="notes">.*?</p>)?.*?(?:<p class="mips">.*?</p>)?.*?)</section>`,
		regexp.QuoteMeta(route)))
}

// notesRoutePattern matches a notes block keyed by the route number rather
// than by hour tokens.
func notesRoutePattern(route string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(
		`(?si)<p class="notes">\s*%s\b[:\x{2013}-]?\s*(.*?)\s*</p>`,
		regexp.QuoteMeta(route)))
}

// mipsPattern matches the route's mips (traffic mitigation) block.
func mipsPattern(route string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(
		`(?si)<p class="mips">\s*%s\b[:\x{2013}-]?\s*(.*?)\s*</p>`,
		regexp.QuoteMeta(route)))
}

func scopeFragment(page string, route string) (string, bool) {
	m := scopePattern(route).FindStringSubmatch(page)
	if m == nil {
		return "", false
	}

	return m[1], true
}
