package stminfo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// The desktop results page carries one schedule table per service kind.
// Only lines between a table-start marker and the end marker are worth
// parsing; everything around them is navigation and ads.
var tableStartMarkers = []string{
	`<table class="horaire regulier"`,
	`<table class="horaire special"`,
	`<table class="horaire nuit"`,
	`<table class="horaire nuit-special"`,
}

const tableEndMarker = `</table>`

// routeCellMarker tags a table as belonging to the requested route. A
// table without it merely looks similar and must not be trusted.
func routeCellMarker(route string) string {
	return fmt.Sprintf(`<td class="ligne">%s</td>`, route)
}

// decorativeTokens are inline icons that would otherwise end up inside
// parsed cell text.
var decorativeTokens = []string{
	`<img class="icone nuit">`,
	`<img class="icone metrobus">`,
	`<img class="icone express">`,
}

var anchorPattern = regexp.MustCompile(`(?i)<a\s[^>]*>|<a>|</a>`)

func stripDecorations(line string) string {
	for _, token := range decorativeTokens {
		line = strings.ReplaceAll(line, token, "")
	}

	// Entity spaces separate time tokens; drop the entity, keep the gap.
	line = strings.ReplaceAll(line, `&nbsp;`, " ")

	return anchorPattern.ReplaceAllString(line, "")
}

// cleanSchedulePage copies the schedule table lines out of the raw desktop
// page into a minimal synthetic HTML document, stripping decorations as it
// goes. Each table is buffered until its end marker and only emitted when
// it carries the requested route's cell; the page lists one table per
// route and rows from the others must not leak in. It reports whether a
// table was confirmed for the requested route.
func cleanSchedulePage(src io.Reader, route string) (string, bool, error) {
	out, err := os.CreateTemp("", "stminfo-clean-*.html")
	if err != nil {
		return "", false, err
	}

	writer := bufio.NewWriter(out)
	if _, err := writer.WriteString("<html><body>\n"); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", false, err
	}

	confirmed := false
	inTable := false
	tableConfirmed := false
	var tableLines []string

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if !inTable {
			for _, marker := range tableStartMarkers {
				if strings.Contains(line, marker) {
					inTable = true
					tableConfirmed = false
					tableLines = tableLines[:0]
					break
				}
			}

			if !inTable {
				continue
			}
		}

		if strings.Contains(line, routeCellMarker(route)) {
			tableConfirmed = true
		}

		tableLines = append(tableLines, stripDecorations(line))

		if strings.Contains(line, tableEndMarker) {
			// A table that never closes is dropped with its buffer.
			inTable = false

			if !tableConfirmed {
				continue
			}

			confirmed = true

			for _, kept := range tableLines {
				if _, err := writer.WriteString(kept + "\n"); err != nil {
					out.Close()
					os.Remove(out.Name())
					return "", false, err
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", false, err
	}

	if _, err := writer.WriteString("</body></html>\n"); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", false, err
	}

	if err := writer.Flush(); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", false, err
	}

	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", false, err
	}

	return out.Name(), confirmed, nil
}
