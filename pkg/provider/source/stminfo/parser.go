package stminfo

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// cellTimePattern matches the HhMM tokens the schedule cells carry once
// decorations are stripped.
var cellTimePattern = regexp.MustCompile(`\b\d{1,2}h[0-5]\d\b`)

// parseCleanedSchedule walks the cleaned document's markup events through
// the tag-depth tracker and reconstructs the arrival times and notes held
// in its table cells.
//
// Within a row, the first cell is the route/label column; time tokens can
// appear in any cell, but plain text past the first cell is a note. The
// tracker's ever-seen td counter is what makes that column assignment
// possible.
func parseCleanedSchedule(r io.Reader) ([]string, []string, error) {
	tokenizer := html.NewTokenizer(r)
	tracker := newTagTracker()

	var times []string
	var notes []string

	rowFirstCell := 0

	for {
		switch tokenType := tokenizer.Next(); tokenType {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				if err := tracker.Finish(); err != nil {
					return nil, nil, err
				}

				return times, notes, nil
			}

			return nil, nil, tokenizer.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)

			tracker.StartTag(tag)

			if tag == "tr" {
				rowFirstCell = tracker.LastID("td")
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()

			if err := tracker.EndTag(string(name)); err != nil {
				return nil, nil, err
			}

		case html.TextToken:
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text == "" {
				continue
			}

			if tracker.Open("table") > 0 && tracker.Open("td") > 0 {
				cellIndex := tracker.LastID("td") - rowFirstCell

				if tokens := cellTimePattern.FindAllString(text, -1); len(tokens) > 0 {
					times = append(times, tokens...)
				} else if cellIndex > 1 {
					notes = append(notes, text)
				}
			} else if tracker.Open("ul") > 0 && tracker.Open("li") > 0 {
				notes = append(notes, text)
			}
		}
	}
}
