package stminfo

import (
	"os"
	"strings"
	"testing"
)

const rawDesktopPage = `<html><head><title>Horaires</title></head><body>
<div id="nav"><a href="/accueil">Accueil</a> <a href="/plans">Plans</a></div>
<table class="horaire regulier" cellpadding="0">
<tr><td class="ligne">97</td><td><a href="/lignes/97">6h05</a>&nbsp;6h35</td><td><img class="icone metrobus">7h05</td></tr>
</table>
<div id="footer">© STM</div>
</body></html>`

func cleanString(t *testing.T, page string, route string) (string, bool) {
	t.Helper()

	path, confirmed, err := cleanSchedulePage(strings.NewReader(page), route)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read cleaned file: %v", err)
	}

	return string(content), confirmed
}

func TestCleanerConfirmsMatchingRouteTable(t *testing.T) {
	content, confirmed := cleanString(t, rawDesktopPage, "97")

	if !confirmed {
		t.Error("expected table to be confirmed for route 97")
	}
	if !strings.Contains(content, "6h05") {
		t.Error("expected schedule line to be copied")
	}
	if strings.Contains(content, "footer") || strings.Contains(content, "Accueil") {
		t.Error("expected non-table lines to be dropped")
	}
}

func TestCleanerWithoutRouteCellYieldsUnconfirmed(t *testing.T) {
	_, confirmed := cleanString(t, strings.ReplaceAll(rawDesktopPage, `class="ligne">97`, `class="ligne">45`), "97")

	if confirmed {
		t.Error("expected table to stay unconfirmed for route 97")
	}
}

func TestCleanerStripsDecorations(t *testing.T) {
	content, _ := cleanString(t, rawDesktopPage, "97")

	for _, token := range []string{`&nbsp;`, `icone metrobus`, `<a `, `</a>`} {
		if strings.Contains(content, token) {
			t.Errorf("expected %q to be stripped", token)
		}
	}
}

func TestCleanerWrapsInSyntheticEnvelope(t *testing.T) {
	content, _ := cleanString(t, rawDesktopPage, "97")

	if !strings.HasPrefix(content, "<html><body>") {
		t.Error("expected synthetic envelope prefix")
	}
	if !strings.Contains(content, "</body></html>") {
		t.Error("expected synthetic envelope suffix")
	}
}

func TestCleanerDropsOtherRouteTables(t *testing.T) {
	page := `<table class="horaire regulier">
<tr><td class="ligne">45</td><td>9h05</td></tr>
</table>
<table class="horaire regulier">
<tr><td class="ligne">97</td><td>14h05</td></tr>
</table>`

	content, confirmed := cleanString(t, page, "97")

	if !confirmed {
		t.Error("expected table to be confirmed for route 97")
	}
	if !strings.Contains(content, "14h05") {
		t.Error("expected the route's own table to be kept")
	}
	if strings.Contains(content, "9h05") {
		t.Error("expected the other route's table to be dropped")
	}
}

func TestCleanerHandlesAllTableKinds(t *testing.T) {
	for _, marker := range tableStartMarkers {
		page := marker + ">\n<tr><td class=\"ligne\">11</td><td>23h40</td></tr>\n</table>\n"

		content, confirmed := cleanString(t, page, "11")
		if !confirmed {
			t.Errorf("marker %q: expected confirmation", marker)
		}
		if !strings.Contains(content, "23h40") {
			t.Errorf("marker %q: expected row to be copied", marker)
		}
	}
}
