package provider

import "fmt"

// Catalog resolves the short user-facing strings the engine emits, in the
// language the query asked for. Only French and English exist upstream;
// French is the default.
type Catalog struct {
	lang string
}

func NewCatalog(lang string) Catalog {
	if lang != "en" {
		lang = "fr"
	}

	return Catalog{lang: lang}
}

func (c Catalog) pick(fr string, en string) string {
	if c.lang == "en" {
		return en
	}

	return fr
}

func (c Catalog) DownloadingFrom(source string) string {
	return fmt.Sprintf(c.pick("Téléchargement des données de %s…", "Downloading data from %s…"), source)
}

func (c Catalog) Processing() string {
	return c.pick("Traitement des données…", "Processing data…")
}

func (c Catalog) NoConnection() string {
	return c.pick("Aucune connexion Internet.", "No Internet connection.")
}

func (c Catalog) NoOfflineSchedule() string {
	return c.pick("Aucun horaire hors ligne disponible.", "No offline schedule available.")
}

func (c Catalog) NoOfflineScheduleCheckStorage() string {
	return c.pick("Aucun horaire hors ligne — vérifier le stockage.", "No offline schedule — check storage.")
}

func (c Catalog) ServerError(source string) string {
	return fmt.Sprintf(c.pick("Erreur du serveur %s.", "%s server error."), source)
}

func (c Catalog) ServerTimeout(source string) string {
	return fmt.Sprintf(c.pick("Le serveur %s ne répond pas.", "%s server timed out."), source)
}

func (c Catalog) HTTPError(source string) string {
	return fmt.Sprintf(c.pick("Erreur de communication avec %s.", "Error communicating with %s."), source)
}

func (c Catalog) NoInfoFromSource(source string) string {
	return fmt.Sprintf(c.pick("Aucune information de %s.", "No information from %s."), source)
}

func (c Catalog) NoResultsForDate(route string) string {
	return fmt.Sprintf(c.pick("Aucun résultat à cette date pour la ligne %s.", "No results for this date for route %s."), route)
}

func (c Catalog) DescentOnly() string {
	return c.pick("Cet arrêt est réservé à la descente.", "This stop is for descent only.")
}

func (c Catalog) NoInfoForRoute(route string) string {
	return fmt.Sprintf(c.pick("Aucune information pour la ligne %s.", "No information for route %s."), route)
}

func (c Catalog) ConcernsArrivalsAt(times string, message string) string {
	return fmt.Sprintf(c.pick("Concerne les passages de %s : %s", "Concerns arrivals at %s: %s"), times, message)
}

func (c Catalog) GenericError() string {
	return c.pick("Une erreur est survenue.", "An error occurred.")
}
