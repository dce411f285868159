package identity

import "sync"

// DefaultRules returns the spelling and boilerplate tables used when no
// overrides are configured.
func DefaultRules() Rules {
	return Rules{
		LocaleSpellings: map[string]string{
			"hambourg":   "hamburg",
			"hamburgo":   "hamburg",
			"munchen":    "munich",
			"roma":       "rome",
			"geneve":     "geneva",
			"ginevra":    "geneva",
			"bale":       "basel",
			"wien":       "vienna",
			"vienne":     "vienna",
			"anvers":     "antwerp",
			"antwerpen":  "antwerp",
			"barcelone":  "barcelona",
			"londres":    "london",
			"pekin":      "beijing",
			"majorque":   "mallorca",
			"marrakesh":  "marrakech",
			"bucarest":   "bucharest",
			"bucuresti":  "bucharest",
			"lisbonne":   "lisbon",
			"lisboa":     "lisbon",
			"cincinatti": "cincinnati",

			"roland garros": "french open",
			"roland-garros": "french open",
		},
		SourcePrefixes: []string{"tennis - "},
		Boilerplate:    []string{", qualifying", ", qualification", " - qualifying"},
		Tokens:         []string{"atp", "challenger", "qualification", "qualifying"},
		Countries: []string{
			"argentina", "australia", "austria", "belgium", "brazil", "bulgaria",
			"canada", "chile", "china", "croatia", "czech republic", "czechia",
			"denmark", "finland", "france", "germany", "great britain", "greece",
			"hungary", "india", "italy", "japan", "kazakhstan", "mexico", "monaco",
			"morocco", "netherlands", "new zealand", "poland", "portugal", "qatar",
			"romania", "serbia", "slovakia", "south korea", "spain", "sweden",
			"switzerland", "turkey", "uae", "united arab emirates", "united kingdom",
			"uk", "usa", "united states",
		},
		QualifierMarkers: []string{"qualifier"},
	}
}

var (
	defaultNormalizer *Normalizer
	defaultOnce       sync.Once
)

// Default returns a Normalizer built from DefaultRules.
func Default() *Normalizer {
	defaultOnce.Do(func() {
		defaultNormalizer = NewNormalizer(DefaultRules())
	})
	return defaultNormalizer
}

// TournamentKey derives a tournament key with the default rules.
func TournamentKey(raw string) Key {
	return Default().TournamentKey(raw)
}

// NewPlayer derives a player identity with the default rules.
func NewPlayer(raw string) Player {
	return Default().Player(raw)
}
