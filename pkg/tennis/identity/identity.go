// Package identity derives canonical keys for tennis players and tournaments,
// so rows from sources that spell the same entity differently can be joined.
package identity

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key is a lowercase alphanumeric canonical key. Two raw spellings of the same
// entity map to the same Key. Distinct entities may collide.
type Key string

// Player is a cleaned player name and its canonical key.
type Player struct {
	Display string
	Key     Key
}

// Tournament is a cleaned tournament name and its canonical key.
type Tournament struct {
	Display string
	Key     Key
}

// Rules configures a Normalizer. All matching is done on lowercase text with
// diacritics folded, so entries should be written that way.
type Rules struct {
	// LocaleSpellings maps an alternative spelling to the canonical one,
	// replaced as whole words (e.g. "hambourg" -> "hamburg").
	LocaleSpellings map[string]string `yaml:"locale_spellings"`

	// SourcePrefixes are removed from tournament text ("tennis - ").
	SourcePrefixes []string `yaml:"source_prefixes"`

	// Boilerplate substrings removed from tournament text (", qualifying").
	Boilerplate []string `yaml:"boilerplate"`

	// Tokens dropped when they appear as whole words ("atp", "challenger").
	Tokens []string `yaml:"tokens"`

	// Countries removed when they appear as a ", <country>" or "(<country>)"
	// suffix.
	Countries []string `yaml:"countries"`

	// QualifierMarkers flag placeholder player names ("qualifier").
	QualifierMarkers []string `yaml:"qualifier_markers"`
}

// Merge returns a copy of r with the entries of extra added.
func (r Rules) Merge(extra Rules) Rules {
	out := Rules{
		LocaleSpellings:  make(map[string]string, len(r.LocaleSpellings)+len(extra.LocaleSpellings)),
		SourcePrefixes:   appendUnique(r.SourcePrefixes, extra.SourcePrefixes),
		Boilerplate:      appendUnique(r.Boilerplate, extra.Boilerplate),
		Tokens:           appendUnique(r.Tokens, extra.Tokens),
		Countries:        appendUnique(r.Countries, extra.Countries),
		QualifierMarkers: appendUnique(r.QualifierMarkers, extra.QualifierMarkers),
	}
	for k, v := range r.LocaleSpellings {
		out.LocaleSpellings[k] = v
	}
	for k, v := range extra.LocaleSpellings {
		out.LocaleSpellings[k] = v
	}
	return out
}

func appendUnique(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

type spelling struct {
	re        *regexp.Regexp
	canonical string
}

// Normalizer applies a compiled, read-only set of Rules. It is safe for
// concurrent use.
type Normalizer struct {
	spellings   []spelling
	prefixes    []string
	boilerplate []string
	countries   *regexp.Regexp // nil when no countries are configured
	tokens      map[string]struct{}
	qualifiers  []string
}

// NewNormalizer compiles rules into a Normalizer.
func NewNormalizer(rules Rules) *Normalizer {
	n := &Normalizer{
		tokens: make(map[string]struct{}, len(rules.Tokens)),
	}

	alts := make([]string, 0, len(rules.LocaleSpellings))
	for alt := range rules.LocaleSpellings {
		if fold(alt) != "" {
			alts = append(alts, alt)
		}
	}
	// Longest first so multi-word spellings win over their parts.
	sort.Slice(alts, func(i, j int) bool {
		if len(alts[i]) != len(alts[j]) {
			return len(alts[i]) > len(alts[j])
		}
		return alts[i] < alts[j]
	})
	for _, alt := range alts {
		n.spellings = append(n.spellings, spelling{
			re:        regexp.MustCompile(`\b` + regexp.QuoteMeta(fold(alt)) + `\b`),
			canonical: fold(rules.LocaleSpellings[alt]),
		})
	}

	for _, p := range rules.SourcePrefixes {
		if p = fold(p); p != "" {
			n.prefixes = append(n.prefixes, p)
		}
	}
	for _, b := range rules.Boilerplate {
		if b = fold(b); b != "" {
			n.boilerplate = append(n.boilerplate, b)
		}
	}
	var countries []string
	for _, c := range rules.Countries {
		if c = fold(c); c != "" {
			countries = append(countries, regexp.QuoteMeta(c))
		}
	}
	if len(countries) > 0 {
		// Longest first so "south africa" is not cut short by a shorter entry.
		sort.Slice(countries, func(i, j int) bool { return len(countries[i]) > len(countries[j]) })
		alt := strings.Join(countries, "|")
		n.countries = regexp.MustCompile(`,\s*(?:` + alt + `)\b|\(\s*(?:` + alt + `)\s*\)`)
	}
	for _, t := range rules.Tokens {
		if t = fold(t); t != "" {
			n.tokens[t] = struct{}{}
		}
	}
	for _, q := range rules.QualifierMarkers {
		if q = fold(q); q != "" {
			n.qualifiers = append(n.qualifiers, q)
		}
	}
	return n
}

// TournamentKey maps raw tournament text to its canonical key. Empty input
// yields an empty key.
func (n *Normalizer) TournamentKey(raw string) Key {
	s := fold(raw)
	if s == "" {
		return ""
	}
	base := s

	for _, sp := range n.spellings {
		s = sp.re.ReplaceAllString(s, sp.canonical)
	}
	for _, p := range n.prefixes {
		s = strings.ReplaceAll(s, p, " ")
	}
	for _, b := range n.boilerplate {
		s = strings.ReplaceAll(s, b, " ")
	}
	if n.countries != nil {
		s = n.countries.ReplaceAllString(s, " ")
	}
	s = n.dropTokens(s)
	s = stripLegNumber(s)

	key := collapse(s)
	if key == "" {
		// Names made only of boilerplate ("ATP") keep their raw form.
		key = collapse(base)
	}
	return Key(key)
}

// Tournament cleans raw tournament text for display and derives its key.
func (n *Normalizer) Tournament(raw string) Tournament {
	display := strings.Join(strings.Fields(raw), " ")
	lower := strings.ToLower(display)
	for _, p := range n.prefixes {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(lower, p) {
			display = strings.TrimSpace(display[len(p):])
			break
		}
	}
	return Tournament{
		Display: titleCase(display),
		Key:     n.TournamentKey(raw),
	}
}

var (
	annotationRe      = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	trailingInitialRe = regexp.MustCompile(`(\S)\s+\p{L}\.$`)
)

// Player cleans a raw player name and derives its key. It never fails: when
// cleaning leaves nothing, the title-cased raw text is used.
func (n *Normalizer) Player(raw string) Player {
	display := cleanPlayerName(raw)
	if display == "" {
		display = strings.Join(strings.Fields(raw), " ")
	}
	display = titleCase(display)
	return Player{Display: display, Key: PlayerKey(display)}
}

func cleanPlayerName(raw string) string {
	s := annotationRe.ReplaceAllString(raw, " ")
	s = strings.TrimSpace(s)

	// "Last, First" -> "First Last"
	if parts := strings.Split(s, ","); len(parts) == 2 {
		last := strings.TrimSpace(parts[0])
		first := strings.TrimSpace(parts[1])
		first = trailingInitialRe.ReplaceAllString(first, "$1")
		s = strings.TrimSpace(first + " " + last)
	}

	s = strings.Trim(s, "* \t")
	s = strings.TrimSuffix(s, ".")
	s = strings.Trim(s, "* \t")
	return strings.Join(strings.Fields(s), " ")
}

// IsQualifier reports whether a display name is a qualifier placeholder
// rather than a real player.
func (n *Normalizer) IsQualifier(display string) bool {
	s := fold(display)
	for _, q := range n.qualifiers {
		if strings.Contains(s, q) {
			return true
		}
	}
	return false
}

// PlayerKey is the alphanumeric collapse of a display name.
func PlayerKey(display string) Key {
	return Key(collapse(fold(display)))
}

// dropTokens removes configured tokens found as words separated by spaces
// or dashes ("atp-hamburg" -> "hamburg").
func (n *Normalizer) dropTokens(s string) string {
	if len(n.tokens) == 0 {
		return s
	}
	words := strings.FieldsFunc(s, isWordBreak)
	kept := words[:0]
	for _, w := range words {
		if _, drop := n.tokens[strings.TrimFunc(w, notAlnum)]; drop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// stripLegNumber removes a trailing digit run ("Lille 2" -> "lille").
func stripLegNumber(s string) string {
	s = strings.TrimRightFunc(s, notAlnum)
	s = strings.TrimRight(s, "0123456789")
	return strings.TrimRightFunc(s, notAlnum)
}

var foldExtra = strings.NewReplacer("ø", "o", "ł", "l", "đ", "d", "ß", "ss", "æ", "ae", "œ", "oe", "ı", "i")

// fold lowercases and removes diacritics.
func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, s)
	return foldExtra.Replace(s)
}

func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func isWordBreak(r rune) bool {
	return unicode.IsSpace(r) || unicode.Is(unicode.Pd, r)
}

func notAlnum(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// titleCase uses a fresh Caser per call; Casers keep state between calls.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
