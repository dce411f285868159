// Package results parses completed match results and settles logged bets
// against them.
package results

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
)

// ErrUnparseable is returned for lines that do not follow the
// "Round: Winner d. Loser Score" grammar.
var ErrUnparseable = errors.New("unparseable result line")

// Line is one parsed completed-result line.
type Line struct {
	RoundLabel string
	Round      odds.Round
	Winner     string
	Loser      string
	Score      string
}

// Grammar: Round: [seed]Winner [country] d. [seed]Loser [country] Score
// Score is one or more set scores (tiebreaks in parentheses, a match
// tiebreak in brackets), optionally followed by RET/DEF/ABD, or a bare
// walkover. Case-insensitive.
var lineRe = regexp.MustCompile(
	`(?i)^([A-Za-z0-9]+)\s*:\s*(.+?)\s+d\.\s+(.+?)\s+` +
		`((?:(?:\d{1,2}-\d{1,2}(?:\(\d+\))?|\[\d+-\d+\])\s*)+(?:RET|DEF|ABD)?\.?|W/?O\.?)$`)

var (
	annotationRe = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// ParseLine parses one completed-result line. The line may contain inline
// markup; when player names are wrapped in anchors, the anchor texts are
// used as the names.
func ParseLine(line string) (Line, error) {
	text := line
	var anchors []string

	if strings.Contains(line, "<") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(line))
		if err != nil {
			return Line{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		text = doc.Text()
		doc.Find("a").Each(func(_ int, s *goquery.Selection) {
			if name := cleanName(s.Text()); name != "" {
				anchors = append(anchors, name)
			}
		})
	}

	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))

	m := lineRe.FindStringSubmatch(text)
	if m == nil {
		return Line{}, fmt.Errorf("%w: %q", ErrUnparseable, text)
	}

	out := Line{
		RoundLabel: m[1],
		Round:      odds.ParseRound(m[1]),
		Winner:     cleanName(m[2]),
		Loser:      cleanName(m[3]),
		Score:      strings.TrimSpace(m[4]),
	}
	if len(anchors) >= 2 {
		out.Winner, out.Loser = anchors[0], anchors[1]
	}
	if out.Winner == "" || out.Loser == "" {
		return Line{}, fmt.Errorf("%w: missing player in %q", ErrUnparseable, text)
	}
	return out, nil
}

// cleanName strips seed, entry status and country annotations.
func cleanName(s string) string {
	s = annotationRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
