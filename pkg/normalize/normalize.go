// Package normalize turns raw source values into canonical field values.
//
// Every function is total: malformed input yields ok=false, never an error
// or a panic. Callers decide whether an unparseable value is worth a log line.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"

	"github.com/agentstation/racesync/pkg/races"
)

var nullMarkers = map[string]bool{
	"": true, "null": true, "none": true, "nil": true, "nan": true, "n/a": true,
	"-": true, "--": true, "无": true, "暂无": true, "待定": true,
}

var (
	spaceRun     = regexp.MustCompile(`\s+`)
	numberToken  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	distanceUnit = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:公里|千米|kilometers?|kilometres?|km|k|км)`)
	nonNumeric   = regexp.MustCompile(`[^\d.]`)
	dateToken    = regexp.MustCompile(`(\d{4})\s*[-/.年]\s*(\d{1,2})\s*[-/.月]\s*(\d{1,2})`)
	locationSep  = regexp.MustCompile(`\s*[-·/|>]+\s*`)
	currency     = strings.NewReplacer("¥", "", "￥", "", "元", "", "人民币", "", "rmb", "", "cny", "", "$", "", ",", "", "，", "", " ", "")
)

// Clean folds full-width characters, trims and collapses whitespace.
func Clean(raw string) string {
	s := width.Fold.String(raw)
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// Fold is Clean followed by case folding. Used for comparisons only.
func Fold(raw string) string {
	return cases.Fold().String(Clean(raw))
}

// IsNull reports whether raw is an explicit "no value" marker.
func IsNull(raw string) bool {
	return nullMarkers[Fold(raw)]
}

// Normalize dispatches on kind and returns the canonical value.
func Normalize(kind races.Kind, raw string) (races.Value, bool) {
	if IsNull(raw) {
		return races.Value{}, false
	}
	switch kind {
	case races.KindDistance:
		d, ok := Distance(raw)
		return races.Number(kind, d), ok
	case races.KindFee:
		f, ok := Fee(raw)
		return races.Number(kind, f), ok
	case races.KindCount:
		n, ok := Count(raw)
		return races.Number(kind, float64(n)), ok
	case races.KindDate:
		d, ok := Date(raw)
		return races.Text(kind, d), ok
	case races.KindLocation:
		loc, ok := Location(raw)
		return races.Place(loc), ok
	case races.KindStatus:
		s, ok := Status(raw)
		return races.Text(kind, string(s)), ok
	case races.KindRegistrationStatus:
		s, ok := RegistrationStatus(raw)
		return races.Text(kind, string(s)), ok
	case races.KindLevel:
		l, ok := Level(raw)
		return races.Text(kind, l), ok
	default:
		t, ok := Text(raw)
		return races.Text(races.KindText, t), ok
	}
}

// Text trims and collapses whitespace.
func Text(raw string) (string, bool) {
	if IsNull(raw) {
		return "", false
	}
	s := Clean(raw)
	return s, s != ""
}

// Distance extracts kilometers. A number followed by a unit marker wins;
// otherwise every non-digit, non-dot character is stripped.
func Distance(raw string) (float64, bool) {
	s := Fold(raw)
	if s == "" {
		return 0, false
	}
	if m := distanceUnit.FindStringSubmatch(s); m != nil {
		if d, err := strconv.ParseFloat(m[1], 64); err == nil {
			return d, true
		}
	}
	d, err := strconv.ParseFloat(nonNumeric.ReplaceAllString(s, ""), 64)
	if err != nil {
		return 0, false
	}
	return d, true
}

// Fee strips currency symbols and words and parses the first number.
// Negative fees are rejected.
func Fee(raw string) (float64, bool) {
	s := currency.Replace(Fold(raw))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		tok := numberToken.FindString(s)
		if tok == "" {
			return 0, false
		}
		if f, err = strconv.ParseFloat(tok, 64); err != nil {
			return 0, false
		}
	}
	if f < 0 {
		return 0, false
	}
	return f, true
}

// Count parses a non-negative integer. "3万" is read as 30000.
func Count(raw string) (int, bool) {
	s := strings.NewReplacer(",", "", "，", "", " ", "").Replace(Fold(raw))
	if s == "" {
		return 0, false
	}
	tok := numberToken.FindString(s)
	if tok == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	if strings.Contains(s, tok+"万") {
		f *= 10000
	}
	return int(f + 0.5), true
}

// Date returns a validated YYYY-MM-DD date. Time suffixes are ignored.
func Date(raw string) (string, bool) {
	m := dateToken.FindStringSubmatch(Clean(raw))
	if m == nil {
		return "", false
	}
	t, err := time.Parse("2006-1-2", m[1]+"-"+m[2]+"-"+m[3])
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

var foreignMarkers = []string{"境外", "海外", "国外", "overseas", "foreign", "abroad"}

// Location splits a delimiter-joined place into up to three levels.
// It is domestic unless a foreign marker is present.
func Location(raw string) (races.Location, bool) {
	s := Clean(raw)
	if s == "" {
		return races.Location{}, false
	}
	loc := races.Location{Domestic: true}
	var parts []string
	for _, p := range locationSep.Split(s, -1) {
		if p == "" {
			continue
		}
		if isForeignMarker(p) {
			loc.Domestic = false
			continue
		}
		parts = append(parts, p)
	}
	if loc.Domestic && containsForeignMarker(s) {
		loc.Domestic = false
	}
	if len(parts) == 0 {
		return loc, !loc.Domestic
	}
	loc.Region = parts[0]
	if len(parts) > 1 {
		loc.Locality = parts[1]
	}
	if len(parts) > 2 {
		loc.SubLocality = parts[2]
	}
	return loc, true
}

func isForeignMarker(p string) bool {
	p = cases.Fold().String(p)
	for _, m := range foreignMarkers {
		if p == m {
			return true
		}
	}
	return false
}

func containsForeignMarker(s string) bool {
	s = cases.Fold().String(s)
	for _, m := range foreignMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
