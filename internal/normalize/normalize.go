// Package normalize maps raw fragments from any source into Records.
package normalize

import (
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"mspro-labs/city-pulse/internal/models"
)

const (
	minRating = 0.0
	maxRating = 5.0
)

// fieldMap lists the fragment keys tried, in order, for each Record field.
type fieldMap struct {
	Name, Rating, Reviews, Address, Phone, Website, Hours []string
}

var (
	apiFields = fieldMap{
		Name:    []string{"title", "name"},
		Rating:  []string{"rating"},
		Reviews: []string{"reviews", "review_count"},
		Address: []string{"address"},
		Phone:   []string{"phone"},
		Website: []string{"website"},
		Hours:   []string{"open_state", "hours"},
	}
	scrapedFields = fieldMap{
		Name:    []string{"name", "title"},
		Rating:  []string{"rating"},
		Reviews: []string{"reviews", "review_count"},
		Address: []string{"address"},
		Phone:   []string{"phone"},
		Website: []string{"website"},
		Hours:   []string{"hours"},
	}
)

var (
	// A comma between digits is read as a decimal comma ("4,5").
	reNumber = regexp.MustCompile(`-?\d*[.,]?\d+`)
	// Counts may use thousands separators and a k/m suffix ("1,204", "1.2K").
	reCount  = regexp.MustCompile(`(-?\d[\d,]*(?:\.\d+)?)\s*([kKmM])?\b`)
	rePhone  = regexp.MustCompile(`^[\d+\-\s().]+$`)
	reDigit  = regexp.MustCompile(`\d`)
)

var placeholders = map[string]struct{}{
	"n/a": {}, "na": {}, "-": {}, "--": {}, "none": {}, "null": {}, "available on click": {},
}

// Normalize turns one fragment into a Record. It returns false when the
// fragment has no usable name.
func Normalize(frag models.Fragment, category string, source models.Source) (models.Record, bool) {
	fields := scrapedFields
	if source == models.SourceAPI {
		fields = apiFields
	}

	name := strings.Join(strings.Fields(lookup(frag, fields.Name)), " ")
	if name == "" {
		return models.Record{}, false
	}

	rec := models.Record{
		Name:     name,
		Category: strings.TrimSpace(category),
		Rating:   parseRating(lookupRaw(frag, fields.Rating)),
		Reviews:  parseReviews(lookupRaw(frag, fields.Reviews)),
		Address:  cleanText(lookup(frag, fields.Address)),
		Phone:    cleanPhone(lookup(frag, fields.Phone)),
		Website:  cleanWebsite(lookup(frag, fields.Website)),
		Hours:    cleanText(lookup(frag, fields.Hours)),
		Source:   source,
	}
	return rec, true
}

func lookupRaw(frag models.Fragment, keys []string) any {
	for _, k := range keys {
		if v, ok := frag[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func lookup(frag models.Fragment, keys []string) string {
	for _, k := range keys {
		if s := toString(frag[k]); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return ""
	}
	return ""
}

func parseRating(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		m := reNumber.FindString(t)
		if m == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || f < minRating || f > maxRating {
		return nil
	}
	return &f
}

func parseReviews(v any) *int {
	var n int
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return nil
		}
		n = int(t)
	case int:
		n = t
	case int64:
		n = int(t)
	case json.Number:
		parsed, err := t.Int64()
		if err != nil {
			return nil
		}
		n = int(parsed)
	case string:
		parsed, ok := parseCount(t)
		if !ok {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	if n < 0 {
		return nil
	}
	return &n
}

// parseCount reads the first count in free text. A fractional count is only
// accepted with a k or m suffix.
func parseCount(s string) (int, bool) {
	m := reCount.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	num := strings.ReplaceAll(m[1], ",", "")
	var mult float64
	switch strings.ToLower(m[2]) {
	case "k":
		mult = 1e3
	case "m":
		mult = 1e6
	default:
		n, err := strconv.Atoi(num)
		return n, err == nil
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return int(math.Round(f * mult)), true
}

func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := placeholders[strings.ToLower(s)]; ok {
		return ""
	}
	return s
}

func cleanPhone(s string) string {
	s = cleanText(s)
	if s == "" || !rePhone.MatchString(s) {
		return ""
	}
	if len(reDigit.FindAllString(s, -1)) < 5 {
		return ""
	}
	return s
}

func cleanWebsite(s string) string {
	s = cleanText(s)
	if s == "" || strings.ContainsAny(s, " \t") {
		return ""
	}
	probe := s
	if !strings.Contains(probe, "://") {
		probe = "http://" + probe
	}
	u, err := url.Parse(probe)
	if err != nil || !strings.Contains(u.Host, ".") {
		return ""
	}
	return s
}
