// Package dedupe merges Records that describe the same business.
//
// Two Records match when their identity keys are equal and an address or
// phone agrees, or when the keys are within MaxNameDistance edits, the
// categories agree and no populated contact field contradicts the other.
// Merging only fills absent fields; the first Record seen keeps its name,
// source and every populated value.
package dedupe

import (
	"regexp"
	"strings"

	"mspro-labs/city-pulse/internal/models"
)

// MaxNameDistance is the largest edit distance between two identity keys
// that still counts as a near-duplicate name.
const MaxNameDistance = 2

// minNearKeyLen is the shortest identity key allowed to match by edit
// distance. Shorter names only match exactly.
const minNearKeyLen = 5

// minPhoneDigits is the shortest digit run compared as a phone suffix.
const minPhoneDigits = 7

var (
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	nonDigit    = regexp.MustCompile(`\D+`)
)

// Key returns the identity key of a business name: lowercase, punctuation
// removed, whitespace collapsed.
func Key(name string) string {
	k := punctuation.ReplaceAllString(strings.ToLower(name), "")
	k = whitespace.ReplaceAllString(k, " ")
	return strings.TrimSpace(k)
}

// AddressKey normalizes an address the same way as a name.
func AddressKey(addr string) string {
	return Key(addr)
}

// ContactKey tells apart businesses that share an identity key. It is the
// address key when there is one, else the phone digits, else the category.
// Two records with equal identity and contact keys always satisfy Same.
func ContactKey(r models.Record) string {
	if k := AddressKey(r.Address); k != "" {
		return "addr:" + k
	}
	if d := phoneDigits(r.Phone); d != "" {
		return "tel:" + d
	}
	return "cat:" + strings.ToLower(strings.TrimSpace(r.Category))
}

// phoneDigits keeps the digits of a phone number without leading zeros, so
// trunk-prefixed local numbers compare against international ones.
func phoneDigits(p string) string {
	return strings.TrimLeft(nonDigit.ReplaceAllString(p, ""), "0")
}

// addressMatch reports whether both values are present and whether they agree.
func addressMatch(a, b string) (present, equal bool) {
	ka, kb := AddressKey(a), AddressKey(b)
	if ka == "" || kb == "" {
		return false, false
	}
	return true, ka == kb
}

func phoneMatch(a, b string) (present, equal bool) {
	da, db := phoneDigits(a), phoneDigits(b)
	if da == "" || db == "" {
		return false, false
	}
	if da == db {
		return true, true
	}
	short, long := da, db
	if len(short) > len(long) {
		short, long = long, short
	}
	// Same number with and without a country or trunk prefix.
	return true, len(short) >= minPhoneDigits && strings.HasSuffix(long, short)
}

// Same reports whether a and b describe the same business.
func Same(a, b models.Record) bool {
	ka, kb := Key(a.Name), Key(b.Name)
	if ka == "" || kb == "" {
		return false
	}

	addrPresent, addrEqual := addressMatch(a.Address, b.Address)
	phonePresent, phoneEqual := phoneMatch(a.Phone, b.Phone)
	contactAgrees := addrEqual || phoneEqual
	contactConflicts := (addrPresent && !addrEqual) || (phonePresent && !phoneEqual)

	if ka == kb && contactAgrees {
		return true
	}
	if contactConflicts && !contactAgrees {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(a.Category), strings.TrimSpace(b.Category)) {
		return false
	}
	if ka == kb {
		return true
	}
	if len([]rune(ka)) < minNearKeyLen || len([]rune(kb)) < minNearKeyLen {
		return false
	}
	return Distance(ka, kb) <= MaxNameDistance
}

// Merge fills the absent fields of dst from src. Populated fields of dst,
// including Name and Source, are never overwritten.
func Merge(dst, src models.Record) models.Record {
	if dst.Category == "" {
		dst.Category = src.Category
	}
	if dst.Rating == nil && src.Rating != nil {
		v := *src.Rating
		dst.Rating = &v
	}
	if dst.Reviews == nil && src.Reviews != nil {
		v := *src.Reviews
		dst.Reviews = &v
	}
	if dst.Address == "" {
		dst.Address = src.Address
	}
	if dst.Phone == "" {
		dst.Phone = src.Phone
	}
	if dst.Website == "" {
		dst.Website = src.Website
	}
	if dst.Hours == "" {
		dst.Hours = src.Hours
	}
	return dst
}

// Dedupe reduces records to one Record per distinct business, keeping the
// first-seen order of the surviving entries. The result is stable under a
// second call: no two returned Records satisfy Same.
func Dedupe(records []models.Record) []models.Record {
	var entries []models.Record
	groups := make(map[string][]int)

	for _, rec := range records {
		key := Key(rec.Name)
		idx := findMatch(entries, groups, key, rec, -1)
		if idx < 0 {
			groups[key] = append(groups[key], len(entries))
			entries = append(entries, rec)
			continue
		}

		entries[idx] = Merge(entries[idx], rec)
		entries, groups = settle(entries, idx)
	}
	return entries
}

// findMatch looks in the same-key group first, then scans the rest for a
// near-duplicate name.
func findMatch(entries []models.Record, groups map[string][]int, key string, rec models.Record, skip int) int {
	for _, i := range groups[key] {
		if i != skip && Same(entries[i], rec) {
			return i
		}
	}
	for i := range entries {
		if i == skip || Key(entries[i].Name) == key {
			continue
		}
		if Same(entries[i], rec) {
			return i
		}
	}
	return -1
}

// settle merges entries that became duplicates of entries[idx] after it
// gained fields. The earlier entry of a pair always survives.
func settle(entries []models.Record, idx int) ([]models.Record, map[string][]int) {
	for {
		groups := index(entries)
		other := findMatch(entries, groups, Key(entries[idx].Name), entries[idx], idx)
		if other < 0 {
			return entries, groups
		}
		keep, drop := idx, other
		if other < idx {
			keep, drop = other, idx
		}
		entries[keep] = Merge(entries[keep], entries[drop])
		entries = append(entries[:drop], entries[drop+1:]...)
		idx = keep
	}
}

func index(entries []models.Record) map[string][]int {
	groups := make(map[string][]int, len(entries))
	for i, e := range entries {
		k := Key(e.Name)
		groups[k] = append(groups[k], i)
	}
	return groups
}

// Distance is the Levenshtein edit distance between a and b, in runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
