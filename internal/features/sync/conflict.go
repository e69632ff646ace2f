package sync

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// FieldMapping binds a local entity field to a path into the remote
// snapshot document. Convert, when set, reshapes the remote value into
// the local schema before staging.
type FieldMapping struct {
	LocalField string
	RemotePath string
	Required   bool
	Convert    func(any) any
}

// BusinessInfoMappings is the field catalogue for the business-info
// category. Illustrative and extensible, not exhaustive.
var BusinessInfoMappings = []FieldMapping{
	{LocalField: "name", RemotePath: "name", Required: true},
	{LocalField: "category", RemotePath: "primary_category"},
	{LocalField: "phone", RemotePath: "primary_phone"},
	{LocalField: "website", RemotePath: "website_url"},
	{LocalField: "description", RemotePath: "profile.description"},
	{LocalField: "address", RemotePath: "address", Convert: convertRemoteAddress},
	{LocalField: "hours", RemotePath: "regular_hours.periods"},
}

// Resolution is the outcome of one resolver pass: updates to apply (may be
// empty), the full conflict list, the applied changes, and per-field
// attribution for the data_sources map.
type Resolution struct {
	Updates   map[string]any
	Conflicts []DataConflict
	Changes   []DataChange
	Sources   map[string]string
}

type Resolver struct {
	strategy        ConflictStrategy
	forceUpdate     bool
	localUpdatedAt  time.Time
	remoteUpdatedAt time.Time
}

func NewResolver(strategy ConflictStrategy, forceUpdate bool, localUpdatedAt, remoteUpdatedAt time.Time) *Resolver {
	if strategy == "" {
		strategy = ConflictRemoteWins
	}
	return &Resolver{
		strategy:        strategy,
		forceUpdate:     forceUpdate,
		localUpdatedAt:  localUpdatedAt,
		remoteUpdatedAt: remoteUpdatedAt,
	}
}

// Resolve walks the mappings and reconciles the local document against the
// remote one, per field:
//   - remote present, local absent (or forceUpdate): stage directly, no conflict
//   - both present and different: record a conflict and apply the strategy
//   - otherwise: nothing to do
func (r *Resolver) Resolve(local, remote map[string]any, mappings []FieldMapping) *Resolution {
	res := &Resolution{
		Updates: map[string]any{},
		Sources: map[string]string{},
	}

	for _, mapping := range mappings {
		remoteValue, remoteOK := ExtractPath(remote, mapping.RemotePath)
		if remoteOK && mapping.Convert != nil {
			remoteValue = mapping.Convert(remoteValue)
		}
		localValue, localOK := presentValue(local[mapping.LocalField])

		switch {
		case remoteOK && (!localOK || r.forceUpdate):
			action := "create"
			if localOK {
				action = "update"
			}
			r.stage(res, mapping.LocalField, localValue, remoteValue, action)

		case remoteOK && localOK:
			equal, details := fieldsEqual(mapping.LocalField, localValue, remoteValue)
			if equal {
				continue
			}
			conflict := DataConflict{
				Field:       mapping.LocalField,
				LocalValue:  localValue,
				RemoteValue: remoteValue,
				Strategy:    r.strategy,
				Details:     details,
			}

			switch r.effectiveStrategy() {
			case ConflictRemoteWins, ConflictMerge:
				conflict.Resolved = true
				conflict.SelectedValue = remoteValue
				r.stage(res, mapping.LocalField, localValue, remoteValue, "update")
			case ConflictLocalWins:
				conflict.Resolved = true
				conflict.SelectedValue = localValue
			default:
				// manual: left for out-of-band resolution
			}

			res.Conflicts = append(res.Conflicts, conflict)
		}
	}

	return res
}

func (r *Resolver) stage(res *Resolution, field string, oldValue, newValue any, action string) {
	res.Updates[field] = newValue
	res.Sources[field] = "remote"
	res.Changes = append(res.Changes, DataChange{
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		Source:    "remote",
		Action:    action,
		Timestamp: time.Now(),
	})
}

// effectiveStrategy folds newest_wins into a winner based on the two
// record timestamps.
func (r *Resolver) effectiveStrategy() ConflictStrategy {
	if r.strategy != ConflictNewestWins {
		return r.strategy
	}
	if r.remoteUpdatedAt.After(r.localUpdatedAt) {
		return ConflictRemoteWins
	}
	return ConflictLocalWins
}

func presentValue(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, false
	}
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return nil, false
	}
	return v, true
}

// fieldsEqual dispatches to a composite comparator for structured fields
// and falls back to deep equality.
func fieldsEqual(field string, local, remote any) (bool, []string) {
	switch field {
	case "name":
		l, lok := local.(string)
		r, rok := remote.(string)
		if lok && rok {
			if normalize(l) == normalize(r) {
				return true, nil
			}
			return false, []string{fmt.Sprintf("name similarity %.2f", Similarity(l, r))}
		}
	case "category":
		l, lok := local.(string)
		r, rok := remote.(string)
		if lok && rok {
			score := CategoryScore(l, r)
			if score == 1.0 {
				return true, nil
			}
			return false, []string{fmt.Sprintf("category match score %.2f", score)}
		}
	case "address":
		return addressesEqual(local, remote)
	case "hours":
		return hoursEqual(local, remote)
	}
	return reflect.DeepEqual(local, remote), nil
}

// Similarity is the normalized Levenshtein ratio in [0,1].
func Similarity(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == b {
		return 1.0
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

// NamesMatch reports whether two business names are close enough to be the
// same business. 0.6 is the verification threshold.
func NamesMatch(a, b string) bool {
	return Similarity(a, b) > 0.6
}

// CategoryScore scores category agreement: exact match 1.0, one containing
// the other 0.7, otherwise the plain similarity ratio.
func CategoryScore(local, remote string) float64 {
	l, r := normalize(local), normalize(remote)
	switch {
	case l == r:
		return 1.0
	case strings.Contains(l, r) || strings.Contains(r, l):
		return 0.7
	default:
		return Similarity(l, r)
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// addressesEqual compares the concatenated address strings with a small
// tolerance for formatting noise.
func addressesEqual(local, remote any) (bool, []string) {
	localStr := addressString(local)
	remoteStr := addressString(remote)
	if localStr == "" || remoteStr == "" {
		return localStr == remoteStr, nil
	}
	sim := Similarity(localStr, remoteStr)
	if sim >= 0.9 {
		return true, nil
	}
	return false, []string{fmt.Sprintf("address similarity %.2f", sim)}
}

func addressString(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		if s, ok := v.(string); ok {
			return normalize(s)
		}
		return ""
	}

	var parts []string
	appendStr := func(key string) {
		if s, ok := m[key].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}

	// Local schema.
	appendStr("street")
	appendStr("city")
	appendStr("state")
	appendStr("zip")
	// Remote schema.
	if lines, ok := m["lines"].([]any); ok {
		for _, line := range lines {
			if s, ok := line.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
	}
	appendStr("locality")
	appendStr("region")
	appendStr("postal_code")

	return normalize(strings.Join(parts, " "))
}

func convertRemoteAddress(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	street := ""
	if lines, ok := m["lines"].([]any); ok {
		var parts []string
		for _, line := range lines {
			if s, ok := line.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		street = strings.Join(parts, ", ")
	}

	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}

	return map[string]any{
		"street":  street,
		"city":    str("locality"),
		"state":   str("region"),
		"zip":     str("postal_code"),
		"country": str("country"),
	}
}

// hoursEqual compares weekly schedules day by day and returns one detail
// line per differing day.
func hoursEqual(local, remote any) (bool, []string) {
	localDays := hoursMap(local)
	remoteDays := hoursMap(remote)

	daySet := map[string]bool{}
	for day := range localDays {
		daySet[day] = true
	}
	for day := range remoteDays {
		daySet[day] = true
	}

	days := make([]string, 0, len(daySet))
	for day := range daySet {
		days = append(days, day)
	}
	sort.Strings(days)

	var details []string
	for _, day := range days {
		l, r := localDays[day], remoteDays[day]
		if l == r {
			continue
		}
		details = append(details, fmt.Sprintf("%s: local %s, remote %s", day, l.describe(), r.describe()))
	}

	return len(details) == 0, details
}

type dayWindow struct {
	open   string
	close  string
	closed bool
}

func (w dayWindow) describe() string {
	if w.closed || (w.open == "" && w.close == "") {
		return "closed"
	}
	return w.open + "-" + w.close
}

func hoursMap(v any) map[string]dayWindow {
	out := map[string]dayWindow{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for day, raw := range m {
		dm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		w := dayWindow{}
		if s, ok := dm["open"].(string); ok {
			w.open = s
		}
		if s, ok := dm["close"].(string); ok {
			w.close = s
		}
		if b, ok := dm["closed"].(bool); ok {
			w.closed = b
		}
		out[strings.ToLower(day)] = w
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
