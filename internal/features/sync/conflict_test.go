package sync

import (
	"testing"
	"time"
)

func remoteBakeryDoc() map[string]any {
	return map[string]any{
		"name":             "Ace Bakery LLC",
		"primary_category": "Bakery & Cafe",
		"primary_phone":    "+1 555 010 2030",
		"website_url":      "https://acebakery.example.com",
		"profile": map[string]any{
			"description": "Neighborhood bakery, open since 1998.",
		},
		"address": map[string]any{
			"lines":       []any{"12 Baker Street"},
			"locality":    "Springfield",
			"region":      "IL",
			"postal_code": "62701",
			"country":     "US",
		},
		"regular_hours": map[string]any{
			"periods": map[string]any{
				"monday": map[string]any{"open": "08:00", "close": "18:00"},
			},
		},
	}
}

func TestResolveRemoteWinsStagesConflictingName(t *testing.T) {
	local := map[string]any{
		"name": "Ace Bakery",
	}

	r := NewResolver(ConflictRemoteWins, false, time.Now(), time.Now())
	res := r.Resolve(local, remoteBakeryDoc(), BusinessInfoMappings)

	if got := res.Updates["name"]; got != "Ace Bakery LLC" {
		t.Errorf("Updates[name] = %v, want remote value", got)
	}

	var nameConflict *DataConflict
	for i := range res.Conflicts {
		if res.Conflicts[i].Field == "name" {
			nameConflict = &res.Conflicts[i]
		}
	}
	if nameConflict == nil {
		t.Fatal("expected a conflict on name")
	}
	if !nameConflict.Resolved {
		t.Error("remote_wins conflict should be marked resolved")
	}
	if nameConflict.SelectedValue != "Ace Bakery LLC" {
		t.Errorf("SelectedValue = %v, want remote value", nameConflict.SelectedValue)
	}
	if res.Sources["name"] != "remote" {
		t.Errorf("Sources[name] = %q, want remote", res.Sources["name"])
	}
}

func TestResolveLocalWinsKeepsLocalValue(t *testing.T) {
	local := map[string]any{
		"name": "Ace Bakery",
	}

	r := NewResolver(ConflictLocalWins, false, time.Now(), time.Now())
	res := r.Resolve(local, remoteBakeryDoc(), BusinessInfoMappings)

	if _, staged := res.Updates["name"]; staged {
		t.Error("local_wins must not stage an update for the conflicting field")
	}

	found := false
	for _, c := range res.Conflicts {
		if c.Field == "name" {
			found = true
			if !c.Resolved {
				t.Error("local_wins conflict should be marked resolved")
			}
			if c.SelectedValue != "Ace Bakery" {
				t.Errorf("SelectedValue = %v, want local value", c.SelectedValue)
			}
		}
	}
	if !found {
		t.Fatal("expected a conflict on name")
	}
}

func TestResolveManualLeavesConflictUnresolved(t *testing.T) {
	local := map[string]any{"name": "Ace Bakery"}

	r := NewResolver(ConflictManual, false, time.Now(), time.Now())
	res := r.Resolve(local, remoteBakeryDoc(), BusinessInfoMappings)

	if _, staged := res.Updates["name"]; staged {
		t.Error("manual strategy must not stage updates for conflicts")
	}
	for _, c := range res.Conflicts {
		if c.Field == "name" && c.Resolved {
			t.Error("manual conflict should stay unresolved")
		}
	}
}

func TestResolveAbsentLocalStagesWithoutConflict(t *testing.T) {
	local := map[string]any{
		"name":  "Ace Bakery LLC",
		"phone": "",
	}

	r := NewResolver(ConflictRemoteWins, false, time.Now(), time.Now())
	res := r.Resolve(local, remoteBakeryDoc(), BusinessInfoMappings)

	if got := res.Updates["phone"]; got != "+1 555 010 2030" {
		t.Errorf("Updates[phone] = %v, want remote value", got)
	}
	for _, c := range res.Conflicts {
		if c.Field == "phone" {
			t.Error("filling an absent local field must not record a conflict")
		}
	}

	var change *DataChange
	for i := range res.Changes {
		if res.Changes[i].Field == "phone" {
			change = &res.Changes[i]
		}
	}
	if change == nil {
		t.Fatal("expected a change entry for phone")
	}
	if change.Action != "create" {
		t.Errorf("Action = %q, want create for absent local value", change.Action)
	}
}

func TestResolveForceUpdateOverwritesEqualFields(t *testing.T) {
	local := map[string]any{"name": "ace bakery llc"}

	r := NewResolver(ConflictRemoteWins, true, time.Now(), time.Now())
	res := r.Resolve(local, remoteBakeryDoc(), BusinessInfoMappings)

	if got := res.Updates["name"]; got != "Ace Bakery LLC" {
		t.Errorf("force update should stage remote name, got %v", got)
	}
	for _, c := range res.Conflicts {
		if c.Field == "name" {
			t.Error("force update must not record conflicts")
		}
	}
}

func TestResolveNewestWinsUsesTimestamps(t *testing.T) {
	local := map[string]any{"name": "Ace Bakery"}
	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	r := NewResolver(ConflictNewestWins, false, newer, older)
	res := r.Resolve(local, remoteBakeryDoc(), BusinessInfoMappings)

	if _, staged := res.Updates["name"]; staged {
		t.Error("newest_wins with a newer local record must keep the local value")
	}

	r = NewResolver(ConflictNewestWins, false, older, newer)
	res = r.Resolve(local, remoteBakeryDoc(), BusinessInfoMappings)

	if got := res.Updates["name"]; got != "Ace Bakery LLC" {
		t.Errorf("newest_wins with a newer remote record should stage it, got %v", got)
	}
}

func TestResolveConvertsRemoteAddress(t *testing.T) {
	local := map[string]any{}

	r := NewResolver(ConflictRemoteWins, false, time.Now(), time.Now())
	res := r.Resolve(local, remoteBakeryDoc(), BusinessInfoMappings)

	addr, ok := res.Updates["address"].(map[string]any)
	if !ok {
		t.Fatalf("Updates[address] = %T, want converted map", res.Updates["address"])
	}
	if addr["street"] != "12 Baker Street" {
		t.Errorf("street = %v", addr["street"])
	}
	if addr["city"] != "Springfield" {
		t.Errorf("city = %v", addr["city"])
	}
	if addr["zip"] != "62701" {
		t.Errorf("zip = %v", addr["zip"])
	}
}

func TestResolveEquivalentAddressesDoNotConflict(t *testing.T) {
	local := map[string]any{
		"name": "Ace Bakery LLC",
		"address": map[string]any{
			"street": "12 Baker Street",
			"city":   "Springfield",
			"state":  "IL",
			"zip":    "62701",
		},
	}

	r := NewResolver(ConflictRemoteWins, false, time.Now(), time.Now())
	res := r.Resolve(local, remoteBakeryDoc(), BusinessInfoMappings)

	for _, c := range res.Conflicts {
		if c.Field == "address" {
			t.Errorf("equivalent addresses should not conflict: %v", c.Details)
		}
	}
}

func TestResolveHoursConflictListsDifferingDays(t *testing.T) {
	local := map[string]any{
		"name": "Ace Bakery LLC",
		"hours": map[string]any{
			"monday": map[string]any{"open": "09:00", "close": "17:00"},
		},
	}

	r := NewResolver(ConflictRemoteWins, false, time.Now(), time.Now())
	res := r.Resolve(local, remoteBakeryDoc(), BusinessInfoMappings)

	var hoursConflict *DataConflict
	for i := range res.Conflicts {
		if res.Conflicts[i].Field == "hours" {
			hoursConflict = &res.Conflicts[i]
		}
	}
	if hoursConflict == nil {
		t.Fatal("expected an hours conflict")
	}
	if len(hoursConflict.Details) != 1 {
		t.Fatalf("Details = %v, want exactly one differing day", hoursConflict.Details)
	}
	want := "monday: local 09:00-17:00, remote 08:00-18:00"
	if hoursConflict.Details[0] != want {
		t.Errorf("Details[0] = %q, want %q", hoursConflict.Details[0], want)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{name: "identical", a: "Ace Bakery", b: "Ace Bakery", min: 1.0, max: 1.0},
		{name: "case and spacing ignored", a: "ACE  Bakery", b: "ace bakery", min: 1.0, max: 1.0},
		{name: "suffix added", a: "Ace Bakery", b: "Ace Bakery LLC", min: 0.65, max: 0.8},
		{name: "unrelated", a: "Ace Bakery", b: "Joe's Garage", min: 0.0, max: 0.4},
		{name: "both empty", a: "", b: "", min: 1.0, max: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("Similarity(%q, %q) = %.3f, want in [%.2f, %.2f]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestNamesMatch(t *testing.T) {
	if !NamesMatch("Ace Bakery", "Ace Bakery LLC") {
		t.Error("suffixed legal name should still match")
	}
	if NamesMatch("Ace Bakery", "Joe's Garage") {
		t.Error("unrelated names must not match")
	}
}

func TestCategoryScore(t *testing.T) {
	tests := []struct {
		name   string
		local  string
		remote string
		want   float64
	}{
		{name: "exact", local: "Bakery", remote: "bakery", want: 1.0},
		{name: "substring", local: "Bakery", remote: "Bakery & Cafe", want: 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryScore(tt.local, tt.remote); got != tt.want {
				t.Errorf("CategoryScore(%q, %q) = %v, want %v", tt.local, tt.remote, got, tt.want)
			}
		})
	}

	if got := CategoryScore("Bakery", "Garage"); got >= 0.7 {
		t.Errorf("unrelated categories scored %v, want below 0.7", got)
	}
}
