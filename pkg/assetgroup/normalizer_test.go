package assetgroup

import "testing"

func TestParseImpact(t *testing.T) {
	cases := map[string]Impact{
		"Minor":      ImpactMinor,
		"minor":      ImpactMinor,
		" CRITICAL ": ImpactCritical,
		"medium":     ImpactMedium,
		"Low":        ImpactLow,
		"high":       ImpactHigh,
	}
	for raw, want := range cases {
		got, err := ParseImpact(raw)
		if err != nil {
			t.Fatalf("ParseImpact(%q) unexpected error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseImpact(%q)=%q want %q", raw, got, want)
		}
	}
	if _, err := ParseImpact("Severe"); err == nil {
		t.Fatalf("expected error for unknown impact")
	}
}

func TestNeedsUpdate(t *testing.T) {
	cases := []struct {
		impact string
		want   bool
	}{
		{"Minor", false},
		{"minor", true},
		{"MINOR", true},
		{" Minor ", true},
		{"High", true},
		{"Critical", true},
		{"", true},
	}
	for _, c := range cases {
		g := AssetGroup{ID: "1", BusinessImpact: c.impact}
		if got := g.NeedsUpdate(ImpactMinor); got != c.want {
			t.Fatalf("NeedsUpdate(%q)=%v want %v", c.impact, got, c.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	g := Normalize(AssetGroup{ID: " 42 ", Title: " Web Servers ", BusinessImpact: " HIGH "})
	if g.ID != "42" || g.Title != "Web Servers" || g.BusinessImpact != "HIGH" {
		t.Fatalf("unexpected normalized group: %+v", g)
	}
	unknown := Normalize(AssetGroup{ID: "7", BusinessImpact: "Bespoke"})
	if unknown.BusinessImpact != "Bespoke" {
		t.Fatalf("unknown impact should be kept verbatim, got %q", unknown.BusinessImpact)
	}
}

func TestDisplayName(t *testing.T) {
	if got := (AssetGroup{ID: "9"}).DisplayName(); got != "9" {
		t.Fatalf("DisplayName fallback=%q want 9", got)
	}
	if got := (AssetGroup{ID: "9", Title: "DMZ"}).DisplayName(); got != "DMZ" {
		t.Fatalf("DisplayName=%q want DMZ", got)
	}
}
