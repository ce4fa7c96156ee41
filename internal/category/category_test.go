package category

import "testing"

func TestAllHasSixSections(t *testing.T) {
	if len(All) != 6 {
		t.Fatalf("len(All) = %d, want 6", len(All))
	}

	seen := make(map[string]bool)
	for _, c := range All {
		if c.ID == "" || c.Label == "" || c.Color == "" {
			t.Errorf("incomplete category: %+v", c)
		}
		if seen[c.ID] {
			t.Errorf("duplicate category id %q", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestValid(t *testing.T) {
	for _, c := range All {
		if !Valid(c.ID) {
			t.Errorf("Valid(%q) = false, want true", c.ID)
		}
	}
	if Valid("garage_sales") {
		t.Error("Valid(garage_sales) = true, want false")
	}
	if Valid("") {
		t.Error("Valid(\"\") = true, want false")
	}
}

func TestColorFor(t *testing.T) {
	if got := ColorFor("jobs"); got != "#00B0FF" {
		t.Errorf("ColorFor(jobs) = %q, want #00B0FF", got)
	}
	if got := ColorFor("nope"); got != "#ffffff" {
		t.Errorf("ColorFor(nope) = %q, want #ffffff", got)
	}
}
