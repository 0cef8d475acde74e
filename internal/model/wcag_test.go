package model

import "testing"

func TestPrincipleOf(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		id       string
		expected Principle
	}{
		{"1.1.1", PrinciplePerceivable},
		{"2.4.4", PrincipleOperable},
		{"3.1.1", PrincipleUnderstandable},
		{"4.1.2", PrincipleRobust},
		{"", PrincipleUnknown},
		{"best-practice", PrincipleUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.id, func(t *testing.T) {
			t.Parallel()
			if got := PrincipleOf(tc.id); got != tc.expected {
				t.Errorf("PrincipleOf(%q) = %q, want %q", tc.id, got, tc.expected)
			}
		})
	}
}

func TestLookupCriterion(t *testing.T) {
	t.Parallel()

	c, ok := LookupCriterion("1.4.3")
	if !ok {
		t.Fatal("expected 1.4.3 to be in the catalog")
	}
	if c.Level != LevelAA {
		t.Errorf("expected level AA, got %s", c.Level)
	}
	if c.Principle() != PrinciplePerceivable {
		t.Errorf("expected perceivable, got %s", c.Principle())
	}

	if _, ok := LookupCriterion("9.9.9"); ok {
		t.Error("expected 9.9.9 to be missing")
	}
}

func TestCriteriaCatalogConsistency(t *testing.T) {
	t.Parallel()

	for id, c := range criteria {
		if c.ID != id {
			t.Errorf("catalog key %q holds criterion %q", id, c.ID)
		}
		if c.Principle() == PrincipleUnknown {
			t.Errorf("criterion %q has no principle", id)
		}
		if c.Level != LevelA && c.Level != LevelAA && c.Level != LevelAAA {
			t.Errorf("criterion %q has invalid level %q", id, c.Level)
		}
	}
}
