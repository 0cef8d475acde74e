package model

import "testing"

func TestPriorityRank(t *testing.T) {
	t.Parallel()

	ordered := []Priority{PriorityCritical, PriorityImportant, PriorityRepresentative, PriorityOptional, Priority("bogus")}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Rank() >= ordered[i].Rank() {
			t.Errorf("%q should rank before %q", ordered[i-1], ordered[i])
		}
		if ordered[i-1].Weight() <= ordered[i].Weight() {
			t.Errorf("%q should weigh more than %q", ordered[i-1], ordered[i])
		}
	}
}

func TestParseRoleAndPriority(t *testing.T) {
	t.Parallel()

	t.Run("known role", func(t *testing.T) {
		t.Parallel()
		r, ok := ParseRole("Checkout")
		if !ok || r != RoleCheckout {
			t.Errorf("ParseRole(Checkout) = %q, %v", r, ok)
		}
	})

	t.Run("unknown role falls back to other", func(t *testing.T) {
		t.Parallel()
		r, ok := ParseRole("landing")
		if ok || r != RoleOther {
			t.Errorf("ParseRole(landing) = %q, %v", r, ok)
		}
	})

	t.Run("unknown priority is rejected", func(t *testing.T) {
		t.Parallel()
		if _, ok := ParsePriority("urgent"); ok {
			t.Error("expected urgent to be rejected")
		}
	})
}

func TestDiscoveredPagePath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		url      string
		expected string
	}{
		{"https://example.com", "/"},
		{"https://example.com/", "/"},
		{"https://example.com/product/1?x=1", "/product/1"},
		{"://bad", "/"},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			t.Parallel()
			p := &DiscoveredPage{URL: tc.url}
			if got := p.Path(); got != tc.expected {
				t.Errorf("Path() = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestDiscoveredPageClone(t *testing.T) {
	t.Parallel()

	p := &DiscoveredPage{URL: "https://example.com/contact", Tags: []string{TagContact}}
	c := p.Clone()
	c.Tags[0] = TagLogin

	if !p.HasTag(TagContact) {
		t.Error("clone mutated the original tags")
	}
}
