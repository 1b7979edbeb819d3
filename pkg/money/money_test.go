package money

import "testing"

func TestFromDollarString(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"12.50", 1250},
		{"$12.50", 1250},
		{"0.50", 50},
		{"8", 800},
		{"1,200.00", 120000},
		{" 10.00 ", 1000},
	}
	for _, tc := range tests {
		got, err := FromDollarString(tc.in)
		if err != nil {
			t.Fatalf("FromDollarString(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("FromDollarString(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFromDollarStringRejects(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "10.005", "$"} {
		if _, err := FromDollarString(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestToDollarString(t *testing.T) {
	if got := ToDollarString(1250); got != "12.50" {
		t.Fatalf("ToDollarString(1250) = %q", got)
	}
	if got := ToDollarString(5); got != "0.05" {
		t.Fatalf("ToDollarString(5) = %q", got)
	}
}

func TestResolveClientAmount(t *testing.T) {
	cents := int64(1200)

	got, err := ResolveClientAmount(&cents, "")
	if err != nil || got != 1200 {
		t.Fatalf("cents shape: %d %v", got, err)
	}

	got, err = ResolveClientAmount(nil, "12.00")
	if err != nil || got != 1200 {
		t.Fatalf("dollar shape: %d %v", got, err)
	}

	if _, err := ResolveClientAmount(&cents, "12.00"); err == nil {
		t.Fatal("expected error when both shapes are present")
	}
	if _, err := ResolveClientAmount(nil, ""); err == nil {
		t.Fatal("expected error when neither shape is present")
	}
}
