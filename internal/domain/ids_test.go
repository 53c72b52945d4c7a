package domain

import (
	"testing"
	"time"
)

func TestIDGeneratorIsMonotonic(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	g := NewIDGenerator(func() time.Time { return fixed })

	first := g.Next("img")
	second := g.Next("img")
	if first != "img-1700000000000" {
		t.Fatalf("first = %q, want %q", first, "img-1700000000000")
	}
	if second != "img-1700000000001" {
		t.Fatalf("second = %q, want %q", second, "img-1700000000001")
	}
}

func TestParseAspectRatio(t *testing.T) {
	cases := map[string]AspectRatio{
		"9:16":  AspectPortrait,
		" 16:9": AspectLandscape,
		"4:5":   AspectFourFive,
		"1:1":   AspectSquare,
		"3:2":   AspectSquare,
		"":      AspectSquare,
	}
	for in, want := range cases {
		if got := ParseAspectRatio(in); got != want {
			t.Fatalf("ParseAspectRatio(%q) = %q, want %q", in, got, want)
		}
	}
}
