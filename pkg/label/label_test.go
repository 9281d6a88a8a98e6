package label

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatEmpty(t *testing.T) {
	if got := Format(nil); got != "" {
		t.Errorf("Format(nil) = %q, want empty", got)
	}
	if got := Format([]Detection{}); got != "" {
		t.Errorf("Format([]) = %q, want empty", got)
	}
}

func TestFormatSingle(t *testing.T) {
	got := Format([]Detection{{ClassIndex: 2, BoundingBox: [4]float64{0.1, 0.2, 0.3, 0.4}}})
	want := "2 0.1 0.2 0.3 0.4\n"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormatPreservesOrder(t *testing.T) {
	dets := []Detection{
		{ClassIndex: 7, BoundingBox: [4]float64{1, 0.5, 0.25, 0}},
		{ClassIndex: 0, BoundingBox: [4]float64{0.125, 0.5, 0.75, 1}},
		{ClassIndex: 7, BoundingBox: [4]float64{1, 0.5, 0.25, 0}},
	}
	got := Format(dets)
	want := "7 1 0.5 0.25 0\n" +
		"0 0.125 0.5 0.75 1\n" +
		"7 1 0.5 0.25 0\n"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormatLineCount(t *testing.T) {
	for n := 0; n < 20; n++ {
		dets := make([]Detection, n)
		for i := range dets {
			dets[i] = Detection{ClassIndex: i, BoundingBox: [4]float64{0.1, 0.2, 0.3, 0.4}}
		}
		out := Format(dets)
		if got := strings.Count(out, "\n"); got != n {
			t.Errorf("n=%d: %d lines", n, got)
		}
		for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
			if n == 0 {
				break
			}
			if len(strings.Fields(line)) != 5 {
				t.Errorf("n=%d: line %q does not have 5 fields", n, line)
			}
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	dets := []Detection{
		{ClassIndex: 2, BoundingBox: [4]float64{0.1, 0.2, 0.3, 0.4}},
		{ClassIndex: 15, BoundingBox: [4]float64{0.5, 0.5, 1, 1}},
	}
	got, err := Parse(Format(dets))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != len(dets) {
		t.Fatalf("got %d detections, want %d", len(got), len(dets))
	}
	for i := range dets {
		if got[i] != dets[i] {
			t.Errorf("det %d = %+v, want %+v", i, got[i], dets[i])
		}
	}
}

func TestParseLenient(t *testing.T) {
	got, err := Parse("\n3.0 0.5 0.5 0.2 0.2\n\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 1 || got[0].ClassIndex != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, in := range []string{"1 2 3", "a 0.1 0.2 0.3 0.4", "1 0.1 x 0.3 0.4", "1 2 3 4 5 6"} {
		if _, err := Parse(in); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) err = %v, want ErrMalformed", in, err)
		}
	}
}
