package scorekey

import "testing"

func TestRoundTrip(t *testing.T) {
	scores := []float64{-0.5, 12.75, 0.0, 100, -2.25, 99.99}
	for _, score := range scores {
		if got := Encode(score).Score(); got != score {
			t.Fatalf("round trip %v: got %v", score, got)
		}
	}
}

func TestOrderPreserving(t *testing.T) {
	pairs := [][2]float64{
		{-0.5, 0},
		{0, 0.25},
		{12.74, 12.75},
		{-2.25, -2},
		{99.99, 100},
	}
	for _, p := range pairs {
		if Encode(p[0]) >= Encode(p[1]) {
			t.Fatalf("expected key(%v) < key(%v), got %d >= %d", p[0], p[1], Encode(p[0]), Encode(p[1]))
		}
	}
}

func TestRoundingIsSymmetric(t *testing.T) {
	if Encode(0.005) != 1 {
		t.Fatalf("expected 0.005 to round up, got %d", Encode(0.005))
	}
	if Encode(-0.005) != -1 {
		t.Fatalf("expected -0.005 to round away from zero, got %d", Encode(-0.005))
	}
}
