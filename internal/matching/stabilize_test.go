package matching

import "testing"

func TestStabilizeReturnPriceNoRef(t *testing.T) {
	got, adjusted := StabilizeReturnPrice(1500000, nil)
	if adjusted || got != 1500000 {
		t.Fatalf("expected no-op, got %v %v", got, adjusted)
	}
}

func TestStabilizeReturnPriceDividesUntilClose(t *testing.T) {
	ref := 12.0
	got, adjusted := StabilizeReturnPrice(12_000_000, &ref)
	if !adjusted {
		t.Fatalf("expected adjustment")
	}
	if got != 12 {
		t.Fatalf("got %v", got)
	}
}

func TestStabilizeReturnPriceLeavesPlausiblePrice(t *testing.T) {
	ref := 100.0
	got, adjusted := StabilizeReturnPrice(150, &ref)
	if adjusted || got != 150 {
		t.Fatalf("expected no-op for plausible price, got %v %v", got, adjusted)
	}
}

func TestStabilizeReturnPriceBoundedAtFourIterations(t *testing.T) {
	ref := 2.0
	got, adjusted := StabilizeReturnPrice(1e15, &ref)
	if !adjusted {
		t.Fatalf("expected adjustment")
	}
	want := 1e15
	for i := 0; i < 4; i++ {
		want /= 1000
	}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}
