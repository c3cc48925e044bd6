package rates

import "testing"

func TestWindowLimitsAndResets(t *testing.T) {
	var w Window
	for i := 0; i < 3; i++ {
		if ok, _ := w.Allow(10, 60, 3); !ok {
			t.Fatalf("call %d rejected", i)
		}
	}
	ok, cd := w.Allow(20, 60, 3)
	if ok {
		t.Fatalf("4th call allowed")
	}
	if cd != 50 {
		t.Fatalf("cooldown=%d want 50", cd)
	}
	if ok, _ := w.Allow(70, 60, 3); !ok {
		t.Fatalf("expected reset after window")
	}
}

func TestDisabledLimit(t *testing.T) {
	var w Window
	for i := 0; i < 100; i++ {
		if ok, _ := w.Allow(1, 0, 1); !ok {
			t.Fatalf("zero window must not limit")
		}
	}
}
