package lod

import (
	"testing"

	"voxelcore/internal/config"
)

func testController() Controller {
	cfg := config.Default()
	cfg.LODDist0 = 100
	cfg.LODDist1 = 200
	cfg.LODHysteresis = 10
	return NewController(cfg)
}

func TestPromotionRequiresClearingThresholdPlusHysteresis(t *testing.T) {
	c := testController()
	if got := c.Calculate(105, 0); got != 0 {
		t.Fatalf("Calculate(105,0) = %d inside the hysteresis band, want 0", got)
	}
	if got := c.Calculate(111, 0); got != 1 {
		t.Fatalf("Calculate(111,0) = %d beyond dist0+hysteresis, want 1", got)
	}
}

func TestDemotionRequiresFallingBelowThresholdMinusHysteresis(t *testing.T) {
	c := testController()
	if got := c.Calculate(95, 1); got != 1 {
		t.Fatalf("Calculate(95,1) = %d inside the hysteresis band, want 1", got)
	}
	if got := c.Calculate(85, 1); got != 0 {
		t.Fatalf("Calculate(85,1) = %d below dist0-hysteresis, want 0", got)
	}
}

func TestNoFlappingAtExactThreshold(t *testing.T) {
	c := testController()
	lod := 0
	// Distances that oscillate right around dist0 should never toggle at
	// all: promotion needs dist0+hysteresis, which none of them reach.
	seq := []float32{100, 101, 99, 102, 98, 100}
	changes := 0
	for _, d := range seq {
		next := c.Calculate(d, lod)
		if next != lod {
			changes++
		}
		lod = next
	}
	if changes != 0 {
		t.Fatalf("LOD flapped %d times over a sequence hovering at the threshold, want 0", changes)
	}
}

func TestLOD2NeverPromotesFurther(t *testing.T) {
	c := testController()
	if got := c.Calculate(10000, 2); got != 2 {
		t.Fatalf("Calculate(10000,2) = %d, want 2 (LOD 2 is the coarsest level)", got)
	}
}

func TestLargeDistanceJumpCrossesBothThresholdsInOneCall(t *testing.T) {
	c := testController()
	if got := c.Calculate(10000, 0); got != 2 {
		t.Fatalf("Calculate(10000,0) = %d, want 2 (a single large jump must cross both thresholds)", got)
	}
	if got := c.Calculate(0, 2); got != 0 {
		t.Fatalf("Calculate(0,2) = %d, want 0 (a single large jump back must cross both thresholds)", got)
	}
}

func TestUnknownStartingLODSettlesFromAbsoluteDistance(t *testing.T) {
	c := testController()
	if got := c.Calculate(50, -1); got != 0 {
		t.Fatalf("Calculate(50,-1) = %d, want 0", got)
	}
	if got := c.Calculate(150, -1); got != 1 {
		t.Fatalf("Calculate(150,-1) = %d, want 1", got)
	}
	if got := c.Calculate(250, -1); got != 2 {
		t.Fatalf("Calculate(250,-1) = %d, want 2", got)
	}
}
