package pidctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_SeedsIntegralToMidRange covers the seeding invariant and property 4:
// interval=5... min=40, max=100, ki=2 -> integral=35, first call error=0 -> y=70.
func TestNew_SeedsIntegralToMidRange(t *testing.T) {
	c := New("asic", 5, 1.0, 2.0, 0.0, 40, 100, nil)
	require.Equal(t, 35.0, c.integral)

	y, terms := c.Compute(0)
	assert.Equal(t, 70.0, y)
	assert.Equal(t, 70.0, terms.SaturatedOutput)
	assert.False(t, terms.FrozenIntegral)
}

// TestNew_KIZeroSeedsZero resolves the KI=0 open question.
func TestNew_KIZeroSeedsZero(t *testing.T) {
	c := New("cpu", 5, 1.0, 0.0, 0.0, 40, 100, nil)
	assert.Equal(t, 0.0, c.integral)
}

// TestCompute_S1FirstTick: interval=5, Kp=1, Ki=0.1, Kd=2, limits[40,100], seed
// integral=700, error=+3 -> P=3, D=0, I=70, u=73, y=73, frozen=false.
func TestCompute_S1FirstTick(t *testing.T) {
	c := New("rail", 5, 1.0, 0.1, 2.0, 40, 100, nil)
	c.integral = 700 // override auto-seed to match the scenario's stated seed

	y, terms := c.Compute(3)
	assert.Equal(t, 3.0, terms.P)
	assert.Equal(t, 0.0, terms.D)
	assert.Equal(t, 70.0, terms.I)
	assert.Equal(t, 73.0, terms.RawOutput)
	assert.Equal(t, 73.0, y)
	assert.False(t, terms.FrozenIntegral)
}

// TestCompute_S2SaturationFreeze: after S1, repeated error=+50 enters
// saturation and freezes the integral unchanged from its pre-saturation value.
func TestCompute_S2SaturationFreeze(t *testing.T) {
	c := New("rail", 5, 1.0, 0.1, 2.0, 40, 100, nil)
	c.integral = 700
	c.Compute(3)

	preSaturationIntegral := c.integral
	_, terms := c.Compute(50)

	assert.True(t, terms.FrozenIntegral)
	assert.Equal(t, preSaturationIntegral, c.integral)
	assert.Equal(t, 100.0, terms.SaturatedOutput)
}

// TestCompute_S3UnwindPermitted: in saturation at y=100 with all gains
// positive, a sudden negative error must allow the integral to decrease.
func TestCompute_S3UnwindPermitted(t *testing.T) {
	c := New("rail", 5, 1.0, 1.0, 1.0, 40, 100, nil)
	// Start from an integral large enough that the unwinding step's raw output
	// (-10 + 150 - 12 = 128) stays above the floor; with the mid-range seed
	// (70) it would drop to -2, below min, and the integral would stay frozen.
	c.integral = 200
	// Drive into saturation first.
	c.Compute(50)
	c.Compute(50)
	saturatedIntegral := c.integral

	_, terms := c.Compute(-10)
	assert.False(t, terms.FrozenIntegral)
	assert.Less(t, c.integral, saturatedIntegral)
}

// TestCompute_OutputAlwaysClamped is universal property 1.
func TestCompute_OutputAlwaysClamped(t *testing.T) {
	c := New("asic", 1, 3.0, 0.5, 4.0, 30, 100, nil)
	errors := []float64{-1000, -5, 0, 5, 1000, 17, -300, 42}
	for _, e := range errors {
		y, terms := c.Compute(e)
		assert.GreaterOrEqual(t, y, 30.0)
		assert.LessOrEqual(t, y, 100.0)
		assert.GreaterOrEqual(t, terms.SaturatedOutput, 30.0)
		assert.LessOrEqual(t, terms.SaturatedOutput, 100.0)
	}
}

// TestCompute_FrozenIntegralIsBitEqual is universal property 2.
func TestCompute_FrozenIntegralIsBitEqual(t *testing.T) {
	c := New("asic", 2, 5.0, 5.0, 0.0, 30, 100, nil)
	c.Compute(50) // drive to saturation
	before := c.integral
	_, terms := c.Compute(50)
	require.True(t, terms.FrozenIntegral)
	assert.Equal(t, before, c.integral)
}

// TestCompute_ZeroErrorWindow is universal property 3: once first_run has
// passed, a window of zero errors yields output = KI * integral (D contributes 0).
func TestCompute_ZeroErrorWindow(t *testing.T) {
	c := New("asic", 4, 2.0, 0.5, 3.0, -1000, 1000, nil)
	c.Compute(0) // first run, establishes prevError=0

	y, terms := c.Compute(0)
	assert.Equal(t, 0.0, terms.D)
	assert.InDelta(t, c.ki*terms.I, y, 1e-9)
}

// TestCompute_FirstRunSkipsDerivative mirrors teacher's first-run coverage.
func TestCompute_FirstRunSkipsDerivative(t *testing.T) {
	c := New("cpu", 1, 1.0, 0.0, 5.0, 0, 100, nil)
	_, terms := c.Compute(10)
	assert.Equal(t, 0.0, terms.D)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-10, 0, 100))
	assert.Equal(t, 100.0, clamp(150, 0, 100))
	assert.Equal(t, 50.0, clamp(50, 0, 100))
}

func TestDomain(t *testing.T) {
	c := New("psu", 1, 1, 1, 1, 0, 100, nil)
	assert.Equal(t, "psu", c.Domain())
}
