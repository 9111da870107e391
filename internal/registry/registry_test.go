package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeOf(t *testing.T) {
	r, ok := RangeOf(TypeConditioner, "temperature")
	require.True(t, ok)
	assert.Equal(t, 16.0, r.Min)
	assert.Equal(t, 30.0, r.Max)
	assert.Equal(t, "°C", r.Unit)

	_, ok = RangeOf(TypeConditioner, "brightness")
	assert.False(t, ok)

	_, ok = RangeOf(DeviceType("toaster"), "temperature")
	assert.False(t, ok)
}

func TestDiscreteOptionsOf(t *testing.T) {
	opts := DiscreteOptionsOf(TypeConditioner, "mode")
	assert.Equal(t, []string{"auto", "cool", "heat", "dry", "fan"}, opts)

	assert.Nil(t, DiscreteOptionsOf(TypeLamp, "mode"))
	assert.Nil(t, DiscreteOptionsOf(TypeConditioner, "color"))
}

func TestDiscreteFieldsOf(t *testing.T) {
	assert.Equal(t, []string{"mode", "fan_speed"}, DiscreteFieldsOf(TypeConditioner))
	assert.Equal(t, []string{"mode"}, DiscreteFieldsOf(TypeDehumidifier))
	assert.Nil(t, DiscreteFieldsOf(TypeLamp))
	assert.Nil(t, DiscreteFieldsOf(TypeCurtain))
}

func TestEveryDiscreteFieldHasOptions(t *testing.T) {
	for _, typ := range Types() {
		for _, field := range DiscreteFieldsOf(typ) {
			assert.NotEmpty(t, DiscreteOptionsOf(typ, field),
				"%s.%s listed without options", typ, field)
		}
	}
}

func TestClamp(t *testing.T) {
	r := Range{Min: 16, Max: 30, Step: 1}

	assert.Equal(t, 16.0, Clamp(r, 5))
	assert.Equal(t, 30.0, Clamp(r, 99))
	assert.Equal(t, 22.0, Clamp(r, 22))
}

func TestStep(t *testing.T) {
	testCases := []struct {
		name        string
		r           Range
		current     float64
		dir         Direction
		expected    float64
		expectMoved bool
	}{
		{"increase mid-range", Range{Min: 0, Max: 1000, Step: 100}, 500, Increase, 600, true},
		{"decrease mid-range", Range{Min: 0, Max: 1000, Step: 100}, 500, Decrease, 400, true},
		{"increase at max is a no-op", Range{Min: 0, Max: 1000, Step: 100}, 1000, Increase, 1000, false},
		{"decrease at min is a no-op", Range{Min: 0, Max: 1000, Step: 100}, 0, Decrease, 0, false},
		{"increase near max clamps", Range{Min: 0, Max: 1000, Step: 100}, 950, Increase, 1000, true},
		{"out-of-range current is clamped first", Range{Min: 16, Max: 30, Step: 1}, 99, Increase, 30, false},
		{"below-range current steps from min", Range{Min: 16, Max: 30, Step: 1}, 3, Increase, 17, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, moved := Step(tc.r, tc.current, tc.dir)
			assert.Equal(t, tc.expected, got)
			assert.Equal(t, tc.expectMoved, moved)
		})
	}
}

// Stepping from any in-range start never escapes the range.
func TestStepNeverLeavesRange(t *testing.T) {
	for _, dt := range Types() {
		for name, r := range AttributesOf(dt) {
			for v := r.Min; v <= r.Max; v += r.Step {
				for _, dir := range []Direction{Increase, Decrease} {
					got, _ := Step(r, v, dir)
					assert.GreaterOrEqual(t, got, r.Min, "%s.%s", dt, name)
					assert.LessOrEqual(t, got, r.Max, "%s.%s", dt, name)
				}
			}
		}
	}
}
