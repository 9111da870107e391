package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCanonicalForms(t *testing.T) {
	testCases := []struct {
		name     string
		cond     Condition
		expected string
	}{
		{
			"numeric gt",
			Condition{Kind: KindTemperature, Numeric: &Numeric{Operator: OpGreater, Value: 26}},
			`{"temperature":{"operator":"gt","value":26}}`,
		},
		{
			"numeric range carries min/max, never a value",
			Condition{Kind: KindHumidity, Numeric: &Numeric{Operator: OpRange, Min: 40, Max: 60}},
			`{"humidity":{"operator":"range","min":40,"max":60}}`,
		},
		{
			"motion",
			Condition{Kind: KindMotion, Motion: &Motion{Value: true}},
			`{"motion":{"operator":"eq","value":true}}`,
		},
		{
			"time window",
			Condition{Kind: KindTime, Time: &TimeWindow{Start: "08:00", End: "22:30"}},
			`{"time":{"start":"08:00","end":"22:30"}}`,
		},
		{
			"week days",
			Condition{Kind: KindWeek, Week: []int{0, 5, 6}},
			`{"week":[0,5,6]}`,
		},
		{
			"date window",
			Condition{Kind: KindDate, Date: &DateWindow{Start: "2026-06-01", End: "2026-08-31"}},
			`{"date":{"start":"2026-06-01","end":"2026-08-31"}}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := Encode(tc.cond)
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, string(buf))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	conds := []Condition{
		{Kind: KindTemperature, Numeric: &Numeric{Operator: OpLess, Value: 18}},
		{Kind: KindIllumination, Numeric: &Numeric{Operator: OpRange, Min: 100, Max: 500}},
		{Kind: KindMotion, Motion: &Motion{Value: false}},
		{Kind: KindTime, Time: &TimeWindow{Start: "00:00", End: "06:00"}},
		{Kind: KindWeek, Week: []int{1, 2, 3, 4, 5}},
		{Kind: KindDate, Date: &DateWindow{Start: "2026-01-01", End: "2026-12-31"}},
	}

	for _, c := range conds {
		first, err := Encode(c)
		require.NoError(t, err)

		decoded, err := Decode(first)
		require.NoError(t, err)
		assert.Equal(t, c.Kind, decoded.Kind)

		second, err := Encode(decoded)
		require.NoError(t, err)
		assert.JSONEq(t, string(first), string(second))
	}
}

func TestDecodeLightAlias(t *testing.T) {
	c, err := Decode([]byte(`{"light":{"operator":"gt","value":300}}`))
	require.NoError(t, err)
	assert.Equal(t, KindIllumination, c.Kind)

	// Re-encoding normalizes the alias away
	buf, err := Encode(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"illumination":{"operator":"gt","value":300}}`, string(buf))
}

func TestDecodeInvalidJSONIsAnError(t *testing.T) {
	_, err := Decode([]byte(`{"temperature":`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json at all`))
	assert.Error(t, err)
}

func TestDecodeFallsBackToRaw(t *testing.T) {
	testCases := []struct {
		name string
		buf  string
	}{
		{"multiple predicate keys", `{"temperature":{"operator":"gt","value":26},"week":[0]}`},
		{"unknown predicate key", `{"pressure":{"operator":"gt","value":1000}}`},
		{"range without bounds", `{"temperature":{"operator":"range","value":20}}`},
		{"unknown operator", `{"humidity":{"operator":"near","value":50}}`},
		{"bad week day", `{"week":[0,9]}`},
		{"bad clock format", `{"time":{"start":"8am","end":"22:00"}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Decode([]byte(tc.buf))
			require.NoError(t, err)
			assert.True(t, c.IsRaw())

			// Raw mode preserves the buffer byte for byte
			buf, err := Encode(c)
			require.NoError(t, err)
			assert.Equal(t, tc.buf, string(buf))
		})
	}
}

func TestValidate(t *testing.T) {
	bad := []Condition{
		{Kind: KindTemperature},
		{Kind: KindTemperature, Numeric: &Numeric{Operator: "between"}},
		{Kind: KindHumidity, Numeric: &Numeric{Operator: OpRange, Min: 70, Max: 30}},
		{Kind: KindWeek, Week: []int{7}},
		{Kind: KindWeek},
		{Kind: KindDate, Date: &DateWindow{Start: "June 1", End: "2026-08-31"}},
		{Kind: KindRaw, Raw: []byte(`{`)},
		{Kind: Kind("pressure")},
	}
	for _, c := range bad {
		assert.Error(t, c.Validate(), "%+v", c)
	}

	good := Condition{Kind: KindWeek, Week: []int{0, 6}}
	assert.NoError(t, good.Validate())
}
