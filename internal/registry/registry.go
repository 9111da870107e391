package registry

// DeviceType identifies a controllable device family
type DeviceType string

const (
	TypeConditioner  DeviceType = "conditioner"
	TypeLamp         DeviceType = "lamp"
	TypeDehumidifier DeviceType = "dehumidifier"
	TypeCurtain      DeviceType = "curtain"
)

// Types returns all known device types in display order
func Types() []DeviceType {
	return []DeviceType{TypeConditioner, TypeLamp, TypeDehumidifier, TypeCurtain}
}

// Known reports whether t is a registered device type
func Known(t DeviceType) bool {
	_, ok := attributes[t]
	return ok
}

// Direction of a relative adjustment
type Direction int

const (
	Decrease Direction = -1
	Increase Direction = 1
)

// Range describes the legal values of a numeric device attribute
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
	Unit string  `json:"unit"`
}

// attributes maps device type -> numeric attribute -> range.
// This is the single table the rest of the panel renders controls from.
var attributes = map[DeviceType]map[string]Range{
	TypeConditioner: {
		"temperature": {Min: 16, Max: 30, Step: 1, Unit: "°C"},
	},
	TypeLamp: {
		"brightness":        {Min: 0, Max: 1000, Step: 100, Unit: "lm"},
		"color_temperature": {Min: 2700, Max: 6500, Step: 100, Unit: "K"},
	},
	TypeDehumidifier: {
		"target_humidity": {Min: 30, Max: 80, Step: 5, Unit: "%"},
	},
	TypeCurtain: {
		"position": {Min: 0, Max: 100, Step: 10, Unit: "%"},
	},
}

// discrete maps device type -> field -> ordered option tokens
var discrete = map[DeviceType]map[string][]string{
	TypeConditioner: {
		"mode":      {"auto", "cool", "heat", "dry", "fan"},
		"fan_speed": {"low", "medium", "high"},
	},
	TypeDehumidifier: {
		"mode": {"auto", "continuous", "sleep"},
	},
}

// discreteFields lists each type's enumerated fields in display order
var discreteFields = map[DeviceType][]string{
	TypeConditioner:  {"mode", "fan_speed"},
	TypeDehumidifier: {"mode"},
}

// RangeOf returns the legal range for a numeric attribute of a device type
func RangeOf(t DeviceType, attribute string) (Range, bool) {
	attrs, ok := attributes[t]
	if !ok {
		return Range{}, false
	}
	r, ok := attrs[attribute]
	return r, ok
}

// AttributesOf returns all numeric attributes of a device type
func AttributesOf(t DeviceType) map[string]Range {
	attrs, ok := attributes[t]
	if !ok {
		return nil
	}
	out := make(map[string]Range, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// DiscreteFieldsOf returns the enumerated field names of a device type in
// display order, or nil if the type has none
func DiscreteFieldsOf(t DeviceType) []string {
	fields, ok := discreteFields[t]
	if !ok {
		return nil
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// DiscreteOptionsOf returns the ordered option tokens for an enumerated field,
// or nil if the field is not enumerated for this type
func DiscreteOptionsOf(t DeviceType, field string) []string {
	fields, ok := discrete[t]
	if !ok {
		return nil
	}
	opts, ok := fields[field]
	if !ok {
		return nil
	}
	out := make([]string, len(opts))
	copy(out, opts)
	return out
}

// Clamp forces v into [r.Min, r.Max]
func Clamp(r Range, v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Step applies one relative adjustment step to current and clamps the result.
// The second return value reports whether the value actually changed;
// decreasing at the minimum or increasing at the maximum is a no-op so
// callers can skip the write entirely.
func Step(r Range, current float64, dir Direction) (float64, bool) {
	base := Clamp(r, current)
	next := Clamp(r, base+float64(dir)*r.Step)
	return next, next != base
}
