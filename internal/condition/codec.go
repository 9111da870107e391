package condition

import (
	"encoding/json"
	"fmt"
)

// wire forms. Field order here fixes the canonical serialization.
type numericWire struct {
	Operator Operator `json:"operator"`
	Value    *float64 `json:"value,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
}

type motionWire struct {
	Operator Operator `json:"operator"`
	Value    bool     `json:"value"`
}

// Encode serializes the condition to its canonical single-key JSON form.
// Encoding a raw condition returns the preserved buffer unchanged.
func Encode(c Condition) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.Kind == KindRaw {
		return append([]byte(nil), c.Raw...), nil
	}

	var payload interface{}
	switch c.Kind {
	case KindTemperature, KindHumidity, KindIllumination:
		w := numericWire{Operator: c.Numeric.Operator}
		if c.Numeric.Operator == OpRange {
			min, max := c.Numeric.Min, c.Numeric.Max
			w.Min, w.Max = &min, &max
		} else {
			v := c.Numeric.Value
			w.Value = &v
		}
		payload = w
	case KindMotion:
		payload = motionWire{Operator: OpEqual, Value: c.Motion.Value}
	case KindTime:
		payload = c.Time
	case KindWeek:
		payload = c.Week
	case KindDate:
		payload = c.Date
	}

	return json.Marshal(map[Kind]interface{}{c.Kind: payload})
}

// Decode parses a condition buffer into the typed model.
//
// A buffer that is not valid JSON is an error: the rule cannot be saved at
// all. Valid JSON that does not fit the typed model (unknown key, more than
// one predicate key, malformed sub-object) is not an error; it decodes to a
// raw-mode condition carrying the buffer verbatim, so hand-edited predicates
// survive a round trip even when the structured editor cannot represent them.
func Decode(buf []byte) (Condition, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(buf, &top); err != nil {
		return Condition{}, fmt.Errorf("condition is not a JSON object: %w", err)
	}

	if len(top) != 1 {
		return rawFallback(buf), nil
	}

	var key string
	var body json.RawMessage
	for k, v := range top {
		key, body = k, v
	}

	// Some panel paths historically said "light" for the illumination sensor
	if key == "light" {
		key = string(KindIllumination)
	}

	switch Kind(key) {
	case KindTemperature, KindHumidity, KindIllumination:
		var w numericWire
		if err := json.Unmarshal(body, &w); err != nil {
			return rawFallback(buf), nil
		}
		n := &Numeric{Operator: w.Operator}
		if w.Operator == OpRange {
			if w.Min == nil || w.Max == nil {
				return rawFallback(buf), nil
			}
			n.Min, n.Max = *w.Min, *w.Max
		} else {
			if w.Value == nil {
				return rawFallback(buf), nil
			}
			n.Value = *w.Value
		}
		c := Condition{Kind: Kind(key), Numeric: n}
		if c.Validate() != nil {
			return rawFallback(buf), nil
		}
		return c, nil

	case KindMotion:
		var w motionWire
		if err := json.Unmarshal(body, &w); err != nil || w.Operator != OpEqual {
			return rawFallback(buf), nil
		}
		return Condition{Kind: KindMotion, Motion: &Motion{Value: w.Value}}, nil

	case KindTime:
		var w TimeWindow
		if err := json.Unmarshal(body, &w); err != nil {
			return rawFallback(buf), nil
		}
		c := Condition{Kind: KindTime, Time: &w}
		if c.Validate() != nil {
			return rawFallback(buf), nil
		}
		return c, nil

	case KindWeek:
		var days []int
		if err := json.Unmarshal(body, &days); err != nil {
			return rawFallback(buf), nil
		}
		c := Condition{Kind: KindWeek, Week: days}
		if c.Validate() != nil {
			return rawFallback(buf), nil
		}
		return c, nil

	case KindDate:
		var w DateWindow
		if err := json.Unmarshal(body, &w); err != nil {
			return rawFallback(buf), nil
		}
		c := Condition{Kind: KindDate, Date: &w}
		if c.Validate() != nil {
			return rawFallback(buf), nil
		}
		return c, nil

	default:
		return rawFallback(buf), nil
	}
}

func rawFallback(buf []byte) Condition {
	return Condition{Kind: KindRaw, Raw: append(json.RawMessage(nil), buf...)}
}
