// Package condition models the predicate attached to a scene rule.
//
// A condition carries exactly one predicate: a numeric comparison against a
// telemetry reading (temperature, humidity, illumination), a motion flag, or
// a time/week/date window. The wire form is a single-key JSON object; the
// backend evaluates it against live sensor readings.
package condition

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies which predicate a condition carries
type Kind string

const (
	KindTemperature  Kind = "temperature"
	KindHumidity     Kind = "humidity"
	KindIllumination Kind = "illumination"
	KindMotion       Kind = "motion"
	KindTime         Kind = "time"
	KindWeek         Kind = "week"
	KindDate         Kind = "date"

	// KindRaw marks a condition that could not be mapped onto the typed
	// model. The original buffer is preserved and sent verbatim.
	KindRaw Kind = "raw"
)

// Operator for numeric predicates
type Operator string

const (
	OpGreater Operator = "gt"
	OpLess    Operator = "lt"
	OpEqual   Operator = "eq"
	OpRange   Operator = "range"
)

// Numeric is a comparison against a sensor reading. With OpRange the Min/Max
// pair is set and Value is meaningless; with any other operator only Value is.
type Numeric struct {
	Operator Operator
	Value    float64
	Min      float64
	Max      float64
}

// Motion matches presence detection; the only supported operator is eq.
type Motion struct {
	Value bool
}

// TimeWindow is a daily interval, both ends formatted "15:04"
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DateWindow is a calendar interval, both ends formatted "2006-01-02"
type DateWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Condition is the typed rule predicate. Exactly one of the predicate fields
// matching Kind is populated.
type Condition struct {
	Kind    Kind
	Numeric *Numeric
	Motion  *Motion
	Time    *TimeWindow
	Week    []int
	Date    *DateWindow

	// Raw holds the original buffer when Kind is KindRaw
	Raw json.RawMessage
}

// IsRaw reports whether the condition could not be mapped onto the typed model
func (c Condition) IsRaw() bool {
	return c.Kind == KindRaw
}

// Validate checks the condition against the closed predicate vocabulary.
// Raw conditions validate as long as they hold syntactically valid JSON;
// their semantics are the backend's problem.
func (c Condition) Validate() error {
	switch c.Kind {
	case KindTemperature, KindHumidity, KindIllumination:
		if c.Numeric == nil {
			return fmt.Errorf("%s condition missing comparison", c.Kind)
		}
		return c.Numeric.validate()
	case KindMotion:
		if c.Motion == nil {
			return fmt.Errorf("motion condition missing value")
		}
		return nil
	case KindTime:
		if c.Time == nil {
			return fmt.Errorf("time condition missing window")
		}
		return validateClock(c.Time.Start, c.Time.End)
	case KindWeek:
		if len(c.Week) == 0 {
			return fmt.Errorf("week condition has no days")
		}
		for _, d := range c.Week {
			if d < 0 || d > 6 {
				return fmt.Errorf("week day %d out of range 0..6", d)
			}
		}
		return nil
	case KindDate:
		if c.Date == nil {
			return fmt.Errorf("date condition missing window")
		}
		return validateDates(c.Date.Start, c.Date.End)
	case KindRaw:
		if !json.Valid(c.Raw) {
			return fmt.Errorf("raw condition is not valid JSON")
		}
		return nil
	default:
		return fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}

func (n *Numeric) validate() error {
	switch n.Operator {
	case OpGreater, OpLess, OpEqual:
		return nil
	case OpRange:
		if n.Min > n.Max {
			return fmt.Errorf("range min %v greater than max %v", n.Min, n.Max)
		}
		return nil
	default:
		return fmt.Errorf("unknown operator %q", n.Operator)
	}
}

func validateClock(start, end string) error {
	for _, s := range []string{start, end} {
		if _, err := time.Parse("15:04", s); err != nil {
			return fmt.Errorf("bad time %q: want HH:MM", s)
		}
	}
	return nil
}

func validateDates(start, end string) error {
	for _, s := range []string{start, end} {
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return fmt.Errorf("bad date %q: want YYYY-MM-DD", s)
		}
	}
	return nil
}
