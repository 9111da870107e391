package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"homepanel/internal/registry"
)

// Application-level result codes returned inside the response envelope.
// These are distinct from HTTP status codes; the backend answers 200 OK on
// the transport and reports the domain outcome in-band.
const (
	CodeSuccess            = 200
	CodeRegistered         = 202
	CodeLoggedIn           = 203
	CodeSceneDisabled      = 501
	CodeMissingCredentials = 503
	CodeBadCredentials     = 504
)

// Envelope is the backend's uniform response wrapper
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// APIError is an in-band application error: the request reached the backend
// and the backend answered with a non-success code. Transport failures are
// plain wrapped errors, never APIErrors.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Code, e.Msg)
}

// IsCode reports whether err is an APIError carrying the given code
func IsCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Device is a device snapshot as the backend reports it. Type-specific
// attributes are flattened into the same JSON object as the fixed fields.
type Device struct {
	Type  registry.DeviceType
	Name  string
	Power string
	Attrs map[string]interface{}
}

// PowerOn reports whether the device is switched on
func (d Device) PowerOn() bool {
	return d.Power == "on"
}

// NumericAttr returns a type-specific numeric attribute
func (d Device) NumericAttr(name string) (float64, bool) {
	v, ok := d.Attrs[name].(float64)
	return v, ok
}

// StringAttr returns a type-specific string attribute
func (d Device) StringAttr(name string) (string, bool) {
	v, ok := d.Attrs[name].(string)
	return v, ok
}

// MarshalJSON flattens the device back into the backend's wire shape
func (d Device) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Attrs)+3)
	for k, v := range d.Attrs {
		out[k] = v
	}
	out["type"] = d.Type
	out["name"] = d.Name
	out["power"] = d.Power
	return json.Marshal(out)
}

// UnmarshalJSON splits the fixed fields from the type-specific attributes
func (d *Device) UnmarshalJSON(data []byte) error {
	raw := make(map[string]interface{})
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if t, ok := raw["type"].(string); ok {
		d.Type = registry.DeviceType(t)
	}
	d.Name, _ = raw["name"].(string)
	d.Power, _ = raw["power"].(string)
	delete(raw, "type")
	delete(raw, "name")
	delete(raw, "power")
	d.Attrs = raw
	return nil
}

// Scene is a named target configuration for a subset of devices
type Scene struct {
	ID       string                         `json:"scene_id"`
	Name     string                         `json:"name"`
	Priority int                            `json:"priority"`
	Enabled  int                            `json:"enabled"`
	Config   map[registry.DeviceType]Device `json:"config"`
	Creator  string                         `json:"creator"`
}

// IsEnabled reports whether the scene may be auto-selected by rules
func (s Scene) IsEnabled() bool {
	return s.Enabled == 1
}

// Rule attaches a condition to a scene for automatic activation
type Rule struct {
	ID        string          `json:"rule_id"`
	SceneID   string          `json:"scene_id"`
	Priority  int             `json:"priority"`
	Enabled   int             `json:"enabled"`
	Condition json.RawMessage `json:"condition"`
}

// Recommendation is an AI-suggested scene with its rationale. Read-only;
// accepting one means activating its underlying scene.
type Recommendation struct {
	Source      string          `json:"source"`
	SceneID     string          `json:"scene_id"`
	SceneName   string          `json:"scene_name"`
	Reason      string          `json:"reason"`
	SceneConfig json.RawMessage `json:"scene_config"`
}
