// Package panel ties the remote gateway, the local cache and the device
// registry together. All reconciliation lives here: mirrors are overwritten
// after every successful mutation, and the active scene is only ever what
// the last environment snapshot said it was.
package panel

import (
	"context"
	"errors"
	"fmt"

	"homepanel/internal/cache"
	"homepanel/internal/gateway"
	"homepanel/internal/log"
	"homepanel/internal/registry"
)

var (
	ErrUnknownDevice    = errors.New("device not present in local state")
	ErrUnknownAttribute = errors.New("attribute not defined for device type")
	ErrSceneNotFound    = errors.New("scene no longer exists")
	ErrSceneDisabled    = errors.New("scene is disabled")
)

// Service is the panel's application core
type Service struct {
	gw *gateway.Client
	db *cache.DB
}

// New creates a panel service
func New(gw *gateway.Client, db *cache.DB) *Service {
	return &Service{gw: gw, db: db}
}

// Cache returns the local cache
func (s *Service) Cache() *cache.DB {
	return s.db
}

// --- Session ---

// Login authenticates and persists the session username, then primes the
// mirrors. Priming is best effort; a failed prime does not fail the login.
func (s *Service) Login(ctx context.Context, username, password string) error {
	if err := s.gw.Login(ctx, username, password); err != nil {
		return err
	}
	if err := s.db.SetUsername(username); err != nil {
		log.Warn("Failed to persist session username: %v", err)
	}

	if _, err := s.RefreshDevices(ctx); err != nil {
		log.Debug("Device prime after login failed: %v", err)
	}
	if _, err := s.RefreshScenes(ctx); err != nil {
		log.Debug("Scene prime after login failed: %v", err)
	}
	return nil
}

// Register creates a new account
func (s *Service) Register(ctx context.Context, username, password string) error {
	return s.gw.Register(ctx, username, password)
}

// Logout drops the session and the persisted username. Mirrors stay; they
// are caches and harmless.
func (s *Service) Logout() error {
	if err := s.gw.Logout(); err != nil {
		return err
	}
	return s.db.ClearUsername()
}

// Username returns the logged-in user, preferring the live session and
// falling back to the persisted one
func (s *Service) Username() string {
	if u := s.gw.Session().Username(); u != "" {
		return u
	}
	return s.db.Username()
}

// --- Devices ---

// RefreshDevices fetches the device snapshot and overwrites the mirror
func (s *Service) RefreshDevices(ctx context.Context) ([]gateway.Device, error) {
	devices, err := s.gw.Devices(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.db.SaveDevices(devices); err != nil {
		log.Warn("Failed to mirror device state: %v", err)
	}
	return devices, nil
}

// Devices returns the mirrored device list without a network round trip
func (s *Service) Devices() ([]gateway.Device, error) {
	return s.db.Devices()
}

// SetDevice writes a partial device state. Numeric attributes are clamped
// into their registry range first so an out-of-range value can never reach
// the backend. The mirror is re-fetched afterwards.
func (s *Service) SetDevice(ctx context.Context, name string, state map[string]interface{}) error {
	dev, err := s.db.Device(name)
	if err != nil {
		return err
	}

	if dev != nil {
		for attr, v := range state {
			num, isNum := v.(float64)
			if !isNum {
				continue
			}
			if r, ok := registry.RangeOf(dev.Type, attr); ok {
				state[attr] = registry.Clamp(r, num)
			}
		}
	}

	if err := s.gw.SetDeviceState(ctx, name, state); err != nil {
		return err
	}

	s.db.LogEvent(cache.EventSourceUser, cache.EventTypeDeviceChange,
		fmt.Sprintf("updated %s", name), map[string]interface{}{"device": name, "state": state})

	if _, err := s.RefreshDevices(ctx); err != nil {
		log.Warn("Device re-fetch after write failed: %v", err)
	}
	return nil
}

// AdjustDevice applies one relative step to a numeric attribute. The
// baseline is the mirrored value, falling back to the range minimum when
// nothing is cached. A powered-off device and a step that would leave the
// range are both no-ops: the value is unchanged and no network call is made.
func (s *Service) AdjustDevice(ctx context.Context, name, attribute string, dir registry.Direction) (float64, bool, error) {
	dev, err := s.db.Device(name)
	if err != nil {
		return 0, false, err
	}
	if dev == nil {
		return 0, false, ErrUnknownDevice
	}

	r, ok := registry.RangeOf(dev.Type, attribute)
	if !ok {
		return 0, false, ErrUnknownAttribute
	}

	current, ok := dev.NumericAttr(attribute)
	if !ok {
		current = r.Min
	}

	if !dev.PowerOn() {
		return current, false, nil
	}

	next, changed := registry.Step(r, current, dir)
	if !changed {
		return current, false, nil
	}

	if err := s.SetDevice(ctx, name, map[string]interface{}{attribute: next}); err != nil {
		return current, false, err
	}
	return next, true, nil
}

// SetDevicePower switches a device on or off
func (s *Service) SetDevicePower(ctx context.Context, name string, on bool) error {
	power := "off"
	if on {
		power = "on"
	}
	return s.SetDevice(ctx, name, map[string]interface{}{"power": power})
}

// --- Scenes ---

// RefreshScenes fetches the scene list and overwrites the mirror
func (s *Service) RefreshScenes(ctx context.Context) ([]gateway.Scene, error) {
	scenes, err := s.gw.Scenes(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.db.SaveScenes(scenes); err != nil {
		log.Warn("Failed to mirror scene list: %v", err)
	}
	return scenes, nil
}

// Scenes returns the mirrored scene list
func (s *Service) Scenes() ([]gateway.Scene, error) {
	return s.db.Scenes()
}

// CreateScene stores a new scene and refreshes the mirror
func (s *Service) CreateScene(ctx context.Context, scene gateway.Scene) (*gateway.Scene, error) {
	created, err := s.gw.CreateScene(ctx, scene)
	if err != nil {
		return nil, err
	}
	s.db.LogEvent(cache.EventSourceUser, cache.EventTypeSceneChange,
		fmt.Sprintf("created scene %s", created.Name), map[string]interface{}{"scene_id": created.ID})
	if _, err := s.RefreshScenes(ctx); err != nil {
		log.Warn("Scene re-fetch after create failed: %v", err)
	}
	return created, nil
}

// UpdateSceneField patches one scene field and refreshes the mirror
func (s *Service) UpdateSceneField(ctx context.Context, sceneID, field string, value interface{}) error {
	if err := s.gw.UpdateSceneField(ctx, sceneID, field, value); err != nil {
		return err
	}
	if _, err := s.RefreshScenes(ctx); err != nil {
		log.Warn("Scene re-fetch after patch failed: %v", err)
	}
	return nil
}

// DeleteScene moves a scene to the recycle bin and refreshes the mirror
func (s *Service) DeleteScene(ctx context.Context, sceneID string) error {
	if err := s.gw.DeleteScene(ctx, sceneID); err != nil {
		return err
	}
	s.db.LogEvent(cache.EventSourceUser, cache.EventTypeSceneChange,
		"scene moved to recycle bin", map[string]interface{}{"scene_id": sceneID})
	if _, err := s.RefreshScenes(ctx); err != nil {
		log.Warn("Scene re-fetch after delete failed: %v", err)
	}
	return nil
}

// --- Recycle bin ---

// RecycleBin lists deleted scenes
func (s *Service) RecycleBin(ctx context.Context) ([]gateway.Scene, error) {
	return s.gw.RecycleBin(ctx)
}

// RecoverScene restores a deleted scene and refreshes the mirror
func (s *Service) RecoverScene(ctx context.Context, sceneID string) error {
	if err := s.gw.RecoverScene(ctx, sceneID); err != nil {
		return err
	}
	if _, err := s.RefreshScenes(ctx); err != nil {
		log.Warn("Scene re-fetch after recover failed: %v", err)
	}
	return nil
}

// ClearRecycleBin discards all deleted scenes permanently
func (s *Service) ClearRecycleBin(ctx context.Context) error {
	return s.gw.ClearRecycleBin(ctx)
}
