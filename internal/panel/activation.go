package panel

import (
	"context"
	"fmt"

	"homepanel/internal/cache"
	"homepanel/internal/gateway"
)

// ActiveSceneID returns the id of the currently active scene, or "" when no
// scene is active. The only authority on this is the last environment
// snapshot pushed over the realtime channel; the panel never assumes an
// activation took effect until the backend says so.
func (s *Service) ActiveSceneID() string {
	snap, err := s.db.Snapshot()
	if err != nil || snap == nil {
		return ""
	}
	return snap.Active
}

// SceneView is a scene plus its activation state for rendering
type SceneView struct {
	gateway.Scene
	Active bool `json:"active"`
}

// SceneViews returns the mirrored scenes with exactly the one matching the
// last snapshot's active id flagged
func (s *Service) SceneViews() ([]SceneView, error) {
	scenes, err := s.db.Scenes()
	if err != nil {
		return nil, err
	}
	active := s.ActiveSceneID()

	views := make([]SceneView, 0, len(scenes))
	for _, sc := range scenes {
		views = append(views, SceneView{Scene: sc, Active: active != "" && sc.ID == active})
	}
	return views, nil
}

// Activate asks the backend to make the scene active. Activating the scene
// that is already active is a no-op. A backend rejection (disabled scene)
// comes back as the gateway's error and changes nothing locally; the scene
// only renders active once a snapshot confirms it.
func (s *Service) Activate(ctx context.Context, sceneID string) error {
	if s.ActiveSceneID() == sceneID {
		return nil
	}

	if err := s.gw.ActivateScene(ctx, sceneID); err != nil {
		s.db.LogEvent(cache.EventSourceBackend, cache.EventTypeError,
			fmt.Sprintf("activation of %s rejected", sceneID), map[string]interface{}{"error": err.Error()})
		return err
	}

	s.db.LogEvent(cache.EventSourceUser, cache.EventTypeSceneActivation,
		"scene activated", map[string]interface{}{"scene_id": sceneID})
	return nil
}

// Deactivate clears the active scene. Deactivating when nothing is active
// is a no-op.
func (s *Service) Deactivate(ctx context.Context) error {
	if s.ActiveSceneID() == "" {
		return nil
	}

	if err := s.gw.DeactivateScene(ctx); err != nil {
		return err
	}

	s.db.LogEvent(cache.EventSourceUser, cache.EventTypeSceneActivation, "scene deactivated", nil)
	return nil
}

// Recommendations fetches the AI-sourced scene suggestions
func (s *Service) Recommendations(ctx context.Context) ([]gateway.Recommendation, error) {
	return s.gw.Recommendations(ctx)
}

// AcceptRecommendation activates the scene behind a recommendation. The
// recommendation may be stale, so the scene is re-validated against a fresh
// scene list first instead of relying on the backend to reject it.
func (s *Service) AcceptRecommendation(ctx context.Context, sceneID string) error {
	scenes, err := s.RefreshScenes(ctx)
	if err != nil {
		return err
	}

	var target *gateway.Scene
	for i := range scenes {
		if scenes[i].ID == sceneID {
			target = &scenes[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("recommended scene %s: %w", sceneID, ErrSceneNotFound)
	}
	if !target.IsEnabled() {
		return fmt.Errorf("recommended scene %s: %w", sceneID, ErrSceneDisabled)
	}

	return s.Activate(ctx, sceneID)
}

// DiscardRecommendation drops a recommendation without acting on it. The
// backend keeps no per-user recommendation state, so the choice is only
// recorded locally.
func (s *Service) DiscardRecommendation(sceneID string) {
	s.db.LogEvent(cache.EventSourceUser, cache.EventTypeInfo,
		"recommendation discarded", map[string]interface{}{"scene_id": sceneID})
}
