package panel

import (
	"context"
	"encoding/json"
	"fmt"

	"homepanel/internal/cache"
	"homepanel/internal/condition"
	"homepanel/internal/gateway"
	"homepanel/internal/log"
)

// Rules fetches rules from the backend; sceneID "" means all scenes
func (s *Service) Rules(ctx context.Context, sceneID string) ([]gateway.Rule, error) {
	return s.gw.Rules(ctx, sceneID)
}

// CreateRule validates the condition buffer and stores the rule. The buffer
// is normalized to the canonical serialization when it fits the typed model
// and sent verbatim when it doesn't.
func (s *Service) CreateRule(ctx context.Context, rule gateway.Rule) (*gateway.Rule, error) {
	normalized, err := normalizeCondition(rule.Condition)
	if err != nil {
		return nil, err
	}
	rule.Condition = normalized

	created, err := s.gw.CreateRule(ctx, rule)
	if err != nil {
		return nil, err
	}
	s.db.LogEvent(cache.EventSourceUser, cache.EventTypeRuleChange,
		"rule created", map[string]interface{}{"rule_id": created.ID, "scene_id": created.SceneID})
	return created, nil
}

// DeleteRule removes a rule
func (s *Service) DeleteRule(ctx context.Context, ruleID string) error {
	return s.gw.DeleteRule(ctx, ruleID)
}

// RuleSave is one rule's pending edits in a batch save. Nil fields are
// untouched; Condition nil means the buffer was not edited.
type RuleSave struct {
	RuleID    string          `json:"rule_id"`
	Priority  *int            `json:"priority,omitempty"`
	Enabled   *int            `json:"enabled,omitempty"`
	Condition json.RawMessage `json:"condition,omitempty"`
}

// RuleSaveResult reports one rule's outcome in a batch save
type RuleSaveResult struct {
	RuleID string `json:"rule_id"`
	Saved  bool   `json:"saved"`
	Error  string `json:"error,omitempty"`
}

// SaveRules applies a batch of rule edits. Each rule stands alone: a
// malformed condition buffer or a failed patch blocks only that rule, and
// the rest of the batch still goes through. Results come back in input
// order.
func (s *Service) SaveRules(ctx context.Context, saves []RuleSave) []RuleSaveResult {
	results := make([]RuleSaveResult, 0, len(saves))

	for _, save := range saves {
		if err := s.saveRule(ctx, save); err != nil {
			log.Debug("Rule %s save failed: %v", save.RuleID, err)
			results = append(results, RuleSaveResult{RuleID: save.RuleID, Error: err.Error()})
			continue
		}
		results = append(results, RuleSaveResult{RuleID: save.RuleID, Saved: true})
	}

	s.db.LogEvent(cache.EventSourceUser, cache.EventTypeRuleChange,
		fmt.Sprintf("saved %d rule edits", len(saves)), results)
	return results
}

func (s *Service) saveRule(ctx context.Context, save RuleSave) error {
	// Validate the condition before touching the network so a bad buffer
	// costs nothing
	var normalized json.RawMessage
	if save.Condition != nil {
		var err error
		normalized, err = normalizeCondition(save.Condition)
		if err != nil {
			return err
		}
	}

	if save.Priority != nil {
		if err := s.gw.UpdateRuleField(ctx, save.RuleID, "priority", *save.Priority); err != nil {
			return err
		}
	}
	if save.Enabled != nil {
		if err := s.gw.UpdateRuleField(ctx, save.RuleID, "enabled", *save.Enabled); err != nil {
			return err
		}
	}
	if normalized != nil {
		if err := s.gw.UpdateRuleField(ctx, save.RuleID, "condition", normalized); err != nil {
			return err
		}
	}
	return nil
}

// normalizeCondition runs a buffer through the condition codec: syntactically
// invalid JSON is a validation error, anything else round-trips (canonical
// form for typed predicates, verbatim for raw ones).
func normalizeCondition(buf json.RawMessage) (json.RawMessage, error) {
	cond, err := condition.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("invalid condition: %w", err)
	}
	out, err := condition.Encode(cond)
	if err != nil {
		return nil, fmt.Errorf("invalid condition: %w", err)
	}
	return out, nil
}
