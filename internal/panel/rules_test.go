package panel

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homepanel/internal/gateway"
)

func intPtr(i int) *int { return &i }

func TestSaveRulesBatchIsolation(t *testing.T) {
	s, fb := newTestService(t)

	saves := []RuleSave{
		{RuleID: "r1", Condition: json.RawMessage(`{"temperature":{"operator":"gt","value":26}}`)},
		{RuleID: "r2", Condition: json.RawMessage(`{"temperature":`)}, // malformed
		{RuleID: "r3", Enabled: intPtr(0), Condition: json.RawMessage(`{"week":[0,6]}`)},
	}

	results := s.SaveRules(context.Background(), saves)
	require.Len(t, results, 3)

	assert.True(t, results[0].Saved)
	assert.Empty(t, results[0].Error)

	assert.False(t, results[1].Saved)
	assert.Contains(t, results[1].Error, "invalid condition")

	assert.True(t, results[2].Saved, "a malformed sibling must not block this rule")

	// Only the two valid rules reached the backend
	patches := fb.calls(gateway.RuleFieldPath)
	var ids []string
	for _, p := range patches {
		ids = append(ids, p.Body["rule_id"].(string))
	}
	assert.NotContains(t, ids, "r2")
	assert.Contains(t, ids, "r1")
	assert.Contains(t, ids, "r3")
}

func TestSaveRulesNormalizesConditionBuffer(t *testing.T) {
	s, fb := newTestService(t)

	// "light" is the legacy alias for illumination
	results := s.SaveRules(context.Background(), []RuleSave{
		{RuleID: "r1", Condition: json.RawMessage(`{"light":{"operator":"lt","value":100}}`)},
	})
	require.Len(t, results, 1)
	require.True(t, results[0].Saved)

	patches := fb.calls(gateway.RuleFieldPath)
	require.Len(t, patches, 1)
	assert.Equal(t, "condition", patches[0].Body["field"])

	value, err := json.Marshal(patches[0].Body["value"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"illumination":{"operator":"lt","value":100}}`, string(value))
}

func TestSaveRulesHandEditedBufferPassesVerbatim(t *testing.T) {
	s, fb := newTestService(t)

	// Valid JSON the typed editor can't represent still saves, untouched
	raw := `{"temperature":{"operator":"gt","value":26},"week":[0]}`
	results := s.SaveRules(context.Background(), []RuleSave{
		{RuleID: "r1", Condition: json.RawMessage(raw)},
	})
	require.True(t, results[0].Saved)

	patches := fb.calls(gateway.RuleFieldPath)
	require.Len(t, patches, 1)
	value, err := json.Marshal(patches[0].Body["value"])
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(value))
}

func TestSaveRulesFieldOnlyEdit(t *testing.T) {
	s, fb := newTestService(t)

	results := s.SaveRules(context.Background(), []RuleSave{
		{RuleID: "r1", Priority: intPtr(5)},
	})
	require.True(t, results[0].Saved)

	patches := fb.calls(gateway.RuleFieldPath)
	require.Len(t, patches, 1)
	assert.Equal(t, "priority", patches[0].Body["field"])
	assert.Equal(t, 5.0, patches[0].Body["value"])
}

func TestSaveRulesBackendRejectionIsPerRule(t *testing.T) {
	s, fb := newTestService(t)
	fb.respond(gateway.RuleFieldPath, 500, "rule not found", nil)

	results := s.SaveRules(context.Background(), []RuleSave{
		{RuleID: "r1", Enabled: intPtr(1)},
		{RuleID: "r2"}, // nothing to patch, trivially saved
	})
	require.Len(t, results, 2)
	assert.False(t, results[0].Saved)
	assert.Contains(t, results[0].Error, "rule not found")
	assert.True(t, results[1].Saved)
}

func TestCreateRuleRejectsInvalidCondition(t *testing.T) {
	s, fb := newTestService(t)

	_, err := s.CreateRule(context.Background(), gateway.Rule{
		SceneID:   "scene-1",
		Condition: json.RawMessage(`{{`),
	})
	require.Error(t, err)
	assert.Empty(t, fb.calls(gateway.RulePath))
}

func TestCreateRuleNormalizes(t *testing.T) {
	s, fb := newTestService(t)
	fb.respond(gateway.RulePath, gateway.CodeSuccess, "ok",
		gateway.Rule{ID: "r9", SceneID: "scene-1", Enabled: 1})

	created, err := s.CreateRule(context.Background(), gateway.Rule{
		SceneID:   "scene-1",
		Condition: json.RawMessage(`{"motion":{"operator":"eq","value":true}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "r9", created.ID)

	posts := fb.calls(gateway.RulePath)
	require.Len(t, posts, 1)
	cond, err := json.Marshal(posts[0].Body["condition"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"motion":{"operator":"eq","value":true}}`, string(cond))
}
