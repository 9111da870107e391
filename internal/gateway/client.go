package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"homepanel/internal/log"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "http://localhost:8000"

	// Paths
	LoginPath           = "/api/user/login"
	RegisterPath        = "/api/user/register"
	DeviceStatePath     = "/api/device/state"
	ScenePath           = "/api/scene"
	SceneFieldPath      = "/api/scene/field"
	SceneActivatePath   = "/api/scene/activate"
	SceneDeactivatePath = "/api/scene/deactivate"
	RulePath            = "/api/rule"
	RuleFieldPath       = "/api/rule/field"
	RecommendPath       = "/api/recommend"
	RecyclePath         = "/api/recycle"
	RecycleRecoverPath  = "/api/recycle/recover"
	RecycleClearPath    = "/api/recycle/clear"
)

// Client is the remote backend API client. Each method is a single
// request/response pair: no retries, no idempotency keys. A failed call is
// the caller's to re-issue, typically from an explicit user retry.
type Client struct {
	baseURL string
	session *Session
	limiter *rate.Limiter
}

// NewClient creates a backend client
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	session, err := NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// 10 requests/second with a small burst; enough that interactive use
	// never notices, low enough to not hammer the backend on a stuck key
	limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), 20)

	return &Client{
		baseURL: baseURL,
		session: session,
		limiter: limiter,
	}, nil
}

// Session returns the client's session
func (c *Client) Session() *Session {
	return c.session
}

// do performs one request against the backend. Transport failures (dial
// errors, non-2xx statuses, undecodable bodies) come back as plain wrapped
// errors; an envelope whose code is not in okCodes comes back as *APIError.
// On success env.Data is unmarshaled into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}, okCodes ...int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.session.Client().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		log.Debug("backend %s %s returned status %d: %s", method, path, resp.StatusCode, truncateForLog(string(data), 200))
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	ok := false
	for _, code := range okCodes {
		if env.Code == code {
			ok = true
			break
		}
	}
	if !ok {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// --- Auth ---

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates against the backend and records the session username
func (c *Client) Login(ctx context.Context, username, password string) error {
	err := c.do(ctx, http.MethodPost, LoginPath,
		credentialsRequest{Username: username, Password: password}, nil,
		CodeLoggedIn, CodeSuccess)
	if err != nil {
		return err
	}
	c.session.SetUsername(username)
	log.Info("Logged in as %s", username)
	return nil
}

// Register creates a new account. It does not log the user in.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, RegisterPath,
		credentialsRequest{Username: username, Password: password}, nil,
		CodeRegistered, CodeSuccess)
}

// Logout clears the session. Purely local; the backend session expires on
// its own.
func (c *Client) Logout() error {
	return c.session.Clear()
}

// --- Devices ---

// Devices fetches the current device state snapshot
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.do(ctx, http.MethodGet, DeviceStatePath, nil, &devices, CodeSuccess); err != nil {
		return nil, err
	}
	return devices, nil
}

type deviceStateRequest struct {
	DeviceName string                 `json:"device_name"`
	State      map[string]interface{} `json:"state"`
	Username   string                 `json:"username"`
}

// SetDeviceState writes a partial state update for one device
func (c *Client) SetDeviceState(ctx context.Context, deviceName string, state map[string]interface{}) error {
	return c.do(ctx, http.MethodPost, DeviceStatePath, deviceStateRequest{
		DeviceName: deviceName,
		State:      state,
		Username:   c.session.Username(),
	}, nil, CodeSuccess)
}

// --- Scenes ---

// Scenes fetches the full scene list
func (c *Client) Scenes(ctx context.Context) ([]Scene, error) {
	var scenes []Scene
	if err := c.do(ctx, http.MethodGet, ScenePath, nil, &scenes, CodeSuccess); err != nil {
		return nil, err
	}
	return scenes, nil
}

// CreateScene stores a new scene and returns it with its assigned id
func (c *Client) CreateScene(ctx context.Context, scene Scene) (*Scene, error) {
	scene.Creator = c.session.Username()
	var created Scene
	if err := c.do(ctx, http.MethodPost, ScenePath, scene, &created, CodeSuccess); err != nil {
		return nil, err
	}
	return &created, nil
}

type fieldPatchRequest struct {
	ID    string      `json:"scene_id"`
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

// UpdateSceneField patches a single scene field
func (c *Client) UpdateSceneField(ctx context.Context, sceneID, field string, value interface{}) error {
	return c.do(ctx, http.MethodPatch, SceneFieldPath,
		fieldPatchRequest{ID: sceneID, Field: field, Value: value}, nil, CodeSuccess)
}

type sceneIDRequest struct {
	SceneID string `json:"scene_id"`
}

// DeleteScene moves a scene to the recycle bin
func (c *Client) DeleteScene(ctx context.Context, sceneID string) error {
	return c.do(ctx, http.MethodDelete, ScenePath, sceneIDRequest{SceneID: sceneID}, nil, CodeSuccess)
}

// ActivateScene asks the backend to make the scene active. The backend
// rejects disabled scenes with CodeSceneDisabled; that comes back as an
// *APIError and the caller must not change any local state.
func (c *Client) ActivateScene(ctx context.Context, sceneID string) error {
	return c.do(ctx, http.MethodPost, SceneActivatePath, sceneIDRequest{SceneID: sceneID}, nil, CodeSuccess)
}

// DeactivateScene clears the active scene unconditionally
func (c *Client) DeactivateScene(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, SceneDeactivatePath, nil, nil, CodeSuccess)
}

// --- Rules ---

// Rules fetches all rules; pass sceneID "" for every scene's rules
func (c *Client) Rules(ctx context.Context, sceneID string) ([]Rule, error) {
	path := RulePath
	if sceneID != "" {
		path += "?scene_id=" + url.QueryEscape(sceneID)
	}
	var rules []Rule
	if err := c.do(ctx, http.MethodGet, path, nil, &rules, CodeSuccess); err != nil {
		return nil, err
	}
	return rules, nil
}

// CreateRule stores a new rule and returns it with its assigned id
func (c *Client) CreateRule(ctx context.Context, rule Rule) (*Rule, error) {
	var created Rule
	if err := c.do(ctx, http.MethodPost, RulePath, rule, &created, CodeSuccess); err != nil {
		return nil, err
	}
	return &created, nil
}

type ruleFieldPatchRequest struct {
	ID    string      `json:"rule_id"`
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

// UpdateRuleField patches a single rule field
func (c *Client) UpdateRuleField(ctx context.Context, ruleID, field string, value interface{}) error {
	return c.do(ctx, http.MethodPatch, RuleFieldPath,
		ruleFieldPatchRequest{ID: ruleID, Field: field, Value: value}, nil, CodeSuccess)
}

type ruleIDRequest struct {
	RuleID string `json:"rule_id"`
}

// DeleteRule removes a rule
func (c *Client) DeleteRule(ctx context.Context, ruleID string) error {
	return c.do(ctx, http.MethodDelete, RulePath, ruleIDRequest{RuleID: ruleID}, nil, CodeSuccess)
}

// --- Recommendations ---

// Recommendations fetches the AI-sourced scene suggestions
func (c *Client) Recommendations(ctx context.Context) ([]Recommendation, error) {
	var recs []Recommendation
	if err := c.do(ctx, http.MethodGet, RecommendPath, nil, &recs, CodeSuccess); err != nil {
		return nil, err
	}
	return recs, nil
}

// --- Recycle bin ---

// RecycleBin lists deleted scenes awaiting recovery
func (c *Client) RecycleBin(ctx context.Context) ([]Scene, error) {
	var scenes []Scene
	if err := c.do(ctx, http.MethodGet, RecyclePath, nil, &scenes, CodeSuccess); err != nil {
		return nil, err
	}
	return scenes, nil
}

// RecoverScene restores a deleted scene
func (c *Client) RecoverScene(ctx context.Context, sceneID string) error {
	return c.do(ctx, http.MethodPost, RecycleRecoverPath, sceneIDRequest{SceneID: sceneID}, nil, CodeSuccess)
}

// ClearRecycleBin permanently discards all deleted scenes
func (c *Client) ClearRecycleBin(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, RecycleClearPath, nil, nil, CodeSuccess)
}

// truncateForLog truncates a string for logging purposes
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
