package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homepanel/internal/registry"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	return client
}

func writeEnvelope(w http.ResponseWriter, code int, msg string, data interface{}) {
	env := map[string]interface{}{"code": code, "msg": msg}
	if data != nil {
		env["data"] = data
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(env)
}

func TestLoginSuccess(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, LoginPath, r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req["username"])
		writeEnvelope(w, CodeLoggedIn, "login success", nil)
	})

	err := client.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", client.Session().Username())
	assert.True(t, client.Session().Active())
}

func TestLoginBadCredentials(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, CodeBadCredentials, "wrong username or password", nil)
	})

	err := client.Login(context.Background(), "alice", "nope")
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeBadCredentials))
	assert.False(t, client.Session().Active(), "failed login must not establish a session")
}

func TestRegisterDuplicateUsername(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, CodeBadCredentials, "username already taken", nil)
	})

	err := client.Register(context.Background(), "alice", "secret")
	assert.True(t, IsCode(err, CodeBadCredentials))
}

func TestTransportErrorIsNotAPIError(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.Devices(context.Background())
	require.Error(t, err)
	assert.False(t, IsCode(err, http.StatusBadGateway))

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "transport failures must not decode as APIErrors")
}

func TestDevicesFlattenedAttributes(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, CodeSuccess, "ok", []map[string]interface{}{
			{"type": "lamp", "name": "desk", "power": "on", "brightness": 800.0},
			{"type": "conditioner", "name": "living", "power": "off", "temperature": 24.0, "mode": "cool"},
		})
	})

	devices, err := client.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)

	lamp := devices[0]
	assert.Equal(t, registry.TypeLamp, lamp.Type)
	assert.True(t, lamp.PowerOn())
	b, ok := lamp.NumericAttr("brightness")
	require.True(t, ok)
	assert.Equal(t, 800.0, b)

	ac := devices[1]
	assert.False(t, ac.PowerOn())
	mode, ok := ac.StringAttr("mode")
	require.True(t, ok)
	assert.Equal(t, "cool", mode)
	_, ok = ac.NumericAttr("mode")
	assert.False(t, ok)
}

func TestDeviceMarshalRoundTrip(t *testing.T) {
	d := Device{
		Type:  registry.TypeCurtain,
		Name:  "bedroom",
		Power: "on",
		Attrs: map[string]interface{}{"position": 60.0},
	}

	buf, err := json.Marshal(d)
	require.NoError(t, err)

	var back Device
	require.NoError(t, json.Unmarshal(buf, &back))
	assert.Equal(t, d, back)
}

func TestActivateSceneDisabled(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, SceneActivatePath, r.URL.Path)
		writeEnvelope(w, CodeSceneDisabled, "scene is disabled", nil)
	})

	err := client.ActivateScene(context.Background(), "scene-3")
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeSceneDisabled))
	assert.Contains(t, err.Error(), "scene is disabled")
}

func TestSetDeviceStateCarriesUsername(t *testing.T) {
	var got deviceStateRequest
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == LoginPath {
			writeEnvelope(w, CodeLoggedIn, "ok", nil)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeEnvelope(w, CodeSuccess, "ok", nil)
	})

	require.NoError(t, client.Login(context.Background(), "alice", "secret"))
	require.NoError(t, client.SetDeviceState(context.Background(), "desk", map[string]interface{}{"brightness": 700.0}))

	assert.Equal(t, "desk", got.DeviceName)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, 700.0, got.State["brightness"])
}

func TestSceneEnabledFlag(t *testing.T) {
	assert.True(t, Scene{Enabled: 1}.IsEnabled())
	assert.False(t, Scene{Enabled: 0}.IsEnabled())
}

func TestRulesQueryBySceneID(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "scene-7", r.URL.Query().Get("scene_id"))
		writeEnvelope(w, CodeSuccess, "ok", []Rule{{ID: "r1", SceneID: "scene-7", Enabled: 1}})
	})

	rules, err := client.Rules(context.Background(), "scene-7")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "r1", rules[0].ID)
}

func TestRulesQueryEscapesSceneID(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a b&c", r.URL.Query().Get("scene_id"))
		writeEnvelope(w, CodeSuccess, "ok", []Rule{})
	})

	_, err := client.Rules(context.Background(), "a b&c")
	require.NoError(t, err)
}

func TestUnrecognizedCodeSurfacesServerMsg(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 599, "backend on fire", nil)
	})

	err := client.DeactivateScene(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 599, apiErr.Code)
	assert.Equal(t, "backend on fire", apiErr.Msg)
}
