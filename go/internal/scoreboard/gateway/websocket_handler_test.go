package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/courtside/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readWSState(t *testing.T, conn *websocket.Conn) models.MatchState {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, msgType)

	var state models.MatchState
	require.NoError(t, json.Unmarshal(data, &state))
	return state
}

func TestWebSocketHandler_PushesSnapshots(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(RequestLogger(env.mux))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	assert.Equal(t, "Upcoming Match", readWSState(t, conn).NextMatch)

	rec := env.do(t, http.MethodPost, "/update-match", `{"court1":{"servingTeam":"team2"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ServingTeam2, readWSState(t, conn).Court1.ServingTeam)

	stats := env.service.GetStats()
	assert.Equal(t, 1, stats["by_transport"].(map[string]int)["websocket"])

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool {
		return env.service.connectionManager.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	newReq := func(origin, host string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://"+host+"/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	anyOrigin := originChecker("*")
	assert.True(t, anyOrigin(newReq("https://evil.example", "courts.local")))

	restricted := originChecker("https://admin.example")
	assert.True(t, restricted(newReq("https://admin.example", "courts.local")))
	assert.True(t, restricted(newReq("", "courts.local")))
	assert.True(t, restricted(newReq("http://courts.local", "courts.local")))
	assert.False(t, restricted(newReq("https://evil.example", "courts.local")))
}
