package wsbridge_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hayride-dev/hayride/wsbridge"
)

// TestMain verifies Upgrade's background read pump goroutine always exits
// once its connection closes, for every test in this package.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestUpgradeBridgesTextFramesBothWays(t *testing.T) {
	var bridge *wsbridge.Bridge
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := wsbridge.Upgrade(w, r)
		require.NoError(t, err)
		bridge = b

		data, err := b.Input.Read(1024)
		require.NoError(t, err)
		assert.Equal(t, "ping", string(data))

		b.Output.Write([]byte("pong"))
		b.Output.Close()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(msg))

	require.NotNil(t, bridge)
}

func TestUpgradeRejectsNonUpgradeRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	_, err := wsbridge.Upgrade(rec, req)
	assert.Error(t, err)
}
