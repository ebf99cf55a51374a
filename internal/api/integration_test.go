package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/stretchr/testify/require"
)

// TestWebSocketBroadcast exercises a real client connecting, the
// server accepting it, and an opportunity broadcast reaching the
// client over the wire.
func TestWebSocketBroadcast(t *testing.T) {
	server := setupTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, server.websocketServer.Start(ctx))

	ts := httptest.NewServer(server.GetRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Drain the welcome message before broadcasting.
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return server.websocketServer.GetConnectedClients() == 1
	}, time.Second, 10*time.Millisecond)

	opp := &types.Opportunity{ID: "opp-1", Kind: types.KindSandwich, StrategyTag: "sandwich"}
	require.NoError(t, server.websocketServer.BroadcastOpportunity(opp))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg interfaces.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, interfaces.MessageTypeOpportunity, msg.Type)
}
