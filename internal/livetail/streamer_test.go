package livetail_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/ocx/agentbus/internal/livetail"
	"github.com/ocx/agentbus/internal/notify"
)

func TestStreamerBroadcastsToConnectedClient(t *testing.T) {
	s := livetail.New(nil)
	go s.Run()

	srv := httptest.NewServer(http.HandlerFunc(s.HandleWebSocket))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return s.Stats()["connected_clients"] == 1
	}, time.Second, 10*time.Millisecond)

	bus := notify.NewBus("test")
	ch := bus.Subscribe()
	go s.Bridge(ch)

	bus.NotifyVerdict(t.Context(), "bus-1", 7, true, "looks fine")

	var event notify.CloudEvent
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, notify.TypeVerdictCommit, event.Type)
	require.Equal(t, "bus-1", event.BusID)
}
