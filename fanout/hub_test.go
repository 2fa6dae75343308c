package fanout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kevin-Teran/acuaponia-sub001/testutil"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

func testDirectory() *testutil.MockDirectory {
	return &testutil.MockDirectory{
		Principals: map[string]types.Principal{
			"admin-token": {ID: "u-admin", Name: "ops", Role: types.RoleAdmin, Status: types.UserActive},
			"owner-token": {ID: "u-7", Name: "kevin", Role: types.RoleUser, Status: types.UserActive},
			"other-token": {ID: "u-9", Name: "guest", Role: types.RoleUser, Status: types.UserActive},
			"frozen-token": {
				ID: "u-ice", Name: "frozen", Role: types.RoleUser, Status: types.UserSuspended,
			},
		},
	}
}

// testHub serves handleWS on an httptest server so no fixed port is taken.
func testHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(DefaultConfig(), testDirectory(), nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(h.handleWS))
	t.Cleanup(srv.Close)
	return h, srv
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, have %d", n, h.ClientCount())
}

func TestHub_RejectsMissingCredential(t *testing.T) {
	_, srv := testHub(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_RejectsInvalidCredential(t *testing.T) {
	_, srv := testHub(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_RejectsSuspendedAccount(t *testing.T) {
	_, srv := testHub(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=frozen-token"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHub_AcceptsBearerHeader(t *testing.T) {
	h, srv := testHub(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Authorization": []string{"Bearer owner-token"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	waitClients(t, h, 1)
	assert.Equal(t, 1, h.ChannelCount(UserChannel("u-7")))
}

func TestHub_ChannelAssignment(t *testing.T) {
	h, srv := testHub(t)

	dialWS(t, srv, "admin-token")
	dialWS(t, srv, "owner-token")
	waitClients(t, h, 2)

	assert.Equal(t, 1, h.ChannelCount(ChannelAdmin), "elevated roles join the admin channel")
	assert.Equal(t, 1, h.ChannelCount(UserChannel("u-7")))
	assert.Equal(t, 0, h.ChannelCount(UserChannel("u-admin")), "admins do not get a personal channel")
}

func TestHub_ReadingBroadcastReachesEveryone(t *testing.T) {
	h, srv := testHub(t)

	adminConn := dialWS(t, srv, "admin-token")
	ownerConn := dialWS(t, srv, "owner-token")
	waitClients(t, h, 2)

	reading := types.Reading{ID: "r-1", SensorID: "s-1", Kind: types.KindPH, Value: 7.1}
	h.EmitReading(reading)

	for _, conn := range []*websocket.Conn{adminConn, ownerConn} {
		ev := readEvent(t, conn)
		assert.Equal(t, "reading", ev.Type)
	}
}

func TestHub_AlertRoutedToOwnerAndAdmin(t *testing.T) {
	h, srv := testHub(t)

	adminConn := dialWS(t, srv, "admin-token")
	ownerConn := dialWS(t, srv, "owner-token")
	otherConn := dialWS(t, srv, "other-token")
	waitClients(t, h, 3)

	h.EmitAlert(types.Alert{
		ID:          "al-1",
		SensorID:    "s-1",
		Severity:    types.SeverityCritical,
		Type:        "PH_LOW",
		OwnerUserID: "u-7",
	})

	for _, conn := range []*websocket.Conn{adminConn, ownerConn} {
		ev := readEvent(t, conn)
		assert.Equal(t, "alert", ev.Type)
	}

	// The unrelated user must see nothing.
	require.NoError(t, otherConn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := otherConn.ReadMessage()
	assert.Error(t, err, "expected a read timeout, not an alert")
}

func TestHub_LowSeverityAlertSkipsAdminChannel(t *testing.T) {
	h, srv := testHub(t)

	adminConn := dialWS(t, srv, "admin-token")
	ownerConn := dialWS(t, srv, "owner-token")
	waitClients(t, h, 2)

	h.EmitAlert(types.Alert{
		ID:          "al-2",
		Severity:    types.SeverityLow,
		Type:        "PH_LOW",
		OwnerUserID: "u-7",
	})

	ev := readEvent(t, ownerConn)
	assert.Equal(t, "alert", ev.Type)

	require.NoError(t, adminConn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := adminConn.ReadMessage()
	assert.Error(t, err, "low severity stays off the admin channel")
}

func TestHub_DisconnectedClientIsDropped(t *testing.T) {
	h, srv := testHub(t)

	conn := dialWS(t, srv, "owner-token")
	waitClients(t, h, 1)

	require.NoError(t, conn.Close())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && h.ClientCount() > 0 {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, h.ClientCount())
}
