package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/antaris-inc/go-xtce/loader"
	"github.com/antaris-inc/go-xtce/xtce"
)

const testSchemaDoc = `<?xml version="1.0"?>
<SpaceSystem name="Root">
  <TelemetryMetaData>
    <ParameterTypeSet>
      <EnumeratedParameterType name="ModeEnum">
        <IntegerDataEncoding sizeInBits="8" encoding="unsigned"/>
        <EnumerationList>
          <Enumeration value="0" label="Safe"/>
          <Enumeration value="1" label="Nominal"/>
        </EnumerationList>
      </EnumeratedParameterType>
      <IntegerParameterType name="Uint8">
        <IntegerDataEncoding sizeInBits="8" encoding="unsigned"/>
      </IntegerParameterType>
    </ParameterTypeSet>
    <ParameterSet>
      <Parameter name="Mode" parameterTypeRef="ModeEnum"/>
      <Parameter name="Voltage" parameterTypeRef="Uint8"/>
    </ParameterSet>
    <ContainerSet>
      <SequenceContainer name="Housekeeping">
        <EntryList>
          <ParameterRefEntry parameterRef="Mode"/>
          <ParameterRefEntry parameterRef="Voltage"/>
        </EntryList>
      </SequenceContainer>
    </ContainerSet>
  </TelemetryMetaData>
</SpaceSystem>
`

const housekeepingContainer = "/Root/Housekeeping"
const housekeepingAPID = 100

func writeTestSchema(t *testing.T) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.xml")
	require.NoError(t, os.WriteFile(path, []byte(testSchemaDoc), 0644))
	return path
}

//
// collectContainerPoints
//

func TestCollectContainerPoints(t *testing.T) {
	ss, err := buildTestSpaceSystem(t)
	require.NoError(t, err)

	pts := collectContainerPoints(ss, housekeepingContainer)
	require.Equal(t, []string{"/Root/Mode", "/Root/Voltage"}, pts)
}

func buildTestSpaceSystem(t *testing.T) (*xtce.SpaceSystem, error) {
	t.Helper()
	return loader.Load(bytes.NewReader([]byte(testSchemaDoc)), nil)
}

//
// lookupSubscriptionIds
//

func TestLookupSubscriptionIdsWholeContainer(t *testing.T) {
	session := newTestSession(t)

	pts, bad := lookupSubscriptionIds(session, []string{housekeepingContainer})
	require.Empty(t, bad)
	require.Len(t, pts, 2)
	for _, pt := range pts {
		require.Equal(t, housekeepingContainer, pt.ContainerName)
		require.Equal(t, housekeepingAPID, pt.APID)
	}
}

func TestLookupSubscriptionIdsSinglePoint(t *testing.T) {
	session := newTestSession(t)

	pts, bad := lookupSubscriptionIds(session, []string{"/Root/Voltage"})
	require.Empty(t, bad)
	require.Len(t, pts, 1)
	require.Equal(t, "/Root/Voltage", pts[0].ParamName)
	require.Equal(t, 1, pts[0].Seq)
}

func TestLookupSubscriptionIdsUnknown(t *testing.T) {
	session := newTestSession(t)

	pts, bad := lookupSubscriptionIds(session, []string{"/Root/Bogus"})
	require.Empty(t, pts)
	require.Equal(t, []string{"/Root/Bogus"}, bad)
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	path := writeTestSchema(t)
	session := &Session{Name: "test"}
	require.NoError(t, session.loadSpaceSystem(path, map[int]string{housekeepingAPID: housekeepingContainer}))
	return session
}

//
// BitArray
//

func TestBitArray(t *testing.T) {
	b := NewBitArray(100)

	for i := 0; i < 100; i++ {
		b.SetBit(i)

		if !b.GetBit(i) || b.GetBit(i+1) {
			t.Errorf("Unexpected value while filling bit array at iteration %d", i)
		}
		if i+1 != b.BitCount() {
			t.Errorf("At iteration %d the BitCount was %d", i, b.BitCount())
		}
	}

	for i := 99; i >= 0; i-- {
		if !b.GetBit(i) {
			t.Errorf("expected bit %d set, but it wasn't", i)
		}
		b.ClearBit(i)
		if (i > 0 && !b.GetBit(i-1)) || b.GetBit(i) || b.GetBit(i+1) {
			t.Errorf("expected value while emptying bit array at iteration %d.  i-1=%v i=%v i+1=%v", i, b.GetBit(i-1), b.GetBit(i), b.GetBit(i+1))
		}
		if i != b.BitCount() {
			t.Errorf("At iteration %d the BitCount was %d", i, b.BitCount())
		}
	}
}

func TestBitArrayOrInto(t *testing.T) {
	a := NewBitArray(10)
	b := NewBitArray(10)
	a.SetBit(2)
	b.SetBit(7)
	a.OrInto(*b)
	require.True(t, a.GetBit(2))
	require.True(t, a.GetBit(7))
	require.False(t, a.IsZero())
}

//
// Running server: websocket ping/subscribe/report and REST dictionary
//

const testServerPort = 18765

func withRunningServer(t *testing.T, f func(server *Server)) {
	t.Helper()
	schemaPath := writeTestSchema(t)

	server := &Server{
		Port:           testServerPort,
		StaticFiles:    t.TempDir(),
		SchemaPath:     schemaPath,
		RootContainers: map[int]string{housekeepingAPID: housekeepingContainer},
	}

	done := make(chan struct{})
	go func() {
		server.Run()
		close(done)
	}()

	time.Sleep(300 * time.Millisecond)

	f(server)

	server.StopRequest <- &FakeInterrupt{}
	<-done
}

func testWebsocketURL() string {
	return "ws://127.0.0.1:18765/realtime/"
}

func dictionaryRootURL() string {
	return "http://127.0.0.1:18765/dictionary/test/root"
}

func dictionaryIDURL(id string) string {
	return "http://127.0.0.1:18765/dictionary/test/id/" + id
}

func TestServerPingAndSubscriptions(t *testing.T) {
	withRunningServer(t, func(server *Server) {
		u, err := url.Parse(testWebsocketURL())
		require.NoError(t, err)

		conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(GenericRequest{Request: "ping", Token: "t1"}))
		var pong GenericResponse
		require.NoError(t, conn.ReadJSON(&pong))
		require.Equal(t, "ping", pong.Response)

		require.NoError(t, conn.WriteJSON(SubscribeRequest{Request: "subscribe", Token: "t2", IDs: []string{"/Root/Voltage", "/Root/Bogus"}}))
		var subResp SubscribeResponse
		require.NoError(t, conn.ReadJSON(&subResp))
		require.Equal(t, "subscribe", subResp.Response)
		require.Equal(t, []string{"/Root/Bogus"}, subResp.BadIDs)

		require.NoError(t, conn.WriteJSON(GenericRequest{Request: "report-subscriptions", Token: "t3"}))
		var reportResp ReportSubscriptionsResponse
		require.NoError(t, conn.ReadJSON(&reportResp))
		require.Equal(t, []string{"/Root/Voltage"}, reportResp.IDs)

		require.NoError(t, conn.WriteJSON(UnsubscribeRequest{Request: "unsubscribe", Token: "t4", IDs: []string{"/Root/Voltage"}}))
		var unsubResp UnsubscribeResponse
		require.NoError(t, conn.ReadJSON(&unsubResp))
		require.Equal(t, "unsubscribe", unsubResp.Response)

		require.NoError(t, conn.WriteJSON(GenericRequest{Request: "report-subscriptions", Token: "t5"}))
		var reportResp2 ReportSubscriptionsResponse
		require.NoError(t, conn.ReadJSON(&reportResp2))
		require.Empty(t, reportResp2.IDs)
	})
}

func TestServerDictionaryREST(t *testing.T) {
	withRunningServer(t, func(server *Server) {
		resp, err := http.Get(dictionaryRootURL())
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var root DictionaryRootResponse
		require.NoError(t, json.Unmarshal(body, &root))
		require.Len(t, root.Packets, 1)
		require.Equal(t, housekeepingContainer, root.Packets[0].ID)
		require.Equal(t, housekeepingAPID, root.Packets[0].APID)

		resp2, err := http.Get(dictionaryIDURL("/Root/Voltage"))
		require.NoError(t, err)
		defer resp2.Body.Close()
		body2, err := io.ReadAll(resp2.Body)
		require.NoError(t, err)
		require.True(t, bytes.Contains(body2, []byte(`"name":"/Root/Voltage"`)))
	})
}
