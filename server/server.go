// Copyright © 2018 NAME HERE <EMAIL ADDRESS>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/bits"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/antaris-inc/go-xtce/ccsds"
	"github.com/antaris-inc/go-xtce/loader"
	"github.com/antaris-inc/go-xtce/xtce"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

//
// Server
//

// Server handles realtime and history connections to multiple clients
type Server struct {
	// Configuration
	Host string
	Port int

	StaticFiles       string // Location of static files
	DictionaryPrefix  string
	WebsocketPrefix   string
	HistoryPrefix     string
	PersistancePrefix string

	// SchemaPath is the XTCE document loaded into Session at Run.
	SchemaPath string
	// RootContainers maps a CCSDS APID to the qualified name of the
	// container that decodes packets carrying it.
	RootContainers map[int]string

	// State
	Session *Session

	// Internal state
	clients             *map[*websocket.Conn]*Client // immutable, updated by handleSubscriptions()
	packetDispatchTable [2048]*rootDispatch          // values in slots are immutable, nil means no subscriptions, updated by handleSubscriptions()

	// Channels
	PacketChan chan ccsds.Packet // incoming packets

	addClientChan                 chan *Client
	removeClientChan              chan *Client
	updateClientSubscriptionsChan chan *updateClientSubscriptionsMsg // add/remove subscriptions
	rebuildApidDispatch           chan map[int]bool

	StopRequest chan os.Signal
}

// Run runs a web server
func (server *Server) Run() {
	// Prepare defaults
	if server.Port == 0 {
		server.Port = 8000
	}
	// The default server.Host is ""
	if server.DictionaryPrefix == "" {
		server.DictionaryPrefix = "/dictionary"
	}
	if server.WebsocketPrefix == "" {
		server.WebsocketPrefix = "/realtime/"
	}
	if server.HistoryPrefix == "" {
		server.HistoryPrefix = "/history"
	}
	if server.PersistancePrefix == "" {
		server.PersistancePrefix = "/couch"
	}

	// Initialize internal state

	// Initialize channels
	server.clients = &map[*websocket.Conn]*Client{}
	if server.PacketChan == nil {
		server.PacketChan = make(chan ccsds.Packet, 300)
	}
	server.addClientChan = make(chan *Client, 20)
	server.removeClientChan = make(chan *Client, 20)
	server.updateClientSubscriptionsChan = make(chan *updateClientSubscriptionsMsg, 20)
	server.rebuildApidDispatch = make(chan map[int]bool, 20)

	server.Session = &Session{Name: "demo"}
	if err := server.Session.loadSpaceSystem(server.SchemaPath, server.RootContainers); err != nil {
		fmt.Println(err)
		return
	}

	router := mux.NewRouter()
	// xtce qualified names carry their own leading slash, so the id
	// segment of a dictionary lookup URL legitimately contains "//".
	// Default path cleaning would redirect that away.
	router.SkipClean(true)

	// REST (order matters)
	dictionarySubrouter := router.PathPrefix(server.DictionaryPrefix).Subrouter()

	// {id:.+} matches the rest of the path: xtce qualified names are
	// themselves slash-delimited, so a single path segment isn't enough.
	dictionarySubrouter.HandleFunc("/{session}/id/{id:.+}", func(w http.ResponseWriter, r *http.Request) { handleDictionaryGetID(server, w, r) }).Methods("GET")
	dictionarySubrouter.HandleFunc("/{session}/root", func(w http.ResponseWriter, r *http.Request) { handleDictionaryRoot(server, w, r) }).Methods("GET")
	dictionarySubrouter.HandleFunc("/{session}", func(w http.ResponseWriter, r *http.Request) { handleWholeDictionary(server, w, r) }).Methods("GET")

	router.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		handleHistory(server, w, r)
	}).Methods("GET")

	router.HandleFunc("/couch", handleCouch)
	router.HandleFunc("/couch/{rest:.*}", handleCouch)

	router.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		server.handleReport(w, r)
	}).Methods("GET")

	router.HandleFunc("/shutdown", func(w http.ResponseWriter, r *http.Request) {
		server.handleShutdown(w, r)
	}).Methods("GET")

	// WebSocket
	router.HandleFunc(server.WebsocketPrefix, func(w http.ResponseWriter, req *http.Request) {
		server.serveWS(w, req)
	})

	// Files
	router.PathPrefix("/").Handler(http.StripPrefix("/", http.FileServer(http.Dir(server.StaticFiles))))

	// add/remove clients, update subscriptions
	go server.handleSubscriptions()

	// decode and fan out incoming packets
	go server.packetPump()

	addr := fmt.Sprintf("%s:%d", server.Host, server.Port)
	h := &http.Server{Addr: addr, Handler: router}

	// Receive interrupts and shut down gracefully
	server.StopRequest = make(chan os.Signal, 2)
	signal.Notify(server.StopRequest, os.Interrupt)

	// Run the server
	go func() {
		log.Printf("Listening on %s\n", addr)
		err := h.ListenAndServe()
		if err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-server.StopRequest
	log.Printf("Shutting down the server ...\n")
	h.Shutdown(context.Background())
	log.Printf("Server gracefully stopped.\n")
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16384,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (server *Server) serveWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Println(err)
		return
	}
	client := newClient(server, conn)
	server.addClientChan <- client
}

//
// Handle Subscriptions
//

// All management of subscriptions is centralized here.  The
// datastructures are contained on the server and client objects and
// don't allow concurrent access.
//
// The implementation goals are:
// 1. The code path that decodes and distributes telemetry can't be
//    blocked while dispatch tables are updated
// 2. Reasonably efficient (don't rebuild everything every time any
//    subscription changes)
// 3. Simplicity reduces bugs
//
// The dispatch table is keyed by CCSDS APID, since that's the field
// available before a packet has been decoded against its XTCE
// container; each slot names the container to decode against and the
// subset of that container's reachable parameters any client still
// wants.

func (server *Server) handleSubscriptions() {
	session := server.Session
	for {
		select {

		case client := <-server.addClientChan:
			// add a client
			oldClientMap := *server.clients
			newClientMap := make(map[*websocket.Conn]*Client)
			for oldconn, oldclient := range oldClientMap {
				newClientMap[oldconn] = oldclient
			}
			newClientMap[client.conn] = client
			server.clients = &newClientMap
			// No need to touch the dispatch table

			go client.writePump()
			go client.readPump()

		case client := <-server.removeClientChan:
			oldConn := client.conn
			client.conn = nil
			if oldConn != nil {
				if err := oldConn.Close(); err != nil {
					fmt.Printf("removing client: error closing connection: %v", err.Error())
				}
			}

			// remove a client; rebuild dispatch table
			oldClientMap := *server.clients
			newClientMap := make(map[*websocket.Conn]*Client)
			for oldconn, oldclient := range oldClientMap {
				if oldclient != client {
					newClientMap[oldconn] = oldclient
				}
			}
			server.clients = &newClientMap

			// Update all apid subscriptions this client had
			apidOf := reverseApidOf(session)
			apids := make(map[int]bool)
			for cname := range client.subscriptions {
				if apid, ok := apidOf[cname]; ok {
					apids[apid] = true
				}
			}
			server.rebuildApidDispatch <- apids

		case msg := <-server.updateClientSubscriptionsChan:
			// Process a subscription request from a client

			pts, badIDs := lookupSubscriptionIds(session, msg.ids)
			apids := make(map[int]bool)

			if len(pts) > 0 {
				newSubscriptions := copyClientSubscriptions(msg.client.subscriptions)
				for _, pt := range pts {
					apids[pt.APID] = true
					mask, ok := newSubscriptions[pt.ContainerName]
					if !ok {
						mask = NewBitArray(len(session.containerPoints[pt.ContainerName]))
						newSubscriptions[pt.ContainerName] = mask
					}
					if msg.isAdd {
						mask.SetBit(pt.Seq)
					} else {
						mask.ClearBit(pt.Seq)
					}
				}
				msg.client.subscriptions = newSubscriptions
				server.rebuildApidDispatch <- apids
			}

			root := make(map[string]interface{})
			if msg.isAdd {
				root["response"] = "subscribe"
			} else {
				root["response"] = "unsubscribe"
			}
			root["token"] = msg.token
			if len(badIDs) > 0 {
				root["status"] = "error"
				root["bad_ids"] = badIDs
			} else {
				root["status"] = "success"
			}
			sendJSON(root, msg.client)

		case apids := <-server.rebuildApidDispatch:
			for apid := range apids {
				cname, ok := session.RootContainers[apid]
				if !ok {
					continue
				}
				allPoints := session.containerPoints[cname]
				mask := NewBitArray(len(allPoints))
				var clients []*Client
				for _, client := range *server.clients {
					clientMask := client.subscriptions[cname]
					if clientMask != nil && !clientMask.IsZero() {
						mask.OrInto(*clientMask)
						clients = append(clients, client)
					}
				}
				if mask.IsZero() {
					server.packetDispatchTable[apid] = nil
					continue
				}
				var points []string
				for i, name := range allPoints {
					if mask.GetBit(i) {
						points = append(points, name)
					}
				}
				server.packetDispatchTable[apid] = &rootDispatch{clients: clients, points: points, rootContainer: cname}
			}
		}
	}
}

func copyClientSubscriptions(subscriptions map[string]*BitArray) map[string]*BitArray {
	newSubscriptions := make(map[string]*BitArray, len(subscriptions))
	for k, v := range subscriptions {
		newSubscriptions[k] = v.Copy()
	}
	return newSubscriptions
}

// subscriptionPoint names one parameter reachable from a specific root
// container, along with its bit position in that container's point list
// and the APID used to dispatch packets decoded against it.
type subscriptionPoint struct {
	ContainerName string
	ParamName     string
	Seq           int
	APID          int
}

// lookupSubscriptionIds resolves an id to either a whole container (every
// parameter it reaches) or a single parameter qualified name (reachable
// from any configured root container), against the session's precomputed
// point lists. Unlike a dictionary keyed by short human ids, xtce
// qualified names are already globally unique, so there's no need for a
// dotted-id convention to disambiguate container scope from point scope.
func lookupSubscriptionIds(session *Session, ids []string) ([]subscriptionPoint, []string) {
	apidOf := reverseApidOf(session)
	points := make([]subscriptionPoint, 0, len(ids))
	badIDs := make([]string, 0, 10)

	for _, id := range ids {
		if plist, ok := session.containerPoints[id]; ok {
			apid, ok2 := apidOf[id]
			if !ok2 {
				badIDs = append(badIDs, id)
				continue
			}
			for seq, name := range plist {
				points = append(points, subscriptionPoint{ContainerName: id, ParamName: name, Seq: seq, APID: apid})
			}
			continue
		}

		found := false
		for cname, seqByName := range session.pointSeq {
			if seq, ok := seqByName[id]; ok {
				points = append(points, subscriptionPoint{ContainerName: cname, ParamName: id, Seq: seq, APID: apidOf[cname]})
				found = true
			}
		}
		if !found {
			badIDs = append(badIDs, id)
		}
	}
	return points, badIDs
}

func reverseApidOf(session *Session) map[string]int {
	r := make(map[string]int, len(session.RootContainers))
	for apid, cname := range session.RootContainers {
		r[cname] = apid
	}
	return r
}

// rootDispatch is stored in each element of the decode dispatch table.
// These are functionally immutable (won't be modified), only rebuilt; the
// entries in the dispatch table are swapped wholesale.
type rootDispatch struct {
	clients       []*Client
	points        []string
	rootContainer string
}

//
// Realtime Packet Decode
//

func (server *Server) packetPump() {
	for pkt := range server.PacketChan {
		apid := pkt.APID()
		dispatch := server.packetDispatchTable[apid] // re-fetch the table every time
		if dispatch == nil {
			continue
		}
		vm, err := xtce.DecodePacket(server.Session.SpaceSystem, dispatch.rootContainer, []byte(pkt))
		if err != nil {
			log.Printf("server: decoding apid %d against %s: %v", apid, dispatch.rootContainer, err)
			continue
		}
		sendJSON(buildRealtimeResponse(dispatch.rootContainer, vm, dispatch.points, pkt), dispatch.clients...)
	}
}

func buildRealtimeResponse(containerName string, vm *xtce.ValueMap, points []string, pkt ccsds.Packet) RealtimeDataResponse {
	values := make(map[string]RealtimeValue, len(points))
	for _, name := range points {
		if v, ok := vm.Get(name); ok {
			values[name] = RealtimeValue{Raw: v.Raw, Eng: v.Engineering}
		}
	}

	var timestamp string
	if time42 := pkt.Time42(); time42 != 0 {
		timestamp = ccsds.Time42ToITOS(uint64(time42))
	}

	return RealtimeDataResponse{Response: "report_data", Packet: containerName, Timestamp: timestamp, Values: values}
}

//
// HandleHistory
//

func handleHistory(server *Server, w http.ResponseWriter, r *http.Request) {
	fmt.Printf("history: req=%v\n", r.URL)
	prepareHeader(w, r)
	json.NewEncoder(w).Encode(RestErrorResponse{Error: "SessionNotFound", Message: "Session not found"})
}

//
// HandleReport
//

func (server *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	clients := *server.clients
	connections := make([]ReportWebsocketConnection, 0, len(clients))
	for conn, client := range clients {
		ids := client.getSubscriptionIDs()
		connections = append(connections, ReportWebsocketConnection{Address: conn.RemoteAddr().String(), SubscriptionCount: len(ids), IDs: ids})
	}

	response := ReportTemplate{Version: "0.1", Session: *server.Session, Connections: connections, ConnectionCount: len(connections)}
	prepareHeader(w, r)
	json.NewEncoder(w).Encode(response)
}

//
// HandleShutdown
//

func (server *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	server.StopRequest <- &FakeInterrupt{}
}

// FakeInterrupt is for mocking the server shutdown message
type FakeInterrupt struct{}

// String is needed to match an interrupt's interface
func (f *FakeInterrupt) String() string { return "fake interrupt" }

// Signal is needed to match an interrupt's interface
func (f FakeInterrupt) Signal() {}

////////////////////////////////////////////////////////////////////////
// Client
////////////////////////////////////////////////////////////////////////

// Client is the middleman between the websocket connection and the server
type Client struct {
	server        *Server
	conn          *websocket.Conn
	msgChan       chan []byte          // Client receives msgs from channel and sends to the websocket connection
	subscriptions map[string]*BitArray // immutable, keyed by root container qualified name
}

func newClient(server *Server, conn *websocket.Conn) *Client {
	return &Client{
		server:        server,
		conn:          conn,
		msgChan:       make(chan []byte, 32),
		subscriptions: make(map[string]*BitArray),
	}
}

//
// Read Pump
//

func (client *Client) readPump() {
	for {
		messageType, p, err := client.conn.ReadMessage()
		if messageType == websocket.CloseMessage {
			requestRemoveClient(client)
			log.Printf("websocket: %s closed", client.conn.RemoteAddr().String())
			return
		} else if err != nil {
			oldConn := client.conn
			requestRemoveClient(client)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) {
				log.Printf("websocket(%s) closed unexpectedly: %v", client.conn.RemoteAddr().String(), err.Error())
			} else {
				log.Printf("websocket: %s closed", oldConn.RemoteAddr().String())
			}
			return
		} else if messageType != websocket.TextMessage {
			oldConn := client.conn
			requestRemoveClient(client)
			log.Printf("websocket(%s) received a non-text message of type %d", oldConn.RemoteAddr().String(), messageType)
			return
		}

		var msg interface{}
		err = json.Unmarshal(p, &msg)
		if err != nil {
			log.Printf("websocket(%s) received a non-json message: %s", client.conn.RemoteAddr().String(), string(p))
			continue
		}

		msgObject, ok := msg.(map[string]interface{})
		if !ok {
			log.Printf("websocket(%s) received a json message that was not an object: %s", client.conn.RemoteAddr().String(), string(p))
			continue
		}

		msgVerb, ok := msgObject["request"].(string)
		if !ok {
			log.Printf("websocket(%s) received a json message object with no request verb: %s", client.conn.RemoteAddr().String(), string(p))
			continue
		}
		msgToken := msgObject["token"]

		var err1, err2 error
		switch msgVerb {
		case "ping":
			var msg GenericRequest
			err1 = json.Unmarshal(p, &msg)
			if err1 == nil {
				err2 = client.handlePing(&msg)
			}
		case "subscribe":
			var msg SubscribeRequest
			err1 = json.Unmarshal(p, &msg)
			if err1 == nil {
				err2 = client.handleSubscribe(&msg)
			}
		case "unsubscribe":
			var msg UnsubscribeRequest
			err1 = json.Unmarshal(p, &msg)
			if err1 == nil {
				err2 = client.handleUnsubscribe(&msg)
			}
		case "report-subscriptions":
			client.handleReportSubscriptions()
		default:
			err1 = fmt.Errorf("websocket(%s) received a request(%s) with no handler: %s", client.conn.RemoteAddr().String(), msgVerb, string(p))
		}

		if err1 != nil {
			log.Printf("websocket(%s) error parsing %s request: %v", client.conn.RemoteAddr().String(), msgVerb, err1)
			sendJSON(ErrorResponse{Response: msgVerb, Token: msgToken, Error: err1.Error()}, client)
		} else if err2 != nil {
			log.Printf("websocket(%s) error processing %s request: %v", client.conn.RemoteAddr().String(), msgVerb, err2)
			sendJSON(ErrorResponse{Response: msgVerb, Token: msgToken, Error: err2.Error()}, client)
		}
	}
}

//
// Write Pump
//

func (client *Client) writePump() {
	for msg := range client.msgChan {
		c := client.conn
		if c == nil {
			continue
		}
		err := c.WriteMessage(websocket.TextMessage, msg)
		if err == websocket.ErrCloseSent {
			requestRemoveClient(client)
			return
		}
		if err != nil {
			log.Printf("websocket(%s) error on write: %v", client.conn.RemoteAddr().String(), err)
			requestRemoveClient(client)
			return
		}
	}
}

func requestRemoveClient(client *Client) {
	client.conn = nil
	client.server.removeClientChan <- client
}

//
// Message Handlers
//

func (client *Client) handlePing(r *GenericRequest) error {
	sendJSON(GenericResponse{Response: "ping", Token: r.Token}, client)
	return nil
}

func (client *Client) handleSubscribe(r *SubscribeRequest) error {
	client.server.updateClientSubscriptionsChan <- &updateClientSubscriptionsMsg{isAdd: true, ids: r.IDs, client: client, token: r.Token}
	return nil
}

func (client *Client) handleUnsubscribe(r *UnsubscribeRequest) error {
	client.server.updateClientSubscriptionsChan <- &updateClientSubscriptionsMsg{isAdd: false, ids: r.IDs, client: client, token: r.Token}
	return nil
}

func (client *Client) handleReportSubscriptions() {
	sendJSON(ReportSubscriptionsResponse{Response: "report-subscriptions", IDs: client.getSubscriptionIDs()}, client)
}

func (client *Client) getSubscriptionIDs() []string {
	ids := make([]string, 0, 256)
	session := client.server.Session
	for cname, mask := range client.subscriptions {
		pts := session.containerPoints[cname]
		for i, name := range pts {
			if mask.GetBit(i) {
				ids = append(ids, name)
			}
		}
	}
	return ids
}

//
// Message Helper Functions
//

// send a message to one or more clients
func send(msg []byte, clients ...*Client) {
	for i := 0; i < len(clients); i++ {
		clients[i].msgChan <- msg
	}
}

// sendJSON to one or more clients
func sendJSON(msg interface{}, clients ...*Client) {
	if len(clients) < 1 {
		return
	}
	if bytes, err := json.Marshal(msg); err == nil {
		send(bytes, clients...)
	} else {
		log.Printf("Error preparing json for a message: %s", msg)
	}
}

//
// Public Websocket Message Templates
//

// GenericRequest is a message template.  Also used as a minimal request
type GenericRequest struct {
	Request string      `json:"request"`
	Token   interface{} `json:"token"`
}

// GenericResponse is a message template
type GenericResponse struct {
	Response string      `json:"response"`
	Token    interface{} `json:"token"`
}

// SubscribeRequest is a message template
type SubscribeRequest struct {
	Request string      `json:"request"`
	Token   interface{} `json:"token"`
	IDs     []string    `json:"ids"`
}

// SubscribeResponse is a message template
type SubscribeResponse struct {
	Response string      `json:"response"`
	Token    interface{} `json:"token"`
	Status   string      `json:"status"`
	BadIDs   []string    `json:"bad_ids"`
}

// UnsubscribeRequest is a message template
type UnsubscribeRequest struct {
	Request string      `json:"request"`
	Token   interface{} `json:"token"`
	IDs     []string    `json:"ids"`
}

// UnsubscribeResponse is a message template
type UnsubscribeResponse struct {
	Response string      `json:"response"`
	Token    interface{} `json:"token"`
	Status   string      `json:"status"`
	BadIDs   []string    `json:"bad_ids,omitempty"`
}

// ErrorResponse is a generic message template
type ErrorResponse struct {
	Response string      `json:"response"`
	Token    interface{} `json:"token"`
	Error    string      `json:"error"`
}

// ReportSubscriptionsResponse is a generic message template
type ReportSubscriptionsResponse struct {
	Response string   `json:"response"`
	IDs      []string `json:"ids"`
}

// RealtimeDataResponse is a message template pushed to subscribed
// clients each time a packet decodes against a container they have
// points in.
type RealtimeDataResponse struct {
	Response  string                   `json:"response"`
	Packet    string                   `json:"packet"`
	Timestamp string                   `json:"timestamp,omitempty"`
	Values    map[string]RealtimeValue `json:"values"`
}

// RealtimeValue is part of RealtimeDataResponse.
type RealtimeValue struct {
	Raw interface{} `json:"raw"`
	Eng interface{} `json:"eng"`
}

//
// Public REST Message Templates
//

// RestErrorResponse is a message template
type RestErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

//
// Internal Message Templates
//

type updateClientSubscriptionsMsg struct {
	client *Client
	isAdd  bool
	token  interface{}
	ids    []string
}

// clientMsg contains a single message for one or more clients.
type clientMsg struct {
	clients []*Client
	bytes   []byte
}

////////////////////////////////////////////////////////////////////////
// Session
////////////////////////////////////////////////////////////////////////

// Session holds session information.  Note that a warp process can host only a single session
type Session struct {
	Name           string                  `json:"name"`
	SpaceSystem    *xtce.SpaceSystem       `json:"-"`
	RootContainers map[int]string          `json:"-"`
	DictionaryRoot *DictionaryRootResponse `json:"-"`

	// containerPoints maps a configured root container's qualified name
	// to the ordered, de-duplicated set of parameter qualified names
	// reachable from it (its own entries plus, recursively, every
	// inherited child and referenced sub-container). Stable across
	// decodes of the same root, unlike the concrete inheritance chain a
	// given packet actually matches, so it's what subscription bit
	// positions are built against.
	containerPoints map[string][]string
	// pointSeq maps a root container name to (parameter name -> its
	// index in containerPoints[name]).
	pointSeq map[string]map[string]int
}

func (session *Session) loadSpaceSystem(schemaPath string, roots map[int]string) error {
	ss, err := loader.LoadFile(schemaPath, nil)
	if err != nil {
		return err
	}
	session.SpaceSystem = ss
	session.RootContainers = roots
	session.containerPoints = map[string][]string{}
	session.pointSeq = map[string]map[string]int{}

	for _, cname := range roots {
		if _, done := session.containerPoints[cname]; done {
			continue
		}
		pts := collectContainerPoints(ss, cname)
		session.containerPoints[cname] = pts
		seq := make(map[string]int, len(pts))
		for i, name := range pts {
			seq[name] = i
		}
		session.pointSeq[cname] = seq
	}

	session.DictionaryRoot = makeDictionaryRoot(session)
	fmt.Printf("There are %d root containers in %s\r\n", len(roots), schemaPath)
	return nil
}

// collectContainerPoints walks every parameter reachable from root:
// root's own entries, every container descended from it by inheritance
// (ss.ChildrenOf), and every container it pulls in via a ContainerRefEntry,
// recursively. A parameter reachable through more than one path is listed
// once, at its first-seen position.
func collectContainerPoints(ss *xtce.SpaceSystem, root string) []string {
	seenContainer := map[string]bool{}
	seenParam := map[string]bool{}
	var out []string

	var walk func(name string)
	walk = func(name string) {
		if seenContainer[name] {
			return
		}
		seenContainer[name] = true

		c, ok := ss.GetContainer(name)
		if !ok {
			return
		}
		for _, e := range c.EntryList {
			switch e.Kind {
			case xtce.EntryParameterRef:
				if !seenParam[e.ParameterRef] {
					seenParam[e.ParameterRef] = true
					out = append(out, e.ParameterRef)
				}
			case xtce.EntryContainerRef:
				walk(e.ContainerRef)
			}
		}
		for _, child := range ss.ChildrenOf(name) {
			walk(child.Name)
		}
	}
	walk(root)
	return out
}

////////////////////////////////////////////////////////////////////////
// REST Handlers
////////////////////////////////////////////////////////////////////////

func handleCouch(w http.ResponseWriter, req *http.Request) {
	splits := strings.Split(req.URL.Path, string(os.PathSeparator))
	remoteURL := "http://localhost:5984/" + filepath.Join(splits[2:]...)
	resp, err := http.DefaultClient.Get(remoteURL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer resp.Body.Close()
	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func handleWholeDictionary(server *Server, w http.ResponseWriter, r *http.Request) {
	prepareHeader(w, r)
}

func handleDictionaryRoot(server *Server, w http.ResponseWriter, r *http.Request) {
	prepareHeader(w, r)
	json.NewEncoder(w).Encode(server.Session.DictionaryRoot)
}

func handleDictionaryGetID(server *Server, w http.ResponseWriter, r *http.Request) {
	prepareHeader(w, r)
	vars := mux.Vars(r)
	id := vars["id"]
	session := server.Session

	if _, ok := session.containerPoints[id]; ok {
		writeContainerJSON(w, session, id)
		return
	}
	for _, seqByName := range session.pointSeq {
		if _, ok := seqByName[id]; ok {
			writePointJSON(w, session, id)
			return
		}
	}
	http.NotFound(w, r)
}

func prepareHeader(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Header().Add("Content-Type", "application/json")
}

// Sample output for a container.  The points array is a list json objects like the point sample below
// {
//   "response": "list_points",
//   "session": "demo",
//   "packet": "/Root/Containers/Base",
//   "points": []
// }

func writeContainerJSON(w http.ResponseWriter, session *Session, cname string) {
	fmt.Fprint(w, `{"response":"list_points","session":"`)
	fmt.Fprint(w, session.Name)
	fmt.Fprint(w, `","packet":"`)
	fmt.Fprint(w, cname)
	fmt.Fprint(w, `","points":[`)
	for i, name := range session.containerPoints[cname] {
		if i > 0 {
			fmt.Fprint(w, `,`)
		}
		writePointJSON(w, session, name)
	}
	fmt.Fprint(w, `]}`)
}

// Sample output for a single point
// {
//   "name": "/Root/Parameters/Mode",
//   "key": "/Root/Parameters/Mode",
//   "values": [...]
// }

func writePointJSON(w http.ResponseWriter, session *Session, paramName string) {
	typeName := "unknown"
	if p, ok := session.SpaceSystem.GetParameter(paramName); ok {
		if t, ok := session.SpaceSystem.GetParameterType(p.TypeRef); ok {
			typeName = t.TypeName()
		}
	}
	fmt.Fprint(w, `{"name":"`)
	fmt.Fprint(w, paramName)
	fmt.Fprint(w, `","key":"`)
	fmt.Fprint(w, paramName)
	fmt.Fprint(w, `", "values": [{"key":"utc","source":"timestamp","name":"Timestamp","format":"utc","hints":{"domain":1}},{"key":"value","name":"Value","hints":{"range":1},"format":"`)
	fmt.Fprint(w, typeName)
	fmt.Fprint(w, `"}]}`)
}

//
// WebSocket Handlers
//

func makeDictionaryRoot(session *Session) *DictionaryRootResponse {
	packets := make([]PacketJSON, 0, len(session.RootContainers))
	for apid, cname := range session.RootContainers {
		packets = append(packets, PacketJSON{ID: cname, Name: cname, APID: apid})
	}
	return &DictionaryRootResponse{Response: "list_packets", Session: session.Name, Packets: packets}
}

//
// Templates
//

// DictionaryRootResponse is a message template
type DictionaryRootResponse struct {
	Response string       `json:"response"`
	Session  string       `json:"session"`
	Packets  []PacketJSON `json:"packets"`
}

// PacketJSON is part of a message template
type PacketJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	APID        int    `json:"apid"`
	Description string `json:"description"`
}

// PointJSON is part of a message template
type PointJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Units       string `json:"units"`
	Conversion  string `json:"conversion"`
}

// ReportTemplate is part of a message template
type ReportTemplate struct {
	Version         string                      `json:"version"`
	Session         Session                     `json:"session"`
	Connections     []ReportWebsocketConnection `json:"connections"`
	ConnectionCount int                         `json:"connection_count"`
}

// ReportWebsocketConnection is part of a message template
type ReportWebsocketConnection struct {
	Address           string   `json:"address"`
	SubscriptionCount int      `json:"subscription_count"`
	IDs               []string `json:"ids"`
}

////////////////////////////////////////////////////////////////////////
// Bit Array
////////////////////////////////////////////////////////////////////////

// BitArray implements a set using a bit array.  It only includes operations needed by the server
type BitArray []uint64

// NewBitArray returns a new BitArray object
func NewBitArray(count int) *BitArray {
	if count < 0 {
		r := BitArray(make([]uint64, 0))
		return &r
	}
	r := BitArray(make([]uint64, 1+count/64))
	return &r
}

// SetBit sets the bit at pos to 1
func (b BitArray) SetBit(pos int) error {
	cell, bitpos := b.getPosition(pos)
	if cell < 0 || cell >= len(b) {
		return fmt.Errorf("bit position out-of-range: %d", pos)
	}
	b[cell] = b[cell] | (1 << bitpos)
	return nil
}

// ClearBit sets the bit at pos to 0
func (b BitArray) ClearBit(pos int) error {
	cell, bitpos := b.getPosition(pos)
	if cell < 0 || cell >= len(b) {
		return fmt.Errorf("bit position out-of-range: %d", pos)
	}
	b[cell] = b[cell] & (^(1 << bitpos))
	return nil
}

// GetBit returns the value of the bit as true/false.  If pos is out-of-range, the returned value is false
func (b BitArray) GetBit(pos int) bool {
	cell, bitpos := b.getPosition(pos)
	if cell < 0 || cell >= len(b) {
		return false
	}
	if (b[cell] & (1 << bitpos)) == 0 {
		return false
	}
	return true
}

// OrInto modifies the receiving BitArray, or'ing its values with the other bit array
func (b BitArray) OrInto(o BitArray) {
	max := len(b)
	if len(o) < max {
		max = len(o)
	}
	for i := 0; i < max; i++ {
		b[i] = b[i] | o[i]
	}
}

// IsZero returns true if all bits in this BitArray are 0, else false
func (b BitArray) IsZero() bool {
	for i := 0; i < len(b); i++ {
		if b[i] != 0 {
			return false
		}
	}
	return true
}

// Copy returns a copy of this bit array
func (b BitArray) Copy() *BitArray {
	r := BitArray(make([]uint64, len(b)))
	copy(r, b)
	return &r
}

func (b BitArray) getPosition(pos int) (int, uint) {
	if pos < 0 {
		return -1, 0
	}
	return pos / 64, uint(pos) % 64
}

// BitCount returns the number of bits set
func (b BitArray) BitCount() int {
	count := 0
	for _, l := range b {
		count += bits.OnesCount64(l)
	}
	return count
}
