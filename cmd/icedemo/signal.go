package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// peerInfo is the payload two icedemo processes exchange over the
// signaling server: just enough for add_remote_candidates (§4.1) —
// candidate exchange encoding itself is application-defined (§6).
type peerInfo struct {
	Ufrag      string   `json:"ufrag"`
	Password   string   `json:"password"`
	Candidates []string `json:"candidates"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// room holds the peers of one signaling room (a demo run uses two); every
// message is relayed to the other peers, including to a peer that connects
// after the message was sent.
type room struct {
	mu    sync.Mutex
	conns []*websocket.Conn
	msgs  [][]byte
}

type signalServer struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func newSignalServer() *signalServer {
	return &signalServer{rooms: make(map[string]*room)}
}

func (s *signalServer) handle(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("icedemo: upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	rm, ok := s.rooms[roomID]
	if !ok {
		rm = &room{}
		s.rooms[roomID] = rm
	}
	s.mu.Unlock()

	rm.mu.Lock()
	rm.conns = append(rm.conns, conn)
	for _, earlier := range rm.msgs {
		_ = conn.WriteMessage(websocket.TextMessage, earlier)
	}
	rm.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		rm.mu.Lock()
		rm.msgs = append(rm.msgs, data)
		for _, peer := range rm.conns {
			if peer != conn {
				_ = peer.WriteMessage(websocket.TextMessage, data)
			}
		}
		rm.mu.Unlock()
	}
}

func serveSignaling(addr string) error {
	s := newSignalServer()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handle)
	log.Printf("icedemo: signaling server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// exchangePeerInfo connects to the signaling server, sends local, and
// blocks until the peer's info arrives.
func exchangePeerInfo(wsURL, roomID string, local peerInfo) (peerInfo, error) {
	u := wsURL + "?room=" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return peerInfo{}, err
	}
	defer conn.Close()

	data, err := json.Marshal(local)
	if err != nil {
		return peerInfo{}, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return peerInfo{}, err
	}

	_, data, err = conn.ReadMessage()
	if err != nil {
		return peerInfo{}, err
	}
	var remote peerInfo
	if err := json.Unmarshal(data, &remote); err != nil {
		return peerInfo{}, err
	}
	return remote, nil
}
