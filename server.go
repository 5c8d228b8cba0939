package main

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/vipnode/nodehealth/jsonrpc2"
	"github.com/vipnode/nodehealth/jsonrpc2/ws"
)

// server serves JSONRPC over HTTP POST and over websocket upgrades.
type server struct {
	jsonrpc2.HTTPServer
	header http.Header
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for k, values := range s.header {
		for _, v := range values {
			w.Header().Set(k, v)
		}
	}
	switch r.Method {
	case http.MethodPost:
		s.HTTPServer.ServeHTTP(w, r)
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		if !websocket.IsWebSocketUpgrade(r) {
			http.Error(w, "incorrect nodehealth api handshake", http.StatusBadRequest)
			return
		}
		ws.Handler(&s.HTTPServer.Server)(w, r)
	default:
		http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
	}
}
