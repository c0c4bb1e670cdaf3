package server

import (
	"net/http"

	"sketch-relay/internal/config"

	"github.com/gorilla/mux"
)

type Server struct {
	gw       Gateway
	hub      *hub
	cfg      config.Config
	sessions *sessionRegistry
}

func New(gw Gateway, cfg config.Config) *Server {
	return &Server{
		gw:       gw,
		hub:      newHub(),
		cfg:      cfg,
		sessions: newSessionRegistry(),
	}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)
	r.HandleFunc("/qr/{code}", s.handleJoinQR).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("static")))
	return r
}
