package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/leggler/PV-Aggregator/internal/config"
	"github.com/leggler/PV-Aggregator/internal/store"

	_ "github.com/joho/godotenv/autoload"
)

type Server struct {
	port    uint
	httpLog bool
	store   *store.Store
}

func NewServer(cfg config.Config, st *store.Store) *http.Server {
	NewServer := &Server{
		port:    cfg.Port,
		httpLog: cfg.HttpLog,
		store:   st,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
