package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatterhq/chatter/config"
	"github.com/chatterhq/chatter/db"
	"github.com/chatterhq/chatter/realtime"
	"github.com/chatterhq/chatter/services"
)

type Server struct {
	Config              *config.Config
	UserRepository      db.UserRepository
	MessagingService    services.MessagingService
	NotificationService services.NotificationService
	Gateway             *realtime.Gateway
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests and
// shuts the realtime gateway down so every socket gets a clean close.
func (s *Server) Start() {
	r := s.setupRouter()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Config.Port),
		Handler: r,
	}

	go func() {
		log.Printf("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	if s.Gateway != nil {
		s.Gateway.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Println("server exited")
}
