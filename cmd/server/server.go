package server

import (
	"context"
	"net/http"
	"time"

	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/feed"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/middleware"
	"example.com/socialfeed/internal/store"
)

type Server struct {
	feed         *feed.Service
	store        store.StoreInterface
	kafkaWriter  appkafka.KafkaWriter
	defaultLimit int
}

var logg = logger.New()

// Run starts the HTTPS server with JWT-protected routes and graceful shutdown.
func Run(ctx context.Context, svc *feed.Service, st store.StoreInterface, writer appkafka.KafkaWriter, addr string, defaultLimit int) {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	s := &Server{
		feed:         svc,
		store:        st,
		kafkaWriter:  writer,
		defaultLimit: defaultLimit,
	}

	// --- HTTP routes ---
	mux := http.NewServeMux()

	// Protected endpoints with JWT authentication middleware
	mux.Handle("/posts", middleware.JWTAuth(http.HandlerFunc(s.createPostHandler)))
	mux.Handle("/follow", middleware.JWTAuth(http.HandlerFunc(s.followHandler)))
	mux.Handle("/feed", middleware.JWTAuth(http.HandlerFunc(s.getPersonalFeedHandler)))
	mux.Handle("/likes", middleware.JWTAuth(http.HandlerFunc(s.likeHandler)))
	mux.Handle("/comments", middleware.JWTAuth(http.HandlerFunc(s.createCommentHandler)))

	// Public endpoints (no JWT required)
	mux.Handle("/users", http.HandlerFunc(s.createUserHandler))
	mux.Handle("/feed/public", http.HandlerFunc(s.getPublicFeedHandler))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 10 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		logg.Info("server", "Starting HTTPS server on "+addr)
		// TLS: cert.pem and key.pem should be valid certificates in specified paths
		if err := srv.ListenAndServeTLS("/certs/cert.pem", "/certs/key.pem"); err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}
