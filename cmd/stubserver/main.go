package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"docuscan/internal/stubserver"
)

// Stub document-ingestion service for local development and tests.
func main() {
	addr := pflag.String("addr", ":8000", "listen address")
	username := pflag.String("username", "admin", "login username")
	password := pflag.String("password", "admin123", "login password")
	accessTTL := pflag.Duration("access-ttl", 30*time.Minute, "issued token lifetime")
	release := pflag.Bool("release", false, "run gin in release mode")
	pflag.Parse()

	if *release {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := stubserver.New(stubserver.Config{
		Username:  *username,
		Password:  *password,
		AccessTTL: *accessTTL,
	})

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("stub service listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	log.Println("stub service exited")
}
