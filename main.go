package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pliu/courier/internal/config"
	"github.com/pliu/courier/internal/handlers"
	"github.com/pliu/courier/internal/logging"
	"github.com/pliu/courier/internal/middleware"
	"github.com/pliu/courier/internal/store/sqlstore"
	"github.com/pliu/courier/internal/ws"
)

var configPath = flag.String("config", "", "path to YAML config file")

func main() {
	flag.Parse()
	logging.Init()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := sqlstore.New(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	hub := ws.NewHub(store, ws.Config{
		JWTSecret:        cfg.JWT.Secret,
		TypingExpiry:     cfg.Realtime.TypingExpiry,
		PresenceDebounce: cfg.Realtime.PresenceDebounce,
		SendBufferSize:   cfg.Realtime.SendBufferSize,
		WriteTimeout:     cfg.Realtime.WriteTimeout,
		InboundRate:      cfg.Realtime.InboundRate,
		InboundBurst:     cfg.Realtime.InboundBurst,
	}, slog.Default())
	defer hub.Stop()

	authHandler := &handlers.AuthHandler{Store: store, JWTSecret: cfg.JWT.Secret, TokenTTL: cfg.JWT.TTL}
	userHandler := &handlers.UserHandler{Store: store}
	convHandler := &handlers.ConversationHandler{Store: store, Hub: hub}
	friendHandler := &handlers.FriendHandler{Store: store, Hub: hub}

	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	r.HandleFunc("/api/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.Handle("/metrics", promhttp.Handler())

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(cfg.JWT.Secret))
	api.HandleFunc("/auth/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/users/search", userHandler.Search).Methods("GET")
	api.HandleFunc("/users/me", userHandler.UpdateProfile).Methods("PATCH")
	api.HandleFunc("/conversations", convHandler.List).Methods("GET")
	api.HandleFunc("/conversations", convHandler.Create).Methods("POST")
	api.HandleFunc("/conversations/{id:[0-9]+}/messages", convHandler.Messages).Methods("GET")
	api.HandleFunc("/messages/{id:[0-9]+}", convHandler.EditMessage).Methods("PATCH")
	api.HandleFunc("/messages/{id:[0-9]+}", convHandler.DeleteMessage).Methods("DELETE")
	api.HandleFunc("/friends", friendHandler.ListFriends).Methods("GET")
	api.HandleFunc("/friends/requests", friendHandler.SendRequest).Methods("POST")
	api.HandleFunc("/friends/requests", friendHandler.ListRequests).Methods("GET")
	api.HandleFunc("/friends/requests/{id:[0-9]+}", friendHandler.Respond).Methods("POST")
	api.HandleFunc("/friends/{id:[0-9]+}", friendHandler.RemoveFriend).Methods("DELETE")
	api.HandleFunc("/users/{id:[0-9]+}/block", friendHandler.Block).Methods("POST")
	api.HandleFunc("/users/{id:[0-9]+}/block", friendHandler.Unblock).Methods("DELETE")

	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r)
	})

	slog.Info("starting server", "addr", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, r); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
