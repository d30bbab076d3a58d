package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inamate/bubblesets/internal/auth"
	"github.com/inamate/bubblesets/internal/bubble"
	"github.com/inamate/bubblesets/internal/collab"
	"github.com/inamate/bubblesets/internal/config"
	"github.com/inamate/bubblesets/internal/document"
	"github.com/inamate/bubblesets/internal/export"
	mw "github.com/inamate/bubblesets/internal/middleware"
	"github.com/inamate/bubblesets/internal/scene"
	"github.com/inamate/bubblesets/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	level, err := cfg.Level()
	if err != nil {
		slog.Warn("falling back to info logging", "error", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	bubbleOpts := append(cfg.BubbleOptions(), bubble.WithLogger(slog.Default()))

	authService := auth.NewService(st, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	sceneService := scene.NewService(st, bubbleOpts...)
	sceneHandler := scene.NewHandler(sceneService)

	exportHandler := export.NewHandler(sceneService, bubbleOpts...)

	hub := collab.NewHub(
		sceneService.Load,
		func(ctx context.Context, doc *document.Scene, version int) (int, error) {
			v, err := sceneService.Save(ctx, doc, version)
			if errors.Is(err, scene.ErrConflict) {
				return 0, fmt.Errorf("%w: %w", collab.ErrConflict, err)
			}
			return v, err
		},
		bubbleOpts...,
	)
	go hub.Run()

	r := mux.NewRouter()

	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Stateless render of a posted document, used by the playground.
	r.HandleFunc("/export/png", exportHandler.ExportDocument).Methods("POST", "OPTIONS")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Me).Methods("GET")
	sceneHandler.Routes(api)
	api.HandleFunc("/scenes/{sceneId}/export.png", exportHandler.ExportScene).Methods("GET")

	origins := originPatterns(cfg.Origins())
	r.HandleFunc("/ws/scene/{sceneId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, sceneService, origins)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Rooms save on the way out.
		slog.Info("saving open scenes")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// originPatterns strips the scheme off the allowed origins for websocket.Accept.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, authSvc *auth.Service, scenes *scene.Service, origins []string) {
	sceneID := mux.Vars(r)["sceneId"]

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, err := authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	switch err := scenes.Authorize(r.Context(), sceneID, userID); {
	case errors.Is(err, scene.ErrNotFound):
		http.Error(w, "scene not found", http.StatusNotFound)
		return
	case errors.Is(err, scene.ErrForbidden):
		http.Error(w, "not the scene owner", http.StatusForbidden)
		return
	case err != nil:
		slog.Error("authorize scene", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	user, err := authSvc.GetUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "user not found", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := collab.NewClient(hub, conn, userID, user.DisplayName, sceneID, uuid.New().String())
	if !hub.Register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
