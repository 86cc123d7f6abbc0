package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/linebridge/linebridge/internal/config"
	"github.com/linebridge/linebridge/internal/dedupe"
	"github.com/linebridge/linebridge/internal/directline"
	"github.com/linebridge/linebridge/internal/dispatch"
	"github.com/linebridge/linebridge/internal/line"
	"github.com/linebridge/linebridge/internal/session"
	"github.com/linebridge/linebridge/internal/timeline"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the LINE webhook gateway",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	var store *timeline.Service
	if !cfg.Store.Disabled {
		path := cfg.StorePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Fatalf("exchange log dir: %v", err)
		}
		store, err = timeline.NewService(path)
		if err != nil {
			log.Fatalf("exchange log open failed: %v", err)
		}
		defer store.Close()
	}

	srv := newServer(cfg, store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: srv.mux(),
	}
	go func() {
		log.Printf("linebridge listening on %s", cfg.Server.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("linebridge failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("linebridge shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// server owns the wired gateway components and the HTTP surface.
type server struct {
	cfg        *config.Config
	registry   *session.Registry
	dispatcher *dispatch.Dispatcher
	seen       *dedupe.Cache
	store      *timeline.Service
	startedAt  time.Time
}

func newServer(cfg *config.Config, store *timeline.Service) *server {
	httpClient := &http.Client{Timeout: cfg.DirectLine.HTTPTimeout}
	client := directline.NewClient(cfg.DirectLine.TokenURL, cfg.DirectLine.BaseURL, httpClient)
	relay := directline.NewRelay(client, directline.RelayOptions{
		ReplyBudget:  cfg.DirectLine.ReplyBudget,
		PollInitial:  cfg.DirectLine.PollInitial,
		PollMax:      cfg.DirectLine.PollMax,
		FallbackText: cfg.DirectLine.FallbackText,
	})
	registry := session.NewRegistry(func(ctx context.Context, userID string) (string, string, error) {
		token, err := client.AcquireToken(ctx)
		if err != nil {
			return "", "", err
		}
		conversationID, err := client.OpenConversation(ctx, token)
		if err != nil {
			return "", "", err
		}
		slog.Info("Opened backend conversation", "user_id", userID, "conversation_id", conversationID)
		return token, conversationID, nil
	}, cfg.Session.TTL)
	replies := line.NewReplyClient(cfg.Line.APIBase, cfg.Line.AccessToken, httpClient)
	seen := dedupe.New(10 * time.Minute)

	return &server{
		cfg:        cfg,
		registry:   registry,
		dispatcher: dispatch.New(registry, relay, replies, seen, store, cfg.DirectLine.ApologyText),
		seen:       seen,
		store:      store,
		startedAt:  time.Now().UTC(),
	}
}

func (s *server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/webhook", s.handleWebhook)
	return mux
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	out := map[string]any{
		"ok":                   true,
		"started_at":           s.startedAt,
		"sessions":             s.registry.Len(),
		"inbound_dedupe_cache": s.seen.Len(),
	}
	if s.store != nil {
		if counts, err := s.store.CountByStatus(); err == nil {
			out["exchanges"] = counts
		}
	}
	_ = json.NewEncoder(w).Encode(out)
}

// handleWebhook receives LINE webhook deliveries. 200 signals the batch
// was received and processed; 500 tells the platform to redeliver the
// whole batch, which the dispatcher's dedupe cache makes safe.
func (s *server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad body", http.StatusInternalServerError)
		return
	}
	if err := line.VerifySignature(body, r.Header.Get(line.SignatureHeader), s.cfg.Line.ChannelSecret); err != nil {
		slog.Warn("Webhook signature rejected", "error", err)
		http.Error(w, "invalid line signature", http.StatusUnauthorized)
		return
	}
	wb, err := line.ParseWebhook(body)
	if err != nil {
		http.Error(w, "invalid webhook body", http.StatusInternalServerError)
		return
	}
	s.dispatcher.HandleBatch(r.Context(), wb.Events)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}
