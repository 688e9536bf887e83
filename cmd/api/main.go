package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/storevoice/storevoice/internal/behavior"
	"github.com/storevoice/storevoice/internal/calllog"
	"github.com/storevoice/storevoice/internal/config"
	"github.com/storevoice/storevoice/internal/handler"
	"github.com/storevoice/storevoice/internal/knowledge"
	"github.com/storevoice/storevoice/internal/platform"
	"github.com/storevoice/storevoice/internal/recording"
	"github.com/storevoice/storevoice/internal/service/agent"
	"github.com/storevoice/storevoice/internal/service/call"
	"github.com/storevoice/storevoice/internal/session"
	"github.com/storevoice/storevoice/internal/task"
	"github.com/storevoice/storevoice/internal/telephony"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	platformClient, err := platform.NewClient(platform.Config{
		BaseURL:    cfg.Platform.BaseURL,
		AdminEmail: cfg.Platform.AdminEmail,
		AdminPass:  cfg.Platform.AdminPass,
	})
	if err != nil {
		log.Fatalf("failed to create platform client: %v", err)
	}

	// Store behavior is loaded once at startup and hot-swapped on demand
	// through the update-system endpoint.
	behaviorLoader := behavior.NewLoader(platformClient, cfg.Store.ID)
	if err := behaviorLoader.Refresh(ctx); err != nil {
		log.Printf("warning: initial behavior load failed, using defaults: %v", err)
	} else {
		log.Println("store behavior configuration loaded")
	}

	embedder := knowledge.NewOpenAIEmbedder(cfg.AI.APIKey, cfg.AI.EmbeddingModel)
	retriever := knowledge.NewRetriever(platformClient, cfg.Store.ID, embedder, cfg.Paths.CacheDir)
	if err := retriever.Build(ctx); err != nil {
		log.Printf("warning: initial knowledge index build failed: %v", err)
		log.Println("callers get a retry prompt until update-rag succeeds")
	} else {
		log.Println("knowledge index built")
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		log.Fatalf("failed to initialize chat model: %v", err)
	}

	responder, err := agent.NewService(ctx, chatModel)
	if err != nil {
		log.Fatalf("failed to initialize agent service: %v", err)
	}
	log.Println("agent service initialized successfully")

	carrier, err := telephony.NewClient(telephony.Config{
		AccountSID:  cfg.Carrier.AccountSID,
		AuthToken:   cfg.Carrier.AuthToken,
		PhoneNumber: cfg.Carrier.PhoneNumber,
	})
	if err != nil {
		log.Fatalf("failed to create carrier client: %v", err)
	}

	sessions := session.NewStore()

	pipeline, err := recording.NewPipeline(sessions, carrier, cfg.Paths.RecordingsDir)
	if err != nil {
		log.Fatalf("failed to prepare recordings directory: %v", err)
	}

	sink := calllog.NewSink(platformClient, cfg.Paths.CallLogFile, cfg.Paths.AudioBaseURL)

	runner := task.NewRunner(0, 0)
	defer runner.Close()

	orchestrator := call.New(call.Config{
		StoreID:         cfg.Store.ID,
		StoreName:       cfg.Store.Name,
		PublicURL:       cfg.Server.PublicURL,
		ManagerNumber:   cfg.Carrier.ManagerNumber,
		AppointmentLink: cfg.Carrier.AppointmentLink,
		Location:        cfg.Store.Timezone,
	}, sessions, behaviorLoader, retriever, responder, sink, carrier, runner)

	router := handler.NewRouter(orchestrator, pipeline, behaviorLoader, retriever, cfg.Paths.RecordingsDir)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("StoreVoice agent listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
