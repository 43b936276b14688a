package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/docchat/internal/api/handlers"
	"github.com/cloo-solutions/docchat/internal/config"
	"github.com/cloo-solutions/docchat/internal/database"
	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/extract"
	"github.com/cloo-solutions/docchat/internal/jobs"
	"github.com/cloo-solutions/docchat/internal/openai"
	"github.com/cloo-solutions/docchat/internal/repository"
	"github.com/cloo-solutions/docchat/internal/server"
	"github.com/cloo-solutions/docchat/internal/service"
	"github.com/cloo-solutions/docchat/internal/storage"
	"github.com/cloo-solutions/docchat/internal/telemetry"
	"github.com/cloo-solutions/docchat/internal/vectorindex"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

const bootstrapTokenName = "bootstrap"

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the docchat API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if shutdownTelemetry := initTelemetry(); shutdownTelemetry != nil {
		defer shutdownTelemetry()
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("DOCCHAT_OPENAI_API_KEY or DOCCHAT_OPENAI_BASE_URL is required")
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DatabaseMaxConns})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := database.Migrate(cfg.DatabaseURL, "file://migrations"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	index, err := connectVectorIndex(ctx, cfg, pool)
	if err != nil {
		return err
	}

	var blobs service.BlobStore
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		blobs = s3Client
	} else {
		log.Println("S3 not configured, uploads are disabled")
	}

	llm := openai.NewClient(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		BatchSize:           cfg.EmbeddingBatchSize,
		Concurrency:         cfg.EmbeddingConcurrency,
		RequestsPerSecond:   cfg.EmbeddingRPS,
		ChatModel:           cfg.ChatModel,
		Temperature:         cfg.ChatTemperature,
		MaxTokens:           cfg.ChatMaxTokens,
	})

	chunker, err := service.NewChunker(service.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap})
	if err != nil {
		return fmt.Errorf("invalid chunk configuration: %w", err)
	}

	var counter service.TokenCounter
	if tc, err := service.NewTiktokenCounter(); err != nil {
		log.Printf("token counter unavailable, prompt sizes will not be recorded: %v", err)
	} else {
		counter = tc
	}

	uuidGen := &service.DefaultUUIDGenerator{}
	txRunner := repository.NewTxRunner(pool)
	userRepo := repository.NewUserRepository(pool)
	tokenRepo := repository.NewAPITokenRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewDocumentChunkRepository(pool)
	chatRepo := repository.NewChatHistoryRepository(pool)
	cleanupRepo := repository.NewCleanupJobRepository(pool)

	extractor := extract.New(extract.NewPDFExtractor(cfg.PdfToTextPath))

	authSvc := service.NewAuthService(userRepo, tokenRepo, uuidGen)
	userSvc := service.NewUserService(userRepo, authSvc, txRunner, blobs, uuidGen)
	documentSvc := service.NewDocumentService(service.DocumentServiceDeps{
		Validator:   service.NewFileValidator(),
		Blobs:       blobs,
		Ingestion:   service.NewIngestionService(extractor, chunker, llm, index, txRunner),
		Retriever:   service.NewRetriever(llm, index, chunkRepo),
		Synthesizer: service.NewSynthesizer(llm, counter, service.SynthesizerConfig{Timeout: cfg.SynthesisTimeout, HistoryWindow: cfg.HistoryWindow}),
		History:     service.NewChatHistory(chatRepo),
		Documents:   documentRepo,
		Chunks:      chunkRepo,
		Index:       index,
		TxRunner:    txRunner,
		UUIDGen:     uuidGen,

		RetrievalK:    cfg.RetrievalK,
		HistoryWindow: cfg.HistoryWindow,
	})

	if cfg.InitUserEmail != "" {
		if err := bootstrapInitialUser(ctx, cfg, userSvc, authSvc); err != nil {
			return fmt.Errorf("failed to bootstrap initial user: %w", err)
		}
	}

	cleanupWorker := jobs.NewWorker("vector cleanup", jobs.NewVectorCleanupWorker(cleanupRepo, index, index), cfg.CleanupPollInterval)
	go cleanupWorker.Start(ctx)
	log.Println("vector cleanup worker started")

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:   authSvc,
		HealthHandler:   handlers.NewHealthHandler(index),
		UserHandler:     handlers.NewUserHandler(userSvc),
		DocumentHandler: handlers.NewDocumentHandler(documentSvc),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	cleanupWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// initTelemetry starts Sentry when SENTRY_DSN is set and returns its flush
// function, or nil.
func initTelemetry() func() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return nil
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	// Default to 10% sampling in production, 100% in development
	sampleRate := 0.1
	if environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              dsn,
		Environment:      environment,
		TracesSampleRate: sampleRate,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return nil
	}
	return shutdown
}

// connectVectorIndex builds the configured backend and runs the startup
// handshake. Only schema or dimension mismatches abort startup; an
// unreachable backend yields a client that reports itself unavailable.
func connectVectorIndex(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*vectorindex.Client, error) {
	var backend vectorindex.Backend
	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		backend = vectorindex.NewQdrantIndex(vectorindex.QdrantConfig{
			URL:     cfg.QdrantURL,
			APIKey:  cfg.QdrantAPIKey,
			Timeout: cfg.VectorTimeout,
		})
	case config.VectorBackendMemory:
		backend = vectorindex.NewMemoryIndex()
	default:
		backend = vectorindex.NewPgvectorIndex(pool)
	}

	client, err := vectorindex.Connect(ctx, backend, vectorindex.ConnectConfig{
		Spec: vectorindex.CollectionSpec{
			Name:      cfg.VectorCollection,
			Dimension: cfg.EmbeddingDimensions,
			Distance:  vectorindex.Cosine,
		},
		Attempts: cfg.VectorConnectAttempts,
		Backoff:  cfg.VectorConnectBackoff,
		Timeout:  cfg.VectorTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("vector index misconfigured: %w", err)
	}

	if client.Available() {
		log.Printf("vector index ready (%s, collection '%s')", cfg.VectorBackend, cfg.VectorCollection)
	} else {
		log.Printf("vector index unavailable, chat will fall back to stored chunks: %v", client.Err())
	}
	return client, nil
}

func bootstrapInitialUser(ctx context.Context, cfg *config.Config, userSvc *service.UserService, authSvc *service.AuthService) error {
	user, err := userSvc.EnsureUser(ctx, cfg.InitUserEmail, cfg.InitUserName)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	log.Printf("bootstrap: user '%s' ready (id: %s)", user.Email, user.ID)

	if cfg.InitAPIToken == "" {
		return nil
	}
	if !service.IsValidAPIToken(cfg.InitAPIToken) {
		return fmt.Errorf("invalid DOCCHAT_INIT_API_TOKEN format (expected 'dc_<64 hex chars>')")
	}

	identity, err := authSvc.ValidateToken(ctx, cfg.InitAPIToken)
	if err == nil {
		log.Printf("bootstrap: api token already exists (user: %s)", identity.UID)
		return nil
	}
	if !errors.Is(err, domain.ErrInvalidAPIToken) {
		return fmt.Errorf("failed to check bootstrap token: %w", err)
	}

	if _, err := authSvc.CreateTokenWithValue(ctx, user.ID, bootstrapTokenName, cfg.InitAPIToken); err != nil {
		return fmt.Errorf("failed to create api token: %w", err)
	}
	log.Printf("bootstrap: created api token")
	return nil
}
