package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/peer-review/review-service/internal/config"
	"github.com/RubachokBoss/peer-review/review-service/internal/delivery/httpd"
	"github.com/RubachokBoss/peer-review/review-service/internal/repository"
	"github.com/RubachokBoss/peer-review/review-service/internal/service"
	"github.com/RubachokBoss/peer-review/review-service/internal/worker"
	"github.com/RubachokBoss/peer-review/review-service/internal/worker/queue"
)

type App struct {
	server          *http.Server
	logger          zerolog.Logger
	config          *config.Config
	db              *sql.DB
	ingestWorker    worker.IngestWorker
	reportPublisher queue.ReportPublisher
}

func New(cfg *config.Config, log zerolog.Logger, db *sql.DB) (*App, error) {
	// Репозитории
	eventRepo := repository.NewSubmissionEventRepository(db, log)
	reviewRepo := repository.NewReviewRepository(db, log)

	// Сервисы
	distributorService := service.NewDistributorService(eventRepo, log)
	reviewService := service.NewReviewService(reviewRepo, log)
	authService := service.NewAuthService(log)

	// Publisher создается лениво: соединение откроется при первой
	// публикации либо при явном Connect на старте.
	reportPublisher := queue.NewReportPublisher(queue.PublisherConfig{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Publisher.Exchange,
		RoutingKey: cfg.RabbitMQ.Publisher.RoutingKey,
		MaxRetries: cfg.RabbitMQ.Publisher.MaxRetries,
		RetryDelay: cfg.RabbitMQ.Publisher.RetryDelay,
	}, log)

	// Consumer + ingest worker
	consumer := queue.NewSubmissionConsumer(queue.Config{
		URL:         cfg.RabbitMQ.URL,
		Exchange:    cfg.RabbitMQ.Consumer.Exchange,
		RoutingKey:  cfg.RabbitMQ.Consumer.RoutingKey,
		Queue:       cfg.RabbitMQ.Consumer.Queue,
		ConsumerTag: cfg.RabbitMQ.Consumer.ConsumerTag,
		Prefetch:    cfg.RabbitMQ.Consumer.Prefetch,
		MaxRetries:  cfg.RabbitMQ.Consumer.MaxRetries,
		RetryDelay:  cfg.RabbitMQ.Consumer.RetryDelay,
	}, log)

	workerPool := worker.NewWorkerPool(cfg.Worker.MaxWorkers, log)
	ingestWorker := worker.NewIngestWorker(
		consumer,
		workerPool,
		eventRepo,
		cfg.RabbitMQ.Consumer.RequeueOnError,
		log,
	)

	handler := httpd.NewHandler(
		reviewService,
		distributorService,
		authService,
		reportPublisher,
		log,
	)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		server:          server,
		logger:          log,
		config:          cfg,
		db:              db,
		ingestWorker:    ingestWorker,
		reportPublisher: reportPublisher,
	}, nil
}

// Run starts the ingest worker and the HTTP server. Failing to reach
// the consuming state is fatal for the process.
func (a *App) Run(ctx context.Context) error {
	if err := a.ingestWorker.Start(ctx); err != nil {
		return err
	}

	if err := a.reportPublisher.Connect(ctx); err != nil {
		// Отчеты доставляются best-effort: publisher переподключится
		// при первой публикации.
		a.logger.Warn().Err(err).Msg("Report publisher not connected at startup")
	}

	a.logger.Info().Msgf("Starting review service on %s", a.config.Server.Address)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down review service...")

	// Порядок: сначала ingestor, затем publisher, и только потом
	// освобождаем хранилище.
	if err := a.ingestWorker.Stop(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to stop ingest worker")
	}

	if err := a.reportPublisher.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close report publisher")
	}

	err := a.server.Shutdown(ctx)

	if a.db != nil {
		if closeErr := a.db.Close(); closeErr != nil {
			a.logger.Error().Err(closeErr).Msg("Failed to close database connection")
		}
	}

	return err
}
