package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yalahq/go-whatsapp-guestflow/internal/aws"
	"github.com/yalahq/go-whatsapp-guestflow/internal/backend"
	"github.com/yalahq/go-whatsapp-guestflow/internal/config"
	"github.com/yalahq/go-whatsapp-guestflow/internal/dedup"
	"github.com/yalahq/go-whatsapp-guestflow/internal/gateway/metacloud"
	"github.com/yalahq/go-whatsapp-guestflow/internal/logging"
	"github.com/yalahq/go-whatsapp-guestflow/internal/metrics"
	"github.com/yalahq/go-whatsapp-guestflow/internal/session"
	"github.com/yalahq/go-whatsapp-guestflow/internal/webhook"
	"github.com/yalahq/go-whatsapp-guestflow/internal/worker"
)

func setupRouter(pool *worker.Pool, whCfg webhook.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		stats := pool.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"queue_depth": stats.QueueDepth,
			"in_flight":   stats.InFlight,
		})
	})

	webhook.RegisterMetaRoutes(r, whCfg)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("configuration invalid: %v", err)
	}
	log := logging.New(cfg.LogFormat)

	ctx := context.Background()

	var clients *aws.AWSClients
	if cfg.SessionsTable != "" || cfg.DedupTable != "" || cfg.MetricsNamespace != "" {
		clients, err = aws.NewAWSClients(ctx)
		if err != nil {
			log.Fatalf("failed to init aws clients: %v", err)
		}
	}

	sessions := buildSessionStore(ctx, cfg, clients, log)
	dedupStore := buildDedupStore(ctx, cfg, clients, log)

	backendClient := backend.NewHTTPClient(backend.HTTPConfig{
		BaseURL:          cfg.BackendBaseURL,
		Timeout:          cfg.BackendTimeout,
		BearerToken:      cfg.BackendBearerToken,
		DefaultEventName: cfg.DefaultEventName,
		Logger:           log,
	})

	sender, err := metacloud.NewSender(metacloud.Config{
		AccessToken:   cfg.MetaAccessToken,
		PhoneNumberID: cfg.MetaPhoneNumberID,
		APIVersion:    cfg.MetaAPIVersion,
		Timeout:       cfg.GatewayTimeout,
		Logger:        log,
	})
	if err != nil {
		log.Fatalf("cloud api sender: %v", err)
	}

	processor := worker.NewProcessor(worker.ProcessorConfig{
		Sessions:       sessions,
		Backend:        backendClient,
		Sender:         sender,
		BackendTimeout: cfg.BackendTimeout,
		GatewayTimeout: cfg.GatewayTimeout,
		Logger:         log,
	})
	pool := worker.NewPool(cfg.WorkerCount, cfg.MaxInFlight, processor.Process, log)

	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	var metricsDone chan struct{}
	if cfg.MetricsNamespace != "" && clients != nil {
		publisher := metrics.NewPublisher(clients.CloudWatch, cfg.MetricsNamespace, cfg.MetricsInterval, pool.Stats, log)
		metricsDone = make(chan struct{})
		go func() {
			publisher.Run(metricsCtx)
			close(metricsDone)
		}()
	}

	r := setupRouter(pool, webhook.HandlerConfig{
		Pool:             pool,
		Dedup:            dedupStore,
		DedupTTL:         cfg.DedupTTL,
		VerifyToken:      cfg.MetaVerifyToken,
		AppSecret:        cfg.MetaAppSecret,
		VerifySignatures: cfg.VerifyMetaSignatures,
		Logger:           log,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("webhook server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	// stop taking new webhooks, then drain whatever was already accepted
	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown incomplete")
	}

	drainCtx, cancelDrain := context.WithTimeout(ctx, 30*time.Second)
	defer cancelDrain()
	if err := pool.Stop(drainCtx); err != nil {
		log.WithError(err).Warn("worker drain incomplete")
	}

	stopMetrics()
	if metricsDone != nil {
		<-metricsDone
	}
	log.Info("shutdown complete")
}

// buildSessionStore wires the session store according to the configured mode:
// DynamoDB when a table is named and reachable, otherwise the in-memory
// fallback (or a refusal to start when the mode is "required").
func buildSessionStore(ctx context.Context, cfg config.Config, clients *aws.AWSClients, log *logrus.Logger) session.Store {
	if cfg.SessionsTable == "" {
		log.Warn("SESSIONS_TABLE not set; sessions are in-memory and lost on restart")
		return session.NewMemoryStore(cfg.SessionTTL)
	}

	store := session.NewDynamoStore(clients.DynamoDB, cfg.SessionsTable, cfg.SessionTTL)
	if err := store.Ping(ctx); err != nil {
		if cfg.SessionStoreMode == config.StoreModeRequired {
			log.Fatalf("sessions table %q unreachable: %v", cfg.SessionsTable, err)
		}
		log.WithError(err).Warnf("sessions table %q unreachable; falling back to in-memory store", cfg.SessionsTable)
		return session.NewMemoryStore(cfg.SessionTTL)
	}
	log.WithField("table", cfg.SessionsTable).Info("sessions on DynamoDB")
	return store
}

// buildDedupStore mirrors buildSessionStore for the message id dedup table.
func buildDedupStore(ctx context.Context, cfg config.Config, clients *aws.AWSClients, log *logrus.Logger) dedup.Store {
	if cfg.DedupTable == "" {
		log.Warn("DEDUP_TABLE not set; duplicate suppression is per-process only")
		return dedup.NewMemoryStore()
	}

	store := dedup.NewDynamoStore(clients.DynamoDB, cfg.DedupTable)
	if err := store.Ping(ctx); err != nil {
		if cfg.DedupStoreMode == config.StoreModeRequired {
			log.Fatalf("dedup table %q unreachable: %v", cfg.DedupTable, err)
		}
		log.WithError(err).Warnf("dedup table %q unreachable; falling back to in-memory store", cfg.DedupTable)
		return dedup.NewMemoryStore()
	}
	log.WithField("table", cfg.DedupTable).Info("dedup on DynamoDB")
	return store
}
