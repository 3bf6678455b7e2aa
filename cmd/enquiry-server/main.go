// cmd/enquiry-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"estate-assistant/internal/common/aws"
	"estate-assistant/internal/common/config"
	"estate-assistant/internal/common/database"
	httpclient "estate-assistant/internal/common/http"
	"estate-assistant/internal/common/logger"
	"estate-assistant/internal/common/observability"
	"estate-assistant/internal/common/twilio"
	"estate-assistant/internal/common/zoho"
	"estate-assistant/internal/server"

	cr "estate-assistant/internal/workers/ai-conversation/compose-reply"
	pe "estate-assistant/internal/workers/application/process-enquiry"
	cd "estate-assistant/internal/workers/communication/channel-dispatch"
	ie "estate-assistant/internal/workers/communication/inbound-enquiry"
	sa "estate-assistant/internal/workers/communication/staff-alert"
	clc "estate-assistant/internal/workers/crm/crm-lead-create"
	lkb "estate-assistant/internal/workers/data-access/load-knowledge-base"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	zapLog.Info("Starting enquiry server...", zap.String("environment", cfg.App.Environment))

	ctx := context.Background()

	// --- Observability ---
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Observability.Tracing.Enabled,
		ServiceName: cfg.Observability.ServiceName,
		Environment: cfg.App.Environment,
		Version:     cfg.App.Version,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		Insecure:    cfg.Observability.Tracing.Insecure,
		SampleRatio: cfg.Observability.Tracing.SampleRatio,
	})
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}

	otelMetrics, err := observability.NewMetrics(cfg.Observability.ServiceName)
	if err != nil {
		zapLog.Warn("otel metrics disabled", zap.Error(err))
	}

	// --- Backing stores, only the ones the config asks for ---
	backends := lkb.Backends{}

	var redisClient *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		redisClient = database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		backends.Redis = redisClient.Client
		zapLog.Info("Redis connected successfully")
	}

	if cfg.KnowledgeBase.Source == config.SourcePostgres {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		backends.Postgres = pg.DB
		zapLog.Info("PostgreSQL connected successfully")
	}

	if cfg.KnowledgeBase.Source == config.SourceElasticsearch {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		backends.Elasticsearch = esClient.Client
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Knowledge base, loaded once ---
	loader, err := lkb.NewHandler(lkb.LoadConfig(cfg.KnowledgeBase), backends, log)
	if err != nil {
		zapLog.Fatal("knowledge base loader config invalid", zap.Error(err))
	}
	kb, err := loader.Load(ctx)
	if err != nil {
		zapLog.Fatal("knowledge base load failed", zap.Error(err))
	}

	// --- Outbound channels ---
	hc := httpclient.NewClient(0)

	twilioClient, err := twilio.NewClient(twilio.Config{
		AccountSID:   cfg.Messaging.Twilio.AccountSID,
		AuthToken:    cfg.Messaging.Twilio.AuthToken,
		BaseURL:      cfg.Messaging.Twilio.BaseURL,
		SMSFrom:      cfg.Messaging.Twilio.SMSFrom,
		WhatsAppFrom: cfg.Messaging.Twilio.WhatsAppFrom,
	}, hc)
	if err != nil {
		zapLog.Fatal("twilio client init failed", zap.Error(err))
	}

	var smsSender cd.Sender = cd.NewTwilioSMSSender(twilioClient)
	if cfg.Messaging.SMSProvider == config.SMSProviderSNS {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Messaging.SNS.Region, cfg.Messaging.SNS.SenderID, cfg.Messaging.SNS.SMSType)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		smsSender = cd.NewSNSSMSSender(snsClient)
	}

	dispatchCfg, err := cd.LoadConfig(cfg.Messaging)
	if err != nil {
		zapLog.Fatal("dispatcher config invalid", zap.Error(err))
	}
	if !dispatchCfg.TestRecipient.IsZero() {
		zapLog.Warn("test recipient override active, all replies go to one number",
			zap.String("recipient", dispatchCfg.TestRecipient.Masked()))
	}
	dispatcher, err := cd.NewHandler(dispatchCfg, cd.NewTwilioWhatsAppSender(twilioClient), smsSender, log)
	if err != nil {
		zapLog.Fatal("dispatcher init failed", zap.Error(err))
	}

	// --- Composer ---
	var replyCache cr.ReplyCache
	if redisClient != nil {
		replyCache = cr.NewRedisReplyCache(redisClient.Client)
	}
	composer, err := cr.NewHandler(cr.LoadConfig(cfg.LLM), hc, replyCache, log)
	if err != nil {
		zapLog.Fatal("composer init failed", zap.Error(err))
	}

	// --- Inbound adapter ---
	parserCfg, err := ie.FromAppConfig(cfg.Messaging)
	if err != nil {
		zapLog.Fatal("inbound config invalid", zap.Error(err))
	}
	parser, err := ie.NewHandler(parserCfg, log)
	if err != nil {
		zapLog.Fatal("inbound adapter init failed", zap.Error(err))
	}

	// --- Optional follow-ups ---
	deps := pe.Dependencies{
		Parser:        parser,
		Composer:      composer,
		Dispatcher:    dispatcher,
		KnowledgeBase: kb,
		Metrics:       otelMetrics,
	}

	if cfg.Integrations.Zoho.Enabled {
		crm := zoho.NewCRMClient(cfg.Integrations.Zoho.AuthToken, cfg.Integrations.Zoho.BaseURL, hc)
		leads, err := clc.NewHandler(clc.LoadConfig(cfg.Integrations), crm, log)
		if err != nil {
			zapLog.Fatal("crm lead handler init failed", zap.Error(err))
		}
		deps.Leads = leads
		zapLog.Info("Zoho CRM lead capture enabled")
	}

	if cfg.Integrations.AWS.SES.Enabled {
		ses, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		alerts, err := sa.NewHandler(sa.LoadConfig(cfg.Integrations), ses, log)
		if err != nil {
			zapLog.Fatal("staff alert handler init failed", zap.Error(err))
		}
		deps.Alerts = alerts
		zapLog.Info("SES staff alerts enabled")
	}

	processor, err := pe.NewHandler(pe.DefaultConfig(), deps, log)
	if err != nil {
		zapLog.Fatal("processor init failed", zap.Error(err))
	}

	// --- HTTP ---
	router := server.SetupRoutes(
		server.NewEnquiryHandler(processor, cfg.Server.FallbackStatusCode, log),
		server.NewHealthHandler(kb),
		server.RouterOptions{
			MaxBodyBytes:       cfg.Server.MaxBodyBytes,
			CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		},
		log,
	)
	srv := server.New(cfg.Server, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	zapLog.Info("Enquiry server started",
		zap.String("address", cfg.Server.Address),
		zap.Int("knowledgeBaseTopics", kb.Len()),
		zap.String("smsProvider", cfg.Messaging.SMSProvider),
	)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zapLog.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			zapLog.Error("http server stopped unexpectedly", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown error", zap.Error(err))
	}
	if err := otelMetrics.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("otel metrics shutdown error", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLog.Warn("tracing shutdown error", zap.Error(err))
	}

	zapLog.Info("Enquiry server stopped")
}
