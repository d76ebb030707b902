package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	appservices "github.com/mshogin/assistant/internal/application/services"
	"github.com/mshogin/assistant/internal/domain/models"
	domainservices "github.com/mshogin/assistant/internal/domain/services"
	"github.com/mshogin/assistant/internal/domain/services/nlp"
	"github.com/mshogin/assistant/internal/infrastructure/calendar"
	"github.com/mshogin/assistant/internal/infrastructure/config"
	"github.com/mshogin/assistant/internal/infrastructure/contacts"
	"github.com/mshogin/assistant/internal/infrastructure/email"
	"github.com/mshogin/assistant/internal/infrastructure/googleauth"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
	"github.com/mshogin/assistant/internal/infrastructure/metrics"
	"github.com/mshogin/assistant/internal/infrastructure/providers"
	"github.com/mshogin/assistant/internal/infrastructure/transport"
	"github.com/mshogin/assistant/internal/presentation/api"
)

func main() {
	// Parse CLI flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	host := flag.String("host", "", "Server host (overrides config)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Apply CLI overrides
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Logger
	logger := logging.NewStructuredLogger(os.Stdout, logging.ParseLevel(cfg.Logging.Level))
	logging.SetDefaultLogger(logger)

	location := cfg.Location()
	now := func() time.Time { return time.Now().In(location) }

	// Language provider: first enabled one wins, in a fixed order.
	var provider domainservices.LanguageProvider
	for _, name := range []string{"openai", "ollama"} {
		providerCfg, ok := cfg.Providers[name]
		if !ok || !providerCfg.Enabled {
			continue
		}
		switch name {
		case "openai":
			provider = providers.NewOpenAIProvider(providerCfg)
		case "ollama":
			provider = providers.NewOllamaProvider(providerCfg)
		}
		logger.Info("language provider initialized", map[string]interface{}{
			"provider": name,
		})
		break
	}
	if provider == nil {
		logger.Info("no language provider enabled, running with local strategies only")
	}

	// Google collaborators
	tokens := googleauth.NewTokenSource(cfg.Google.TokenFile)
	googleCalendar := calendar.NewGoogleCalendar(cfg.Google.CalendarID, tokens, logger)
	googlePeople := contacts.NewGooglePeople(tokens, logger)
	gmailSender := email.NewGmailSender(cfg.Google.SenderAddress, tokens, logger)

	// Local contact cache
	contactStore, err := contacts.OpenSQLiteStore(cfg.Contacts.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open contacts database: %v", err)
	}
	defer contactStore.Close()
	syncer := contacts.NewSyncer(googlePeople, contactStore, logger)

	// Messaging transport
	whatsapp := transport.NewWhatsAppClient(cfg.WhatsApp, logger)

	// NLP pipeline
	parser := nlp.NewDateTimeParser()
	classifier := nlp.NewIntentClassifier(provider, logger)
	extractor := nlp.NewEntityExtractor(provider, parser, now, logger)

	// Metrics
	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(collector, "assistant")

	// Dialogue engine
	engine := appservices.NewEngine(appservices.Deps{
		Classifier:   classifier,
		Extractor:    extractor,
		Availability: appservices.NewAvailabilityResolver(googleCalendar, logger),
		Contacts:     appservices.NewContactLookup(logger, googlePeople, contactStore),
		Calendar:     googleCalendar,
		Email:        gmailSender,
		Transport:    whatsapp,
		Validator:    nlp.NewAddressChecker(),
		Syncer:       syncer,
		Metrics:      collector,
		Logger:       logger,
		Now:          now,
	}, appservices.Options{
		DefaultMeetingMinutes: cfg.Assistant.DefaultMeetingMinutes,
		FreeSlotWindowStart:   models.NewClockTime(cfg.Assistant.WorkdayStartHour, 0),
		FreeSlotWindowEnd:     models.NewClockTime(cfg.Assistant.WorkdayEndHour, 0),
		MaxAlternatives:       cfg.Assistant.MaxAlternatives,
		IdleTimeout:           cfg.Assistant.ConversationIdleTimeout,
	})

	// HTTP surface
	handlers := api.NewHandlers(engine, exporter, cfg.WhatsApp.VerifyToken, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	handlers.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", map[string]interface{}{
			"addr": addr,
		})
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)

	case sig := <-shutdown:
		logger.Info("shutting down", map[string]interface{}{
			"signal": sig.String(),
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", err)
			if err := server.Close(); err != nil {
				log.Fatalf("Failed to close server: %v", err)
			}
		}

		logger.Info("server stopped")
	}
}
