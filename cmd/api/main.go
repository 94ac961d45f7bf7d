package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yuya-sudo/yuya-api/internal/handlers"
	"github.com/yuya-sudo/yuya-api/internal/platform/auth"
	"github.com/yuya-sudo/yuya-api/internal/platform/changefeed"
	"github.com/yuya-sudo/yuya-api/internal/platform/config"
	pfirestore "github.com/yuya-sudo/yuya-api/internal/platform/firestore"
	"github.com/yuya-sudo/yuya-api/internal/platform/idempotency"
	"github.com/yuya-sudo/yuya-api/internal/platform/metadata"
	"github.com/yuya-sudo/yuya-api/internal/platform/observability"
	"github.com/yuya-sudo/yuya-api/internal/platform/secrets"
	"github.com/yuya-sudo/yuya-api/internal/repositories"
	firestoreRepo "github.com/yuya-sudo/yuya-api/internal/repositories/firestore"
	"github.com/yuya-sudo/yuya-api/internal/services"
)

const cartPurgeInterval = time.Hour

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets("Catalog.APIKey", "Admin.Token"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	cartRepo, err := firestoreRepo.NewCartRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}
	configRepo, err := firestoreRepo.NewConfigRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise config repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}

	metadataClient, err := metadata.NewClient(metadata.ClientDeps{
		BaseURL:      cfg.Catalog.BaseURL,
		ImageBaseURL: cfg.Catalog.ImageBaseURL,
		APIKey:       cfg.Catalog.APIKey,
		Language:     cfg.Catalog.Language,
		Timeout:      cfg.Catalog.Timeout,
	})
	if err != nil {
		logger.Fatal("failed to initialise metadata client", zap.Error(err))
	}

	feed := changefeed.NewMemoryFeed()
	defer feed.Close()

	configPublisher := changefeed.Publisher(feed)
	var pubsubClient *pubsub.Client
	if projectID := strings.TrimSpace(cfg.PubSub.ProjectID); projectID != "" {
		pubsubClient, err = pubsub.NewClient(ctx, projectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		topicPublisher, err := changefeed.NewPubSubPublisher(pubsubClient.Topic(cfg.PubSub.ConfigTopic))
		if err != nil {
			logger.Fatal("failed to initialise config topic publisher", zap.Error(err))
		}
		configPublisher = fanoutPublisher{feed, topicPublisher}
	}

	configService, err := services.NewConfigService(services.ConfigServiceDeps{
		Repository:   configRepo,
		Publisher:    configPublisher,
		Feed:         feed,
		Clock:        time.Now,
		Logger:       zapEventLogger(logger.Named("config")),
		PollInterval: cfg.PubSub.PollInterval,
	})
	if err != nil {
		logger.Fatal("failed to initialise config service", zap.Error(err))
	}

	pricingEngine, err := services.NewCartPricingEngine(services.CartPricingEngineDeps{
		Now:    time.Now,
		Logger: zapEventLogger(logger.Named("pricing")),
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing engine", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Repository: cartRepo,
		Pricer:     pricingEngine,
		Config:     configService,
		Clock:      time.Now,
		Logger:     zapEventLogger(logger.Named("cart")),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:         cartService,
		Config:        configService,
		Orders:        orderRepo,
		Clock:         time.Now,
		Logger:        zapEventLogger(logger.Named("checkout")),
		WhatsAppPhone: cfg.WhatsApp.PhoneNumber,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Metadata: metadataClient,
		Config:   configService,
		Clock:    time.Now,
		Logger:   zapEventLogger(logger.Named("catalog")),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	systemService, err := newSystemService(firestoreClient, fetcher)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	var backgroundWG sync.WaitGroup

	if cfg.Idempotency.CleanupInterval > 0 {
		backgroundWG.Add(1)
		go func() {
			defer backgroundWG.Done()
			cleanupLogger := logger.Named("idempotency")
			ticker := time.NewTicker(cfg.Idempotency.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					runCtx, cancel := context.WithTimeout(backgroundCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-backgroundCtx.Done():
					return
				}
			}
		}()
	}

	// The config service keeps its watchers fresh from the change feed and
	// the poll fallback for the lifetime of the process.
	backgroundWG.Add(1)
	go func() {
		defer backgroundWG.Done()
		if err := configService.Run(backgroundCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Named("config").Error("config watcher stopped", zap.Error(err))
		}
	}()

	if cfg.Cart.TTL > 0 {
		backgroundWG.Add(1)
		go func() {
			defer backgroundWG.Done()
			purgeLogger := logger.Named("cart")
			ticker := time.NewTicker(cartPurgeInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					runCtx, cancel := context.WithTimeout(backgroundCtx, time.Minute)
					purged, err := cartService.PurgeExpired(runCtx, cfg.Cart.TTL, 200)
					cancel()
					if err != nil {
						purgeLogger.Error("cart purge error", zap.Error(err))
						continue
					}
					if purged > 0 {
						purgeLogger.Info("purged abandoned carts", zap.Int("count", purged))
					}
				case <-backgroundCtx.Done():
					return
				}
			}
		}()
	}

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	cartHandlers := handlers.NewCartHandlers(cartService)
	checkoutHandlers := handlers.NewCheckoutHandlers(
		checkoutService,
		handlers.WithComposeIdempotency(idempotencyMiddleware),
	)
	catalogHandlers := handlers.NewCatalogHandlers(catalogService)
	adminHandlers := handlers.NewAdminConfigHandlers(configService)
	publicConfigHandlers := handlers.NewPublicConfigHandlers(configService)
	healthHandlers := handlers.NewHealthHandlers(systemService)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithPublicConfigRoutes(publicConfigHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
		handlers.WithSessionMiddlewares(handlers.SessionMiddleware(cfg.Session.Header, nil)),
		handlers.WithAdminMiddlewares(
			auth.AdminTokenMiddleware(cfg.Admin.Token),
			idempotencyMiddleware,
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	backgroundCancel()
	backgroundWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// fanoutPublisher mirrors config change events to every configured sink.
type fanoutPublisher []changefeed.Publisher

func (p fanoutPublisher) Publish(ctx context.Context, event changefeed.Event) error {
	var firstErr error
	for _, sink := range p {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func zapEventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service log", zFields...)
	}
}

func newSystemService(client *firestore.Client, fetcher *secrets.Fetcher) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
	})
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firestore.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.PubSub.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	envLabel := strings.ToLower(lookup("API_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	projectMap := secretProjectMapFromEnv(env)
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	versionPins := secretVersionPinsFromEnv(env)
	credentialsFile := lookup("API_GOOGLE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if len(versionPins) > 0 {
		opts = append(opts, secrets.WithVersionPins(versionPins))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

func secretProjectMapFromEnv(env map[string]string) map[string]string {
	raw := ""
	if env != nil {
		raw = env["API_SECRET_PROJECT_IDS"]
	}
	raw = strings.TrimSpace(raw)
	projects := make(map[string]string)
	if raw == "" {
		return projects
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		envLabel := strings.ToLower(strings.TrimSpace(parts[0]))
		project := strings.TrimSpace(parts[1])
		if envLabel == "" || project == "" {
			continue
		}
		projects[envLabel] = project
	}
	return projects
}

func secretVersionPinsFromEnv(env map[string]string) map[string]string {
	raw := ""
	if env != nil {
		raw = env["API_SECRET_VERSION_PINS"]
	}
	raw = strings.TrimSpace(raw)
	pins := make(map[string]string)
	if raw == "" {
		return pins
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		ref := strings.TrimSpace(parts[0])
		version := strings.TrimSpace(parts[1])
		if ref == "" || version == "" {
			continue
		}
		var prefix string
		if idx := strings.Index(ref, ":"); idx > 0 {
			schemeSplit := strings.Index(ref, "://")
			if schemeSplit == -1 || idx < schemeSplit {
				prefix = strings.ToLower(strings.TrimSpace(ref[:idx])) + ":"
				ref = strings.TrimSpace(ref[idx+1:])
			}
		}
		if strings.HasPrefix(ref, "sm://") {
			ref = "secret://" + strings.TrimPrefix(ref, "sm://")
		} else if !strings.HasPrefix(ref, "secret://") {
			ref = "secret://" + ref
		}
		ref = prefix + ref
		pins[ref] = version
	}
	return pins
}
