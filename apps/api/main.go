package main

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

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	activityhandler "github.com/Ixotic27/certifyhub/domains/activity/be/handler"
	activityservice "github.com/Ixotic27/certifyhub/domains/activity/be/service"
	adminshandler "github.com/Ixotic27/certifyhub/domains/admins/be/handler"
	adminsrepo "github.com/Ixotic27/certifyhub/domains/admins/be/repo"
	adminsservice "github.com/Ixotic27/certifyhub/domains/admins/be/service"
	certificateshandler "github.com/Ixotic27/certifyhub/domains/certificates/be/handler"
	"github.com/Ixotic27/certifyhub/domains/certificates/be/ledger"
	"github.com/Ixotic27/certifyhub/domains/certificates/be/render"
	certificatesrepo "github.com/Ixotic27/certifyhub/domains/certificates/be/repo"
	certificatesservice "github.com/Ixotic27/certifyhub/domains/certificates/be/service"
	clubshandler "github.com/Ixotic27/certifyhub/domains/clubs/be/handler"
	clubsrepo "github.com/Ixotic27/certifyhub/domains/clubs/be/repo"
	clubsservice "github.com/Ixotic27/certifyhub/domains/clubs/be/service"
	eventshandler "github.com/Ixotic27/certifyhub/domains/events/be/handler"
	eventsrepo "github.com/Ixotic27/certifyhub/domains/events/be/repo"
	eventsservice "github.com/Ixotic27/certifyhub/domains/events/be/service"
	rosterhandler "github.com/Ixotic27/certifyhub/domains/roster/be/handler"
	rosterrepo "github.com/Ixotic27/certifyhub/domains/roster/be/repo"
	rosterservice "github.com/Ixotic27/certifyhub/domains/roster/be/service"
	templateshandler "github.com/Ixotic27/certifyhub/domains/templates/be/handler"
	templatesrepo "github.com/Ixotic27/certifyhub/domains/templates/be/repo"
	templatesservice "github.com/Ixotic27/certifyhub/domains/templates/be/service"
	platformlogging "github.com/Ixotic27/certifyhub/platform/go/logging"
	"github.com/Ixotic27/certifyhub/platform/go/metrics"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
	"github.com/Ixotic27/certifyhub/platform/go/quota"
	"github.com/Ixotic27/certifyhub/platform/go/storage"
	tenantmiddleware "github.com/Ixotic27/certifyhub/platform/go/tenant/middleware"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
		FilePath:  cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}

// stores groups the postgres stores shared by the domain repositories.
type stores struct {
	clubs       *persistence.ClubStore
	admins      *persistence.AdminStore
	templates   *persistence.TemplateStore
	attendees   *persistence.AttendeeStore
	imports     *persistence.ImportStore
	events      *persistence.EventStore
	generations *persistence.GenerationStore
	activity    *persistence.ActivityStore
	usage       *persistence.UsageStore
}

func newStores(ctx context.Context, pool *pgxpool.Pool) (stores, error) {
	var s stores
	var err error
	if s.clubs, err = persistence.NewClubStore(ctx, pool); err != nil {
		return s, fmt.Errorf("init club store: %w", err)
	}
	if s.admins, err = persistence.NewAdminStore(ctx, pool); err != nil {
		return s, fmt.Errorf("init admin store: %w", err)
	}
	if s.templates, err = persistence.NewTemplateStore(ctx, pool); err != nil {
		return s, fmt.Errorf("init template store: %w", err)
	}
	if s.attendees, err = persistence.NewAttendeeStore(ctx, pool); err != nil {
		return s, fmt.Errorf("init attendee store: %w", err)
	}
	if s.imports, err = persistence.NewImportStore(ctx, pool); err != nil {
		return s, fmt.Errorf("init import store: %w", err)
	}
	if s.events, err = persistence.NewEventStore(ctx, pool); err != nil {
		return s, fmt.Errorf("init event store: %w", err)
	}
	if s.generations, err = persistence.NewGenerationStore(ctx, pool); err != nil {
		return s, fmt.Errorf("init generation store: %w", err)
	}
	if s.activity, err = persistence.NewActivityStore(ctx, pool); err != nil {
		return s, fmt.Errorf("init activity store: %w", err)
	}
	if s.usage, err = persistence.NewUsageStore(ctx, pool); err != nil {
		return s, fmt.Errorf("init usage store: %w", err)
	}
	return s, nil
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString:       cfg.DatabaseURL,
		ApplicationName:  "certifyhub-api",
		MaxConns:         cfg.DBMaxConns,
		StatementTimeout: cfg.statementTimeout(),
	})
	if err != nil {
		return fmt.Errorf("init postgres pool: %w", err)
	}
	defer persistence.ClosePool(pool)

	st, err := newStores(ctx, pool)
	if err != nil {
		return err
	}

	objects, err := buildObjectStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer objects.close()

	authMiddleware, identities, err := buildAuth(ctx, cfg, logger)
	if err != nil {
		return err
	}

	m := metrics.New(cfg.MetricsNamespace)
	activity := activityservice.New(st.activity, logger.Named("activity"), m)
	quotaChecker := quota.Checker{Usage: st.usage, ClubLimit: cfg.ClubQuotaBytes, PlatformLimit: cfg.PlatformQuotaBytes}

	clubService := clubsservice.New(clubsrepo.NewPostgresRepository(st.clubs, st.templates, st.usage), clubsservice.Deps{
		Objects:       objects.store,
		Activity:      activity,
		Logger:        logger.Named("clubs"),
		ClubLimit:     cfg.ClubQuotaBytes,
		PlatformLimit: cfg.PlatformQuotaBytes,
	})

	adminService := adminsservice.New(adminsrepo.NewPostgresRepository(st.admins, st.clubs), adminsservice.Deps{
		Identities: identities,
		Activity:   activity,
		Logger:     logger.Named("admins"),
	})

	templateService := templatesservice.New(templatesrepo.NewPostgresRepository(st.templates), templatesservice.Config{
		MaxUploadSize:     cfg.MaxUploadSize,
		AllowedImageTypes: cfg.imageTypes(),
	}, templatesservice.Deps{
		Objects:  objects.store,
		Quota:    quotaChecker,
		Activity: activity,
		Logger:   logger.Named("templates"),
	})

	rosterRepo, err := rosterrepo.NewPostgresRepository(st.attendees, st.imports, st.templates)
	if err != nil {
		return fmt.Errorf("init roster repository: %w", err)
	}
	scope, err := cfg.dedupScope()
	if err != nil {
		return err
	}
	rosterService := rosterservice.New(rosterRepo, rosterservice.Config{
		DedupScope:  scope,
		MaxFileSize: cfg.MaxUploadSize,
	}, rosterservice.Deps{
		Objects:  objects.store,
		Quota:    quotaChecker,
		Activity: activity,
		Metrics:  m,
		Logger:   logger.Named("roster"),
	})

	eventsRepo, err := eventsrepo.NewPostgresRepository(st.events, st.templates, st.imports)
	if err != nil {
		return fmt.Errorf("init events repository: %w", err)
	}
	eventService := eventsservice.New(eventsRepo, activity)

	certRepo := certificatesrepo.NewPostgresRepository(st.clubs, st.templates, st.attendees, st.events, st.generations)
	composer := render.NewComposer(render.Options{
		Fonts:               render.NewFontLoader(cfg.FontDirs, logger.Named("fonts")),
		BlankCanvasFallback: cfg.blankCanvasFallback(),
		RequireEventDate:    cfg.RequireEventDate,
	})
	certService := certificatesservice.New(
		certRepo,
		ledger.New(certRepo, activity, m),
		storage.NewFetcher(objects.store, 4*cfg.MaxUploadSize),
		composer,
		certificatesservice.Config{GlobalLookup: cfg.GlobalLookup},
		m,
		logger.Named("certificates"),
	)

	clubHTTP := clubshandler.New(clubService, logger)
	adminHTTP := adminshandler.New(adminService, logger)
	templateHTTP := templateshandler.New(templateService, logger, cfg.MaxUploadSize)
	rosterHTTP := rosterhandler.New(rosterService, logger, cfg.MaxUploadSize)
	eventHTTP := eventshandler.New(eventService, logger)
	certHTTP := certificateshandler.New(certService, logger)
	activityHTTP := activityhandler.New(activity, logger)

	router, err := newRouter(routerDeps{
		Logger:         logger,
		Metrics:        m,
		RequestTimeout: cfg.RequestTimeout,
		Auth:           authMiddleware,
		ClubSpace:      tenantmiddleware.WithClubSpace(clubService, tenantmiddleware.Config{CacheTTL: cfg.ClubSpaceCacheTTL}),
		Ready: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			return objects.store.Check(ctx)
		},
		Public:    []publicRoutes{clubHTTP, certHTTP},
		Admin:     []adminRoutes{clubHTTP, templateHTTP, rosterHTTP, eventHTTP, certHTTP, activityHTTP},
		Platform:  []platformRoutes{clubHTTP, adminHTTP},
		FilesPath: objects.filesPath,
		Files:     objects.files,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * cfg.RequestTimeout,
		IdleTimeout:  2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
