package calendar

import (
	"fmt"

	"smartschedule/core/cache"
	"smartschedule/core/config"
	"smartschedule/core/crypto"
	"smartschedule/core/database"
	"smartschedule/core/middleware"
	"smartschedule/core/storage"
	"smartschedule/core/worker"
	"smartschedule/modules/calendar/availability"
	"smartschedule/modules/calendar/controller"
	"smartschedule/modules/calendar/jobs"
	"smartschedule/modules/calendar/provider"
	"smartschedule/modules/calendar/repository"
	"smartschedule/modules/calendar/router"
	"smartschedule/modules/calendar/service"

	"github.com/labstack/echo/v4"
)

// Module exposes the calendar services other features consume.
type Module struct {
	Events       service.EventService
	Availability service.AvailabilityService
}

// Init wires the calendar feature. w may be nil when background workers are disabled.
func Init(e *echo.Echo, db database.IDatabase, c cache.Cache, w *worker.Worker, archive storage.Archive, cfg *config.Config) (*Module, error) {
	cipher, err := crypto.NewTokenCipher(cfg.Calendar.TokenEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("token cipher: %w", err)
	}

	// Initialize layers
	connectionRepo := repository.NewConnectionRepository(db, cipher)
	eventRepo := repository.NewEventRepository(db)

	oauthCfg := service.NewGoogleOAuthConfig(cfg.GoogleAPI)
	googleClient := provider.NewGoogleClient()

	credentials := service.NewCredentialService(connectionRepo, service.NewOAuthRefresher(oauthCfg), cfg.Calendar.TokenRefreshBuffer, nil)
	syncService := service.NewSyncService(
		connectionRepo,
		eventRepo,
		credentials,
		googleClient,
		service.NewSyncLocker(c, cfg.Calendar.SyncLockTTL),
		archive,
		service.SyncSettings{
			DefaultDays:     cfg.Calendar.DefaultSyncDays,
			TrailingDays:    cfg.Calendar.TrailingDays,
			DefaultTimezone: cfg.Calendar.DefaultTimezone,
			Timeout:         cfg.Calendar.SyncLockTTL,
		},
		nil,
	)
	eventService := service.NewEventService(connectionRepo, eventRepo, credentials, googleClient)
	availabilityService := service.NewAvailabilityService(
		connectionRepo,
		eventRepo,
		availability.NewResolver(cfg.Calendar.SlotStepMinutes),
		service.AvailabilitySettings{
			WorkdayStartHour: cfg.Calendar.WorkdayStartHour,
			WorkdayEndHour:   cfg.Calendar.WorkdayEndHour,
			DefaultTimezone:  cfg.Calendar.DefaultTimezone,
		},
		nil,
	)

	var enqueuer service.SyncEnqueuer
	if w != nil {
		syncJobs := jobs.NewSyncJobs(connectionRepo, syncService, w, cfg.Calendar.SyncLockTTL)
		if err := syncJobs.Register(w, cfg.Calendar.SyncCron); err != nil {
			return nil, err
		}
		enqueuer = syncJobs
	}

	oauthService := service.NewOAuthService(
		oauthCfg,
		service.NewStateCodec(cfg.Calendar.StateSecret, cfg.Calendar.StateTTL, c, nil),
		connectionRepo,
		googleClient,
		enqueuer,
		cfg.Calendar.AllowedRedirectHost,
		nil,
	)

	calendarController := controller.NewCalendarController(
		service.NewConnectionService(connectionRepo),
		oauthService,
		syncService,
		eventService,
		availabilityService,
	)

	// Setup routes
	router.NewCalendarRouter(calendarController).Setup(e, middleware.AuthMiddleware())

	return &Module{Events: eventService, Availability: availabilityService}, nil
}
