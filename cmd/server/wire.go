package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"photobooth-kiosk/internal/booth"
	"photobooth-kiosk/internal/camera"
	"photobooth-kiosk/internal/capture"
	"photobooth-kiosk/internal/compositor"
	"photobooth-kiosk/internal/config"
	"photobooth-kiosk/internal/delivery"
	"photobooth-kiosk/internal/handlers"
	"photobooth-kiosk/internal/media"
	"photobooth-kiosk/internal/metrics"
	"photobooth-kiosk/internal/services"
	"photobooth-kiosk/internal/store"
	"photobooth-kiosk/internal/supabase"
)

// app holds the long-lived components of a running kiosk.
type app struct {
	records       store.RecordStore
	captures      store.ObjectStorage
	artwork       store.ObjectStorage
	local         *store.LocalStorage
	cameras       *camera.Manager
	templates     *services.TemplateService
	assets        *services.AssetService
	printerConfig *delivery.PrinterConfigStore
	printer       *delivery.LPPrinter
	controller    *booth.Controller

	closers []func() error
}

func build(cfg *config.Config, m *metrics.Metrics) (*app, error) {
	a := &app{}
	var events booth.EventSink
	var publisher *supabase.EventPublisher

	if cfg.UseSupabase() {
		client, err := supabase.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Supabase client: %w", err)
		}
		captures, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage client: %w", err)
		}
		a.captures = captures
		a.artwork = captures.WithBucket(cfg.TemplatesBucket)

		a.records = supabase.NewRestStore(client.Supabase)
		if cfg.DatabaseURL != "" {
			db, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to connect to DATABASE_URL, using the REST API for records")
			} else {
				a.records = db
				a.closers = append(a.closers, db.Close)
			}
		}

		publisher = supabase.NewEventPublisher(client.Supabase, cfg.BoothID)
		events = publisher
	} else {
		log.Warn().Str("dir", cfg.LocalStorageDir).Msg("Supabase not configured, running offline")
		local, err := store.NewLocalStorage(cfg.LocalStorageDir, cfg.BaseURL, cfg.LocalSigningKey())
		if err != nil {
			return nil, err
		}
		a.local = local
		a.captures = local
		a.artwork = local
		a.records = store.NewMemoryStore()
	}

	ffmpegPath := ""
	var device camera.Device
	recordClips := false
	if cfg.CameraDevice != "" {
		path, err := camera.ResolveFFmpeg(cfg.FFmpegPath)
		if err != nil {
			return nil, err
		}
		ffmpegPath = path
		clipDir := filepath.Join(os.TempDir(), "photobooth-clips")
		if err := os.MkdirAll(clipDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create clip directory: %w", err)
		}
		device = &camera.FFmpegDevice{
			FFmpegPath:  ffmpegPath,
			InputFormat: cfg.CameraInputFormat,
			Device:      cfg.CameraDevice,
			Width:       cfg.CameraWidth,
			Height:      cfg.CameraHeight,
			FPS:         cfg.CameraFPS,
			ClipDir:     clipDir,
		}
		recordClips = true
	} else {
		log.Warn().Msg("CAMERA_DEVICE not set, using the synthetic camera")
		device = camera.SolidColor(cfg.CameraWidth, cfg.CameraHeight, compositor.Background)
	}
	a.cameras = camera.NewManager(device, m)

	engine := capture.NewEngine(a.cameras, capture.Options{
		Countdown:   cfg.CountdownSeconds,
		Tick:        capture.DefaultOptions().Tick,
		PostRoll:    cfg.PostRoll,
		RecordClips: recordClips,
	}, m)

	var merger media.Merger
	if ffmpegPath != "" {
		merger = &media.FFmpegMerger{FFmpegPath: ffmpegPath, TempDir: os.TempDir()}
	}
	assetOpts := services.DefaultAssetOptions()
	assetOpts.SignedURLTTL = cfg.SignedURLTTL
	assetOpts.GIFDelay = cfg.GIFDelay
	a.assets = services.NewAssetService(a.captures, merger, assetOpts, m)
	if publisher != nil {
		a.assets.OnChange(assetEvents(publisher))
	}

	a.templates = services.NewTemplateService(a.records, a.artwork, cfg.SignedURLTTL)

	a.printerConfig = delivery.NewPrinterConfigStore(cfg.PrinterConfigFile)
	a.printer = delivery.NewLPPrinter(a.printerConfig, cfg.PrintDPI, m)
	a.closers = append(a.closers, func() error {
		a.printer.Wait()
		return nil
	})

	dispatcher := delivery.NewDispatcher(cfg.BaseURL, delivery.NewHTTPEmailSender(cfg.EmailEndpoint, cfg.EmailAPIKey), a.printer)

	a.controller = booth.NewController(booth.Deps{
		Records:    a.records,
		Templates:  a.templates,
		Engine:     engine,
		Compositor: compositor.New(m),
		Assets:     a.assets,
		Dispatcher: dispatcher,
		Events:     events,
		Metrics:    m,
	}, booth.Options{
		FinishTimeout:  cfg.FinishTimeout,
		SessionTimeout: cfg.SessionTimeout,
		UploadTimeout:  cfg.UploadTimeout,
	})

	return a, nil
}

// assetEvents forwards asset status changes to the booth_events table.
func assetEvents(p *supabase.EventPublisher) func(uuid.UUID, services.AssetState) {
	return func(txID uuid.UUID, st services.AssetState) {
		go func() {
			payload := supabase.AssetPayload(string(st.Asset), string(st.Status), st.URL)
			if err := p.Publish(txID, "asset_"+string(st.Status), payload); err != nil {
				log.Debug().Err(err).Str("asset", string(st.Asset)).Msg("failed to publish asset event")
			}
		}()
	}
}

func (a *app) routerDeps(cfg *config.Config, m *metrics.Metrics) handlers.RouterDeps {
	return handlers.RouterDeps{
		Booth:          a.controller,
		Templates:      a.templates,
		Records:        a.records,
		Assets:         a.assets,
		Cameras:        a.cameras,
		PrinterConfig:  a.printerConfig,
		Printer:        a.printer,
		LocalStorage:   a.local,
		Metrics:        m,
		BaseURL:        cfg.BaseURL,
		OperatorSecret: cfg.SupabaseJWTSecret,
	}
}

// Close abandons any session, waits for background uploads and print jobs,
// then closes the record store.
func (a *app) Close() {
	if err := a.controller.Reset(context.Background(), "shutdown"); err != nil {
		log.Warn().Err(err).Msg("failed to reset session on shutdown")
	}
	a.assets.Wait()
	if err := a.cameras.ForceRelease(); err != nil {
		log.Warn().Err(err).Msg("failed to release camera")
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}
