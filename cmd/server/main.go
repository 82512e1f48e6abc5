package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourusername/trafficcam/internal/api"
	"github.com/yourusername/trafficcam/internal/client"
	"github.com/yourusername/trafficcam/internal/core"
	"github.com/yourusername/trafficcam/internal/database"
	"github.com/yourusername/trafficcam/internal/metrics"
	"github.com/yourusername/trafficcam/internal/panel"
	"github.com/yourusername/trafficcam/internal/signaling"
	"github.com/yourusername/trafficcam/pkg/logger"
	"go.uber.org/zap"
)

const (
	defaultConfigPath = "configs/config.yaml"
	version           = "0.1.0"
)

func main() {
	// 커맨드라인 플래그 파싱
	configPath := flag.String("config", defaultConfigPath, "설정 파일 경로")
	showVersion := flag.Bool("version", false, "버전 정보 출력")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Traffic Camera Panel Server v%s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	config, err := core.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(logger.LogConfig{
		Level:      config.Logging.Level,
		Output:     config.Logging.Output,
		FilePath:   config.Logging.FilePath,
		MaxSize:    config.Logging.MaxSize,
		MaxBackups: config.Logging.MaxBackups,
		MaxAge:     config.Logging.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Info("Starting Traffic Camera Panel Server",
		zap.String("version", version),
		zap.String("go_version", runtime.Version()),
		zap.Int("num_cpu", runtime.NumCPU()),
	)

	logger.Info("Server configuration",
		zap.Int("http_port", config.Server.HTTPPort),
		zap.Bool("production", config.Server.Production),
		zap.String("provider", config.Provider.Source),
		zap.Int("max_results", config.Panel.MaxResults),
		zap.Bool("metrics", config.Metrics.Enabled),
	)

	app, err := initializeApplication(config)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer app.cleanup()

	logger.Info("All components initialized successfully")

	if err := app.apiServer.Start(); err != nil {
		logger.Fatal("Failed to start API server", zap.Error(err))
	}

	// 종료 시그널 대기
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	logger.Info("Received shutdown signal",
		zap.String("signal", sig.String()),
	)
}

// Application은 애플리케이션 컴포넌트들을 관리합니다
type Application struct {
	config          *core.Config
	db              *database.DB
	catalog         *database.CameraRepository
	apiClient       *client.APIClient
	metrics         *metrics.Metrics
	panel           *panel.Panel
	signalingServer *signaling.Server
	apiServer       *api.Server
	startedAt       time.Time
}

// initializeApplication은 애플리케이션 컴포넌트들을 초기화합니다
func initializeApplication(config *core.Config) (*Application, error) {
	app := &Application{
		config:    config,
		startedAt: time.Now(),
	}
	log := logger.L()

	// 1. 카탈로그 데이터베이스
	db, err := database.New(config.Database.Path, log.Named("database"))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	app.db = db
	app.catalog = database.NewCameraRepository(db, log.Named("catalog"))

	if err := app.seedCatalog(); err != nil {
		app.cleanup()
		return nil, err
	}

	// 2. 지표
	var metricsHandler http.Handler
	if config.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		app.metrics = metrics.New(registry)
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	// 3. 외부 API 클라이언트 (프레임은 항상 이미지 URL로 가져옵니다)
	app.apiClient = client.NewAPIClient(client.Config{
		BaseURL:           config.Provider.APIURL,
		APIKey:            config.Provider.APIKey,
		Timeout:           config.Provider.RequestTimeout(),
		RequestsPerSecond: config.Provider.RequestsPerSecond,
		Breaker: client.BreakerConfig{
			MaxRequests:      config.Provider.Breaker.MaxRequests,
			Interval:         time.Duration(config.Provider.Breaker.IntervalSec) * time.Second,
			Timeout:          time.Duration(config.Provider.Breaker.TimeoutSec) * time.Second,
			FailureThreshold: config.Provider.Breaker.FailureThreshold,
		},
		Logger:  log.Named("client"),
		Metrics: app.metrics,
	})

	var resultFetcher panel.ResultFetcher = app.apiClient
	if config.Provider.Source == core.SourceCatalog {
		resultFetcher = app.catalog
	}

	// 4. 시그널링 서버 (마커 레지스트리)
	app.signalingServer = signaling.NewServer(signaling.ServerConfig{
		Logger: log.Named("signaling"),
	})

	// 5. 패널
	app.panel = panel.New(panel.Config{
		Logger:             log.Named("panel"),
		Results:            resultFetcher,
		Frames:             app.apiClient,
		Markers:            app.signalingServer,
		Metrics:            app.metrics,
		MaxResults:         config.Panel.MaxResults,
		FrameInterval:      config.Panel.FrameInterval(),
		MinRefreshInterval: config.Panel.MinRefreshInterval(),
		FetchTimeout:       config.Panel.FetchTimeout(),
	})
	app.signalingServer.Attach(app.panel)

	// 6. API 서버
	app.apiServer = api.NewServer(api.ServerConfig{
		Port:       config.Server.HTTPPort,
		Production: config.Server.Production,
		Logger:     log.Named("api"),
		Panel:      app.panel,
		Catalog:    app.catalog,
		HealthHandler: func() map[string]interface{} {
			snap := app.panel.Snapshot()
			health := map[string]interface{}{
				"status":   "ok",
				"version":  version,
				"uptime":   time.Since(app.startedAt).Round(time.Second).String(),
				"clients":  app.signalingServer.GetClientCount(),
				"results":  app.panel.Results().Len(),
				"polling":  snap.Polling,
				"playing":  snap.Playing,
				"provider": config.Provider.Source,
			}
			if snap.Selected != nil {
				health["selected"] = snap.Selected.ID()
			}
			return health
		},
		MetricsHandler:   metricsHandler,
		WebSocketHandler: app.signalingServer.HandleWebSocket,
	})

	return app, nil
}

// seedCatalog는 설정 파일의 카메라를 카탈로그에 넣습니다
func (app *Application) seedCatalog() error {
	ctx := context.Background()
	for _, cam := range app.config.Catalog.Cameras {
		err := app.catalog.Upsert(ctx, &database.Camera{
			ID:          cam.ID,
			Name:        cam.Name,
			Latitude:    cam.Latitude,
			Longitude:   cam.Longitude,
			RefreshRate: cam.RefreshRate,
			ImageURL:    cam.ImageURL,
		})
		if err != nil {
			return fmt.Errorf("failed to seed catalog camera %s: %w", cam.ID, err)
		}
	}

	count, err := app.catalog.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("Camera catalog ready",
		zap.Int("seeded", len(app.config.Catalog.Cameras)),
		zap.Int("total", count),
	)
	return nil
}

// cleanup은 애플리케이션 리소스를 정리합니다
func (app *Application) cleanup() {
	logger.Info("Cleaning up application resources")

	if app.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := app.apiServer.Stop(ctx); err != nil {
			logger.Warn("API server shutdown", zap.Error(err))
		}
		cancel()
	}

	if app.panel != nil {
		app.panel.Close()
	}

	if app.signalingServer != nil {
		app.signalingServer.Close()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}

	logger.Info("Cleanup completed")
}
