package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"docproc/internal/bootstrap/config"
	"docproc/internal/bootstrap/database"
	"docproc/internal/bootstrap/logging"
	cacheinfra "docproc/internal/infrastructure/cache"
	sqliterepo "docproc/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "docproc/internal/infrastructure/persistence/sqlite/uow"
	"docproc/internal/infrastructure/render"
	"docproc/internal/infrastructure/vision"
	"docproc/internal/interfaces/httpapi"
	"docproc/internal/ports"
	"docproc/internal/usecase/intake"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewDocumentRepository,
			fx.As(new(ports.DocumentRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideExtractor,
			fx.As(new(ports.Extractor)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideRenderer,
			fx.As(new(ports.PageRenderer)),
		),
	),
	fx.Provide(provideIntakeConfig),
	fx.Provide(intake.NewService),
	fx.Provide(provideHTTPServer),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideExtractor(cfg config.Config) *vision.OpenAIExtractor {
	return vision.NewOpenAIExtractor(vision.Config{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.VisionModel,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.Processing.Timeout(),
	})
}

func provideRenderer(cfg config.Config) *render.PdftoppmRenderer {
	return render.NewPdftoppmRenderer(cfg.Processing.PdftoppmPath, cfg.Processing.RenderDPI)
}

func provideIntakeConfig(cfg config.Config) intake.Config {
	return intake.Config{
		UploadDir:           cfg.Storage.UploadDir,
		ExportDir:           cfg.Storage.ExportDir,
		MaxFileSize:         cfg.Processing.MaxFileSize,
		AllowedExtensions:   cfg.Processing.AllowedExtensionList(),
		MaxConcurrent:       cfg.Processing.MaxConcurrent,
		ConfidenceThreshold: cfg.Processing.ConfidenceThreshold,
	}
}

func provideHTTPServer(cfg config.Config, svc *intake.Service) *httpapi.Server {
	handler := httpapi.NewHandler(svc, cfg.Processing.MaxFileSize)
	router := httpapi.NewRouter(handler, httpapi.RouterConfig{
		UploadDir: cfg.Storage.UploadDir,
		ExportDir: cfg.Storage.ExportDir,
	})
	return httpapi.NewServer(cfg.Server.Address(), router, svc)
}
