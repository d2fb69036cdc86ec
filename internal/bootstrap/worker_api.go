package bootstrap

import (
	"errors"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	apihttp "apptrack_worker/adapter/in/http"
	"apptrack_worker/config"
	"apptrack_worker/pkg/apperr"
)

// NewAPI builds the HTTP entry point: health endpoints plus the analysis
// API. The API shares the dependency graph shape with the worker but runs
// no pool of its own; async ingestion goes through the stream producer.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg, "apptrack-api")
	if err != nil {
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		// go-json is noticeably faster than encoding/json for our payloads.
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 10 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	healthHandler := apihttp.NewHealthHandler(deps.DB, deps.Redis, deps.MongoDB, nil)
	healthHandler.Register(app)

	analysisHandler := apihttp.NewAnalysisHandler(deps.Orchestrator, deps.Producer, deps.Store, deps.Log)
	analysisHandler.Register(app)

	deps.Log.Info().Msg("api initialized")

	return app, cleanup, nil
}

// errorHandler converts errors escaping handlers into the standard response
// envelope.
func errorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return apihttp.ErrorResponse(c, fiberErr.Code, apperr.CodeInternalError, fiberErr.Message)
		}
		return apihttp.AppErrorResponse(c, err)
	}
}
