package middleware

import (
	"context"

	"github.com/OFFIS-RIT/kgops/internal/queue"
	"github.com/OFFIS-RIT/kgops/pkg/ai"
	"github.com/OFFIS-RIT/kgops/pkg/analytics"
	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/finetune"
	"github.com/OFFIS-RIT/kgops/pkg/training"
	"github.com/OFFIS-RIT/kgops/pkg/transfer"
	"github.com/OFFIS-RIT/kgops/pkg/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// AppUser is the authenticated caller. UserID matches the user IDs stored
// on documents and interactions.
type AppUser struct {
	UserID string
	Role   string
}

type Validator interface {
	Validate(ctx context.Context, userID string) (validation.Report, error)
}

type Analyzer interface {
	ForUser(ctx context.Context, userID string) (analytics.Report, error)
}

type Exporter interface {
	Export(ctx context.Context, userID string) (*transfer.ExportFile, error)
}

type Collector interface {
	Collect(ctx context.Context, userID string, cfg training.Config) (training.Result, error)
	Defaults() training.Config
}

type FineTuner interface {
	Submit(ctx context.Context, req finetune.SubmitRequest) (common.FineTuneJob, error)
	Status(ctx context.Context, jobID string) (ai.JobStatus, error)
	ListJobs(ctx context.Context, userID string) ([]ai.JobStatus, error)
	Evaluate(ctx context.Context, modelID, userID string) (finetune.Evaluation, error)
}

type App struct {
	Queue    queue.Publisher
	KeyFunc  jwt.Keyfunc
	Validate Validator
	Analyze  Analyzer
	Export   Exporter
	Collect  Collector
	FineTune FineTuner

	MasterAPIKey string
	AdminRole    string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
