package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/OFFIS-RIT/kgops/internal/app"
	"github.com/OFFIS-RIT/kgops/internal/queue"
	mid "github.com/OFFIS-RIT/kgops/internal/server/middleware"
	"github.com/OFFIS-RIT/kgops/pkg/logger"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New builds the echo instance around app. Handlers only see the
// interfaces on mid.App.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("10M"))

	RegisterRoutes(e)
	return e
}

// Run serves the API until ctx is cancelled.
func Run(ctx context.Context, a *app.App) error {
	var keyFunc jwt.Keyfunc
	if a.Config.Server.AuthURL != "" {
		k, err := keyfunc.NewDefault([]string{a.Config.Server.AuthURL + "/jwks"})
		if err != nil {
			return err
		}
		keyFunc = k.Keyfunc
	}

	conn, err := queue.Dial(a.Config.RabbitMQ)
	if err != nil {
		return err
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		return err
	}

	e := New(&mid.App{
		Queue:        ch,
		KeyFunc:      keyFunc,
		Validate:     a.Validation,
		Analyze:      a.Analytics,
		Export:       a.Transfer,
		Collect:      a.Training,
		FineTune:     a.FineTune,
		MasterAPIKey: a.Config.Server.APIKey,
		AdminRole:    a.Config.Server.AdminRole,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", a.Config.Server.Port)
		if err := e.Start(":" + a.Config.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
	return nil
}
