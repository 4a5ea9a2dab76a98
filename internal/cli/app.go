package cli

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/alexanderramin/sitesync/internal/aggregate"
	"github.com/alexanderramin/sitesync/internal/auth"
	"github.com/alexanderramin/sitesync/internal/changefeed"
	"github.com/alexanderramin/sitesync/internal/config"
	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/repository"
	"github.com/alexanderramin/sitesync/internal/report"
	"github.com/alexanderramin/sitesync/internal/service"
	"github.com/alexanderramin/sitesync/internal/session"
	"github.com/alexanderramin/sitesync/internal/store"
)

// App holds the wired sync layer and the services commands write through.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	DB        *sql.DB
	Dialect   db.Dialect
	Auth      *auth.Authenticator
	Repos     *repository.Set
	Stores    *store.Stores
	Engine    *aggregate.Engine
	Session   *session.Hydrator
	Feed      *changefeed.Multiplexer
	Transport changefeed.Transport
	Sink      report.Sink

	Projects  service.ProjectService
	Phases    service.PhaseService
	Tasks     service.TaskService
	Materials service.MaterialService
	Requests  service.RequestService
	Templates service.TemplateService

	// Start runs after wiring for transports that need a live connection.
	// Commands that only read local state never call it.
	Start func(ctx context.Context) error

	closers []func() error
}

// Builder opens an App from a config file path. An empty path means
// defaults plus environment.
type Builder func(ctx context.Context, configPath string) (*App, error)

// OnClose registers fn to run when the App is closed, in reverse order.
func (a *App) OnClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases everything registered with OnClose.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// identity parses the bearer token for the command.
func (a *App) identity(token string) (auth.Identity, error) {
	if token == "" {
		return auth.Identity{}, errors.New("a token is required (use --token or SITESYNC_TOKEN)")
	}
	return a.Auth.Parse(token)
}

// touch records activity; failures are logged and otherwise ignored.
func (a *App) touch(ctx context.Context) {
	if a.Session == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.Session.Touch(ctx); err != nil {
		a.Logger.Warn("recording activity", zap.Error(err))
	}
}
