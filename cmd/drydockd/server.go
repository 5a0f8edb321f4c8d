package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/opst/drydock/cmd/drydockd/handlers"
	builddb "github.com/opst/drydock/pkg/domain/build/db"
	"github.com/opst/drydock/pkg/engine/builds"
	"github.com/opst/drydock/pkg/engine/cluster"
	"github.com/opst/drydock/pkg/engine/instances"
	"github.com/opst/drydock/pkg/engine/isolation"
	"github.com/opst/drydock/pkg/jobs"
)

var API_ROOT = "/api"

func api(subpath string) string {
	if !strings.HasSuffix(subpath, "/") {
		subpath += "/"
	}
	return fmt.Sprintf("%s/%s", API_ROOT, subpath)
}

// Services are what the API serves.
type Services struct {
	Builds       builddb.Interface
	Orchestrator builds.Orchestrator
	Coordinator  instances.Coordinator
	Isolation    isolation.Service
	Clusters     cluster.Provisioner
	Publisher    jobs.Publisher
}

func loglevel(e *echo.Echo, level string) {
	switch strings.ToLower(level) {
	case "debug":
		e.Logger.SetLevel(log.DEBUG)
	case "info":
		e.Logger.SetLevel(log.INFO)
	case "warn", "":
		e.Logger.SetLevel(log.WARN)
	case "error":
		e.Logger.SetLevel(log.ERROR)
	case "off":
		e.Logger.SetLevel(log.OFF)
	default:
		e.Logger.SetLevel(log.WARN)
		e.Logger.Warnf("unknown loglevel: %s . fall-backed to warn", level)
	}
}

func BuildServer(s Services, level string) *echo.Echo {
	e := echo.New()
	loglevel(e, level)

	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}

	e.Pre(middleware.AddTrailingSlash())

	// logging for server-side latency.
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			meth := c.Request().Method
			path := c.Request().URL
			begin := time.Now()
			c.Logger().Infof("< request %s %s", meth, path)

			err := next(c)

			c.Logger().Infof(
				"> response status = %d (for %s %s) in %v / error = %v",
				c.Response().Status, meth, path, time.Since(begin), err,
			)
			return err
		}
	})

	e.POST(api("builds"), handlers.PostBuildHandler(s.Orchestrator))
	e.GET(api("builds/:buildId"), handlers.GetBuildHandler(s.Builds, "buildId"))

	e.POST(api("instances"), handlers.PostInstanceHandler(s.Coordinator))
	e.DELETE(api("instances/:instanceId"), handlers.DeleteInstanceHandler(s.Publisher, "instanceId"))

	e.POST(api("isolations"), handlers.PostIsolationHandler(s.Isolation))
	e.DELETE(api("isolations/:isolationId"), handlers.DeleteIsolationHandler(s.Isolation, "isolationId"))
	e.PUT(api("isolations/:isolationId/kill"), handlers.KillIsolationHandler(s.Publisher, "isolationId"))

	e.POST(api("autoisolationconfigs"), handlers.PostAutoIsolationConfigHandler(s.Isolation))

	e.POST(api("clusters"), handlers.PostClusterHandler(s.Clusters))

	e.POST(api("events/containers/died"), handlers.ContainerDiedHandler(s.Publisher))
	e.POST(api("events/docks/removed"), handlers.DockRemovedHandler(s.Publisher))

	return e
}
