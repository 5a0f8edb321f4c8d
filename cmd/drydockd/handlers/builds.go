package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/drydock/pkg/api/errors"
	"github.com/opst/drydock/pkg/api/types"
	"github.com/opst/drydock/pkg/domain"
	builddb "github.com/opst/drydock/pkg/domain/build/db"
	"github.com/opst/drydock/pkg/engine/builds"
)

func PostBuildHandler(orchestrator builds.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := bind[types.BuildRequest](c)
		if err != nil {
			return err
		}

		specs := make([]domain.BuildSpec, 0, len(req.Specs))
		for _, s := range req.Specs {
			specs = append(specs, s.Domain())
		}

		build, err := orchestrator.Request(c.Request().Context(), builds.BuildRequest{
			Owner:           req.Owner,
			CreatedBy:       req.CreatedBy,
			TriggeredAction: req.TriggeredAction,
			Specs:           specs,
		})
		if err != nil {
			return apierr.Of(err)
		}
		return c.JSON(http.StatusCreated, types.ComposeBuild(build))
	}
}

func GetBuildHandler(builds builddb.Interface, buildIdKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		buildId := c.Param(buildIdKey)

		found, err := builds.Get(c.Request().Context(), []string{buildId})
		if err != nil {
			return apierr.Of(err)
		}
		b, ok := found[buildId]
		if !ok {
			return apierr.NotFound("build " + buildId + " is not found.")
		}
		return c.JSON(http.StatusOK, types.ComposeBuild(b))
	}
}
