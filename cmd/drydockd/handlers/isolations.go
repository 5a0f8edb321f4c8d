package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/drydock/pkg/api/errors"
	"github.com/opst/drydock/pkg/api/types"
	"github.com/opst/drydock/pkg/engine/isolation"
	"github.com/opst/drydock/pkg/jobs"
)

func PostIsolationHandler(service isolation.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := bind[types.IsolationRequest](c)
		if err != nil {
			return err
		}

		iso, err := service.CreateIsolation(c.Request().Context(), isolation.IsolationRequest{
			MasterInstanceId: req.MasterInstanceId,
			CreatedBy:        req.CreatedBy,
			RedeployOnKilled: req.RedeployOnKilled,
		})
		if err != nil {
			return apierr.Of(err)
		}
		return c.JSON(http.StatusCreated, types.ComposeIsolation(iso))
	}
}

func DeleteIsolationHandler(service isolation.Service, isolationIdKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		iso, err := service.DeleteIsolation(c.Request().Context(), c.Param(isolationIdKey))
		if err != nil {
			return apierr.Of(err)
		}
		return c.JSON(http.StatusOK, types.ComposeIsolation(iso))
	}
}

// KillIsolationHandler accepts killing. Instances are stopped by workers.
func KillIsolationHandler(publisher jobs.Publisher, isolationIdKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		job := jobs.IsolationKill{IsolationId: c.Param(isolationIdKey)}
		queued, err := publisher.Publish(
			c.Request().Context(), job,
			jobs.WithDedupeKey(job.Kind()+"/"+job.IsolationId),
		)
		if err != nil {
			return apierr.Of(err)
		}
		return c.JSON(http.StatusAccepted, types.Accepted{Kind: job.Kind(), Queued: queued})
	}
}

func PostAutoIsolationConfigHandler(service isolation.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := bind[types.AutoIsolationConfigRequest](c)
		if err != nil {
			return err
		}

		aic, err := service.CreateAutoIsolationConfig(c.Request().Context(), isolation.AutoIsolationConfigRequest{
			InstanceId:       req.InstanceId,
			Dependencies:     req.Dependencies,
			CreatedByUser:    req.CreatedByUser,
			OwnedByOrg:       req.OwnedByOrg,
			RedeployOnKilled: req.RedeployOnKilled,
		})
		if err != nil {
			return apierr.Of(err)
		}
		return c.JSON(http.StatusCreated, types.ComposeAutoIsolationConfig(aic))
	}
}
