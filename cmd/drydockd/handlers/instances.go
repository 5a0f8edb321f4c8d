package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/drydock/pkg/api/errors"
	"github.com/opst/drydock/pkg/api/types"
	"github.com/opst/drydock/pkg/engine/instances"
	"github.com/opst/drydock/pkg/jobs"
)

func PostInstanceHandler(coordinator instances.Coordinator) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := bind[types.InstanceRequest](c)
		if err != nil {
			return err
		}

		inst, err := coordinator.CreateInstance(c.Request().Context(), instances.NewInstanceRequest{
			Name:      req.Name,
			Owner:     req.Owner,
			CreatedBy: req.CreatedBy,
			BuildId:   req.BuildId,
		})
		if err != nil {
			return apierr.Of(err)
		}
		return c.JSON(http.StatusCreated, types.ComposeInstance(inst))
	}
}

// DeleteInstanceHandler accepts deletion. The instance is deleted by workers.
func DeleteInstanceHandler(publisher jobs.Publisher, instanceIdKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		job := jobs.InstanceDelete{InstanceId: c.Param(instanceIdKey)}
		queued, err := publisher.Publish(
			c.Request().Context(), job,
			jobs.WithDedupeKey(job.Kind()+"/"+job.InstanceId),
		)
		if err != nil {
			return apierr.Of(err)
		}
		return c.JSON(http.StatusAccepted, types.Accepted{Kind: job.Kind(), Queued: queued})
	}
}
