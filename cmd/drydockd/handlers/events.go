package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/drydock/pkg/api/errors"
	"github.com/opst/drydock/pkg/api/types"
	"github.com/opst/drydock/pkg/jobs"
	"github.com/opst/drydock/pkg/workloads/docker"
)

// ContainerDiedHandler queues an event of the runtime.
//
// Only image-builder containers are cared. Events of others are responded with 204.
func ContainerDiedHandler(publisher jobs.Publisher) echo.HandlerFunc {
	return func(c echo.Context) error {
		ev, err := bind[types.ContainerDiedEvent](c)
		if err != nil {
			return err
		}

		buildId, ok := ev.Labels[docker.LabelBuildId]
		if !ok || buildId == "" {
			return c.NoContent(http.StatusNoContent)
		}
		if _, ok := ev.Labels[docker.LabelInstanceId]; ok {
			return c.NoContent(http.StatusNoContent)
		}

		job := jobs.BuildContainerDied{
			EventId:               ev.EventId,
			ContextVersionBuildId: buildId,
			DockerHost:            ev.DockerHost,
			DockerContainer:       ev.DockerContainer,
		}
		queued, err := publisher.Publish(
			c.Request().Context(), job,
			jobs.WithDedupeKey(job.Kind()+"/"+job.EventId),
		)
		if err != nil {
			return apierr.Of(err)
		}
		return c.JSON(http.StatusAccepted, types.Accepted{Kind: job.Kind(), Queued: queued})
	}
}

func DockRemovedHandler(publisher jobs.Publisher) echo.HandlerFunc {
	return func(c echo.Context) error {
		ev, err := bind[types.DockRemovedEvent](c)
		if err != nil {
			return err
		}

		job := jobs.DockRemoved{Host: ev.Host}
		queued, err := publisher.Publish(
			c.Request().Context(), job,
			jobs.WithDedupeKey(job.Kind()+"/"+job.Host),
		)
		if err != nil {
			return apierr.Of(err)
		}
		return c.JSON(http.StatusAccepted, types.Accepted{Kind: job.Kind(), Queued: queued})
	}
}
