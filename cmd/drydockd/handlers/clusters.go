package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/drydock/pkg/api/errors"
	"github.com/opst/drydock/pkg/api/types"
	"github.com/opst/drydock/pkg/engine/cluster"
	"github.com/opst/drydock/pkg/jobs"
)

// PostClusterHandler provisions a cluster.
//
// It responds 200 with the existing cluster when a similar one is active,
// or 202 when instances are going to be created by workers.
func PostClusterHandler(provisioner cluster.Provisioner) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := bind[types.ClusterRequest](c)
		if err != nil {
			return err
		}

		services := make([]jobs.ClusterService, 0, len(req.Services))
		for _, s := range req.Services {
			services = append(services, jobs.ClusterService{Name: s.Name, Build: s.Build.Domain()})
		}

		icc, reused, err := provisioner.Provision(c.Request().Context(), cluster.ClusterSpec{
			Repo:                       req.Repo,
			Branch:                     req.Branch,
			IsTesting:                  req.IsTesting,
			Services:                   services,
			MainService:                req.MainService,
			ParentInputClusterConfigId: req.ParentInputClusterConfigId,
			Owner:                      req.Owner,
			CreatedBy:                  req.CreatedBy,
			TriggeredAction:            req.TriggeredAction,
			RedeployOnKilled:           req.RedeployOnKilled,
		})
		if err != nil {
			return apierr.Of(err)
		}

		status := http.StatusAccepted
		if reused {
			status = http.StatusOK
		}
		return c.JSON(status, types.ComposeInputClusterConfig(icc, reused))
	}
}
