// Package cluster provisions multi-service clusters.
//
// A cluster is keyed by its InputClusterConfig. Provisioning a cluster similar
// to an active one returns the existing config and creates nothing,
// unless some of its services are not created yet.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/opst/drydock/pkg/domain"
	aicdb "github.com/opst/drydock/pkg/domain/autoisolation/db"
	domerr "github.com/opst/drydock/pkg/domain/errors"
	"github.com/opst/drydock/pkg/engine/dedupe"
	"github.com/opst/drydock/pkg/jobs"
)

type ClusterSpec struct {
	Repo      string
	Branch    string
	IsTesting bool

	Services []jobs.ClusterService

	// name of the service which becomes the master of the cluster.
	MainService string

	ParentInputClusterConfigId string

	Owner            string
	CreatedBy        string
	TriggeredAction  string
	RedeployOnKilled bool
}

// Similarity returns the key of the cluster: its repo and branch, and the union of files of its services.
//
// A path shared by services, like a compose file, counts once.
func (s ClusterSpec) Similarity() domain.ClusterSimilarity {
	files := []string{}
	for _, svc := range s.Services {
		for _, f := range svc.Build.Files {
			files = append(files, f.Path)
		}
	}
	return domain.NewClusterSimilarity(s.Repo, s.Branch, s.IsTesting, files)
}

func (s ClusterSpec) validate() error {
	if len(s.Services) == 0 {
		return fmt.Errorf("%w: cluster has no services", domerr.ErrValidation)
	}
	names := map[string]struct{}{}
	for _, svc := range s.Services {
		if svc.Name == "" {
			return fmt.Errorf("%w: service without name", domerr.ErrValidation)
		}
		if _, ok := names[svc.Name]; ok {
			return fmt.Errorf("%w: service %s is duplicated", domerr.ErrValidation, svc.Name)
		}
		if err := svc.Build.Validate(); err != nil {
			return fmt.Errorf("service %s: %w", svc.Name, err)
		}
		names[svc.Name] = struct{}{}
	}
	if _, ok := names[s.MainService]; !ok {
		return fmt.Errorf("%w: main service %s is not in the cluster", domerr.ErrValidation, s.MainService)
	}
	return nil
}

type Provisioner interface {
	// Provision creates the cluster, or finds a similar one.
	//
	// # Returns
	//
	// - InputClusterConfig: of the cluster.
	//
	// - bool: true if an existing cluster is returned.
	//
	// - error: ErrValidation for malformed specs.
	Provision(ctx context.Context, spec ClusterSpec) (domain.InputClusterConfig, bool, error)
}

type provisioner struct {
	autoIsolations aicdb.Interface
	dedupe         dedupe.Resolver
	publisher      jobs.Publisher
	logger         *log.Logger
}

func New(autoIsolations aicdb.Interface, resolver dedupe.Resolver, publisher jobs.Publisher, logger *log.Logger) Provisioner {
	return &provisioner{
		autoIsolations: autoIsolations,
		dedupe:         resolver,
		publisher:      publisher,
		logger:         logger,
	}
}

func (p *provisioner) Provision(ctx context.Context, spec ClusterSpec) (domain.InputClusterConfig, bool, error) {
	if err := spec.validate(); err != nil {
		return domain.InputClusterConfig{}, false, err
	}
	sim := spec.Similarity()

	if found, ok, err := p.dedupe.FindCluster(ctx, sim); err != nil {
		return domain.InputClusterConfig{}, false, err
	} else if ok {
		if err := p.resume(ctx, found, spec); err != nil {
			return domain.InputClusterConfig{}, false, err
		}
		return found, true, nil
	}

	aic, err := p.autoIsolations.New(ctx, aicdb.NewAutoIsolationConfig{
		CreatedByUser:    spec.CreatedBy,
		OwnedByOrg:       spec.Owner,
		RedeployOnKilled: spec.RedeployOnKilled,
	})
	if err != nil {
		return domain.InputClusterConfig{}, false, err
	}

	icc, reused, err := p.dedupe.ResolveOrCreateCluster(ctx, dedupe.ClusterSpec{
		AutoIsolationConfigId:      aic.AutoIsolationConfigId,
		Similarity:                 sim,
		ParentInputClusterConfigId: spec.ParentInputClusterConfigId,
		CreatedByUser:              spec.CreatedBy,
		OwnedByOrg:                 spec.Owner,
	})
	if err != nil || reused {
		// the config is not used by anyone.
		if derr := p.autoIsolations.Delete(ctx, aic.AutoIsolationConfigId); derr != nil && !errors.Is(derr, domerr.ErrMissing) {
			p.logger.Printf("auto isolation config %s is left: %s", aic.AutoIsolationConfigId, derr)
		}
		if err != nil {
			return domain.InputClusterConfig{}, false, err
		}
		if err := p.resume(ctx, icc, spec); err != nil {
			return domain.InputClusterConfig{}, false, err
		}
		return icc, true, nil
	}

	if err := p.createServices(ctx, icc, spec); err != nil {
		return domain.InputClusterConfig{}, false, err
	}
	return icc, false, nil
}

// resume queues creating services again, when the cluster has not got all of them.
//
// It happens when queueing stopped halfway in the previous provisioning.
func (p *provisioner) resume(ctx context.Context, icc domain.InputClusterConfig, spec ClusterSpec) error {
	aic, err := p.autoIsolations.Get(ctx, icc.AutoIsolationConfigId)
	if err != nil {
		if errors.Is(err, domerr.ErrMissing) {
			p.logger.Printf("auto isolation config %s of cluster %s is gone", icc.AutoIsolationConfigId, icc.InputClusterConfigId)
			return nil
		}
		return err
	}
	if aic.InstanceId != "" && len(aic.RequestedDependencies) >= len(spec.Services)-1 {
		return nil
	}
	return p.createServices(ctx, icc, spec)
}

func (p *provisioner) createServices(ctx context.Context, icc domain.InputClusterConfig, spec ClusterSpec) error {
	for _, svc := range spec.Services {
		if _, err := p.publisher.Publish(
			ctx,
			jobs.ClusterInstanceCreate{
				AutoIsolationConfigId: icc.AutoIsolationConfigId,
				InputClusterConfigId:  icc.InputClusterConfigId,
				Service:               svc,
				IsMain:                svc.Name == spec.MainService,
				Owner:                 spec.Owner,
				CreatedBy:             spec.CreatedBy,
				TriggeredAction:       spec.TriggeredAction,
			},
			jobs.WithDedupeKey(jobs.KindClusterInstanceCreate+"/"+icc.InputClusterConfigId+"/"+svc.Name),
		); err != nil {
			return err
		}
	}
	return nil
}
