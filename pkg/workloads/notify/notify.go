// Package notify pushes state changes to the realtime socket servers.
//
// Notification is best-effort: failures are logged and never returned.
package notify

import (
	"context"
	"log"

	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/workloads/webapi"
)

const (
	EventInstanceUpdate       = "instance_update"
	EventInstanceDelete       = "instance_delete"
	EventContextVersionUpdate = "context_version_update"
)

type Notifier interface {
	EmitInstanceUpdate(ctx context.Context, instance domain.Instance, action string)
	EmitInstanceDelete(ctx context.Context, instance domain.Instance)
	EmitContextVersionUpdate(ctx context.Context, cv domain.ContextVersion, action string)
}

type Event struct {
	Event  string `json:"event"`
	Action string `json:"action,omitempty"`
	Data   any    `json:"data"`
}

type InstanceData struct {
	InstanceId       string `json:"instanceId"`
	Name             string `json:"name"`
	Owner            string `json:"owner"`
	BuildId          string `json:"buildId"`
	ContextVersionId string `json:"contextVersionId"`
	Phase            string `json:"phase"`
	DockerHost       string `json:"dockerHost,omitempty"`
	DockerContainer  string `json:"dockerContainer,omitempty"`
	Error            string `json:"error,omitempty"`
}

func instanceData(i domain.Instance) InstanceData {
	return InstanceData{
		InstanceId:       i.InstanceId,
		Name:             i.Name,
		Owner:            i.Owner,
		BuildId:          i.BuildId,
		ContextVersionId: i.ContextVersionId,
		Phase:            i.Container.Phase.String(),
		DockerHost:       i.Container.DockerHost,
		DockerContainer:  i.Container.DockerContainer,
		Error:            i.Container.Error,
	}
}

type ContextVersionData struct {
	ContextVersionId string `json:"contextVersionId"`
	ContextId        string `json:"contextId"`
	Owner            string `json:"owner"`
	State            string `json:"state"`
	BuildId          string `json:"buildId,omitempty"`
	DockRemoved      bool   `json:"dockRemoved"`
}

func contextVersionData(cv domain.ContextVersion) ContextVersionData {
	return ContextVersionData{
		ContextVersionId: cv.ContextVersionId,
		ContextId:        cv.ContextId,
		Owner:            cv.Owner,
		State:            cv.State.String(),
		BuildId:          cv.Build.BuildId,
		DockRemoved:      cv.DockRemoved,
	}
}

// Web posts events to every endpoint.
type Web struct {
	Endpoints []*webapi.Client
	Logger    *log.Logger
}

var _ Notifier = Web{}

func (w Web) emit(ctx context.Context, ev Event) {
	for _, ep := range w.Endpoints {
		if err := ep.Post(ctx, ev, nil); err != nil {
			w.Logger.Printf("[warn] notification %s (%s) is not delivered: %s", ev.Event, ev.Action, err)
		}
	}
}

func (w Web) EmitInstanceUpdate(ctx context.Context, instance domain.Instance, action string) {
	w.emit(ctx, Event{Event: EventInstanceUpdate, Action: action, Data: instanceData(instance)})
}

func (w Web) EmitInstanceDelete(ctx context.Context, instance domain.Instance) {
	w.emit(ctx, Event{Event: EventInstanceDelete, Data: instanceData(instance)})
}

func (w Web) EmitContextVersionUpdate(ctx context.Context, cv domain.ContextVersion, action string) {
	w.emit(ctx, Event{Event: EventContextVersionUpdate, Action: action, Data: contextVersionData(cv)})
}
