package backend

import (
	"fmt"
	"net/url"
	"time"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/backend.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

type BackendConfigMarshall struct {
	Port       int32                     `yaml:"port"`
	Database   string                    `yaml:"database"`
	Docker     *DockerConfigMarshall     `yaml:"docker"`
	Git        *GitConfigMarshall        `yaml:"git"`
	Scheduler  *ServiceConfigMarshall    `yaml:"scheduler"`
	Billing    *ServiceConfigMarshall    `yaml:"billing,omitempty"`
	Notify     *NotifyConfigMarshall     `yaml:"notify,omitempty"`
	Thresholds *ThresholdsConfigMarshall `yaml:"thresholds,omitempty"`
	Jobs       *JobsConfigMarshall       `yaml:"jobs,omitempty"`
}

var _ Marshalled[*BackendConfig] = &BackendConfigMarshall{}

func (b *BackendConfigMarshall) trySeal(path string) *BackendConfig {
	port := b.Port
	if port == 0 {
		port = 8080
	}

	var billing *ServiceConfig
	if b.Billing != nil {
		billing = b.Billing.trySeal(path + ".billing")
	}

	notify := b.Notify
	if notify == nil {
		notify = &NotifyConfigMarshall{}
	}
	thresholds := b.Thresholds
	if thresholds == nil {
		thresholds = &ThresholdsConfigMarshall{}
	}
	jobs := b.Jobs
	if jobs == nil {
		jobs = &JobsConfigMarshall{}
	}

	return &BackendConfig{
		port:       port,
		database:   required(b.Database, path+".database"),
		docker:     nonnil(b.Docker, path+".docker").trySeal(path + ".docker"),
		git:        nonnil(b.Git, path+".git").trySeal(path + ".git"),
		scheduler:  nonnil(b.Scheduler, path+".scheduler").trySeal(path + ".scheduler"),
		billing:    billing,
		notify:     notify.trySeal(path + ".notify"),
		thresholds: thresholds.trySeal(path + ".thresholds"),
		jobs:       jobs.trySeal(path + ".jobs"),
	}
}

type DockerConfigMarshall struct {
	// port of docker engines on docks.
	Port         int    `yaml:"port"`
	BuilderImage string `yaml:"builderImage"`

	// registry where image-builders push images.
	Registry         string `yaml:"registry"`
	InsecureRegistry bool   `yaml:"insecureRegistry,omitempty"`

	StopTimeout string `yaml:"stopTimeout,omitempty"`
}

func (d *DockerConfigMarshall) trySeal(path string) *DockerConfig {
	return &DockerConfig{
		port:             required(d.Port, path+".port"),
		builderImage:     required(d.BuilderImage, path+".builderImage"),
		registry:         required(d.Registry, path+".registry"),
		insecureRegistry: d.InsecureRegistry,
		stopTimeout:      duration(d.StopTimeout, 10*time.Second, path+".stopTimeout"),
	}
}

type GitConfigMarshall struct {
	// base url of repositories. "org/repo" is resolved as BASE_URL/org/repo.git .
	BaseURL string `yaml:"baseURL"`
}

func (g *GitConfigMarshall) trySeal(path string) *GitConfig {
	return &GitConfig{
		baseURL: httpURL(required(g.BaseURL, path+".baseURL"), path+".baseURL"),
	}
}

type ServiceConfigMarshall struct {
	URL string `yaml:"url"`
}

func (s *ServiceConfigMarshall) trySeal(path string) *ServiceConfig {
	return &ServiceConfig{
		url: httpURL(required(s.URL, path+".url"), path+".url"),
	}
}

type NotifyConfigMarshall struct {
	URLs []string `yaml:"urls"`
}

func (n *NotifyConfigMarshall) trySeal(path string) *NotifyConfig {
	urls := make([]string, 0, len(n.URLs))
	for i, u := range n.URLs {
		urls = append(urls, httpURL(u, fmt.Sprintf("%s.urls[%d]", path, i)))
	}
	return &NotifyConfig{urls: urls}
}

type ThresholdsConfigMarshall struct {
	BuildContainerNotFoundGrace string `yaml:"buildContainerNotFoundGrace"`
	ImagePushGrace              string `yaml:"imagePushGrace"`
	EventLockTTL                string `yaml:"eventLockTTL"`
}

func (t *ThresholdsConfigMarshall) trySeal(path string) *ThresholdsConfig {
	return &ThresholdsConfig{
		buildContainerNotFoundGrace: duration(t.BuildContainerNotFoundGrace, 5*time.Minute, path+".buildContainerNotFoundGrace"),
		imagePushGrace:              duration(t.ImagePushGrace, 2*time.Minute, path+".imagePushGrace"),
		eventLockTTL:                duration(t.EventLockTTL, time.Minute, path+".eventLockTTL"),
	}
}

type JobsConfigMarshall struct {
	MaxAttempts   int     `yaml:"maxAttempts"`
	Backoff       string  `yaml:"backoff"`
	BackoffFactor float64 `yaml:"backoffFactor"`

	// finished jobs older than this are purged.
	Retention string `yaml:"retention"`
}

func (j *JobsConfigMarshall) trySeal(path string) *JobsConfig {
	maxAttempts := j.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 10
	}
	if maxAttempts < 0 {
		panic(path + ".maxAttempts should be positive")
	}
	factor := j.BackoffFactor
	if factor == 0 {
		factor = 2
	}
	if factor < 1 {
		panic(path + ".backoffFactor should be 1 or more")
	}
	return &JobsConfig{
		maxAttempts:   maxAttempts,
		backoff:       duration(j.Backoff, 5*time.Second, path+".backoff"),
		backoffFactor: factor,
		retention:     duration(j.Retention, 7*24*time.Hour, path+".retention"),
	}
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}

func duration(v string, dflt time.Duration, path string) time.Duration {
	if v == "" {
		return dflt
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("%s can not be parsed: %w", path, err))
	}
	if d <= 0 {
		panic(path + " should be positive")
	}
	return d
}

func httpURL(v string, path string) string {
	u, err := url.Parse(v)
	if err != nil {
		panic(fmt.Errorf("%s can not be parsed: %w", path, err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		panic(path + " should be http or https url")
	}
	return v
}
