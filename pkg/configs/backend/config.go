package backend

import "time"

type BackendConfig struct {
	port       int32
	database   string
	docker     *DockerConfig
	git        *GitConfig
	scheduler  *ServiceConfig
	billing    *ServiceConfig
	notify     *NotifyConfig
	thresholds *ThresholdsConfig
	jobs       *JobsConfig
}

// Port which drydockd listens. default = 8080
func (c *BackendConfig) Port() int32 {
	return c.port
}

// Connection string for database.
func (c *BackendConfig) Database() string {
	return c.database
}

func (c *BackendConfig) Docker() *DockerConfig {
	return c.docker
}

func (c *BackendConfig) Git() *GitConfig {
	return c.git
}

// The host scheduler which finds docks.
func (c *BackendConfig) Scheduler() *ServiceConfig {
	return c.scheduler
}

// The billing service.
//
// Returns nil when it is not configured. Then every organization is permitted.
func (c *BackendConfig) Billing() *ServiceConfig {
	return c.billing
}

func (c *BackendConfig) Notify() *NotifyConfig {
	return c.notify
}

func (c *BackendConfig) Thresholds() *ThresholdsConfig {
	return c.thresholds
}

func (c *BackendConfig) Jobs() *JobsConfig {
	return c.jobs
}

type DockerConfig struct {
	port             int
	builderImage     string
	registry         string
	insecureRegistry bool
	stopTimeout      time.Duration
}

// Port of docker engines on docks.
func (d *DockerConfig) Port() int {
	return d.port
}

// Image of image-builder containers.
func (d *DockerConfig) BuilderImage() string {
	return d.builderImage
}

// Registry host where built images are pushed.
func (d *DockerConfig) Registry() string {
	return d.registry
}

func (d *DockerConfig) InsecureRegistry() bool {
	return d.insecureRegistry
}

// How long to wait for containers to stop before killing them. default = 10s
func (d *DockerConfig) StopTimeout() time.Duration {
	return d.stopTimeout
}

type GitConfig struct {
	baseURL string
}

func (g *GitConfig) BaseURL() string {
	return g.baseURL
}

type ServiceConfig struct {
	url string
}

func (s *ServiceConfig) URL() string {
	return s.url
}

type NotifyConfig struct {
	urls []string
}

// Endpoints of realtime socket servers.
func (n *NotifyConfig) URLs() []string {
	return n.urls
}

type ThresholdsConfig struct {
	buildContainerNotFoundGrace time.Duration
	imagePushGrace              time.Duration
	eventLockTTL                time.Duration
}

// While this duration since the build container is created, "not found" of it is retried.
// default = 5m
func (t *ThresholdsConfig) BuildContainerNotFoundGrace() time.Duration {
	return t.buildContainerNotFoundGrace
}

// While this duration since the build completes, images not in registry are waited for.
// default = 2m
func (t *ThresholdsConfig) ImagePushGrace() time.Duration {
	return t.imagePushGrace
}

// default = 1m
func (t *ThresholdsConfig) EventLockTTL() time.Duration {
	return t.eventLockTTL
}

type JobsConfig struct {
	maxAttempts   int
	backoff       time.Duration
	backoffFactor float64
	retention     time.Duration
}

// default = 10
func (j *JobsConfig) MaxAttempts() int {
	return j.maxAttempts
}

// Delay before the first retry. default = 5s
func (j *JobsConfig) Backoff() time.Duration {
	return j.backoff
}

// default = 2
func (j *JobsConfig) BackoffFactor() float64 {
	return j.backoffFactor
}

// default = 168h
func (j *JobsConfig) Retention() time.Duration {
	return j.retention
}
