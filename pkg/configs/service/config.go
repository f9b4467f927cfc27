package service

import (
	"net/url"

	"github.com/opst/pht-central/pkg/registry"
	"github.com/sirupsen/logrus"
)

// Config is a configuration of services.
//
// to get `Config` instance, use `Unmarshal` or `LoadConfig`.
//
// Sections not required by every service may be nil.
type Config struct {
	logLevel      logrus.Level
	demo          bool
	database      string
	amqp          *AMQPConfig
	ops           *OpsConfig
	secretStore   *SecretStoreConfig
	registry      *RegistryConfig
	results       *ResultsConfig
	objectStorage *ObjectStorageConfig
}

func (c *Config) LogLevel() logrus.Level {
	return c.logLevel
}

// Demo mode. Trains are finished without execution.
func (c *Config) Demo() bool {
	return c.demo
}

// Connection string for database. Empty if not configured.
func (c *Config) Database() string {
	return c.database
}

func (c *Config) AMQP() *AMQPConfig {
	return c.amqp
}

func (c *Config) Ops() *OpsConfig {
	return c.ops
}

func (c *Config) SecretStore() *SecretStoreConfig {
	return c.secretStore
}

func (c *Config) Registry() *RegistryConfig {
	return c.registry
}

func (c *Config) Results() *ResultsConfig {
	return c.results
}

func (c *Config) ObjectStorage() *ObjectStorageConfig {
	return c.objectStorage
}

type AMQPConfig struct {
	url           string
	exchange      string
	eventExchange string
	prefetch      int
}

func (a *AMQPConfig) URL() string {
	return a.url
}

// topic exchange for commands. default = "pht"
func (a *AMQPConfig) Exchange() string {
	return a.exchange
}

// topic exchange for domain events. default = "pht.events"
func (a *AMQPConfig) EventExchange() string {
	return a.eventExchange
}

func (a *AMQPConfig) Prefetch() int {
	return a.prefetch
}

type OpsConfig struct {
	listen string
}

// address where the ops server listens. default = ":8080"
func (o *OpsConfig) Listen() string {
	return o.listen
}

type SecretStoreConfig struct {
	region   string
	endpoint string
	prefix   string
}

func (s *SecretStoreConfig) Region() string {
	return s.region
}

// endpoint overriding the default of AWS. Optional.
func (s *SecretStoreConfig) Endpoint() string {
	return s.endpoint
}

// prefix of secret names.
func (s *SecretStoreConfig) Prefix() string {
	return s.prefix
}

type RegistryConfig struct {
	connection      registry.Registry
	projects        registry.Projects
	webhookCallback *url.URL
	cacheDir        string
}

func (r *RegistryConfig) Connection() registry.Registry {
	return r.connection
}

// special projects of the registry.
func (r *RegistryConfig) Projects() registry.Projects {
	return r.projects
}

// base url where registry webhooks deliver. Optional.
func (r *RegistryConfig) WebhookCallback() *url.URL {
	return r.webhookCallback
}

// directory of the local image cache.
func (r *RegistryConfig) CacheDir() string {
	return r.cacheDir
}

type ResultsConfig struct {
	paths       []string
	outputDir   string
	workDir     string
	snapshotDir string
}

// paths in result images to be extracted, in order.
func (r *ResultsConfig) Paths() []string {
	return r.paths
}

func (r *ResultsConfig) OutputDir() string {
	return r.outputDir
}

// directory for intermediate archives. Empty means the os default.
func (r *ResultsConfig) WorkDir() string {
	return r.workDir
}

// directory for filesystem snapshots of images. Empty means the os default.
func (r *ResultsConfig) SnapshotDir() string {
	return r.snapshotDir
}

type ObjectStorageConfig struct {
	endpoint  string
	accessKey string
	secretKey string
	secure    bool
	region    string
}

func (o *ObjectStorageConfig) Endpoint() string {
	return o.endpoint
}

func (o *ObjectStorageConfig) AccessKey() string {
	return o.accessKey
}

func (o *ObjectStorageConfig) SecretKey() string {
	return o.secretKey
}

func (o *ObjectStorageConfig) Secure() bool {
	return o.secure
}

func (o *ObjectStorageConfig) Region() string {
	return o.region
}
