package service

import (
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/opst/pht-central/pkg/registry"
	"github.com/sirupsen/logrus"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/service.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

type ConfigMarshall struct {
	LogLevel      string                       `yaml:"logLevel,omitempty"`
	Demo          bool                         `yaml:"demo,omitempty"`
	Database      string                       `yaml:"database,omitempty"`
	AMQP          *AMQPConfigMarshall          `yaml:"amqp"`
	Ops           *OpsConfigMarshall           `yaml:"ops,omitempty"`
	SecretStore   *SecretStoreConfigMarshall   `yaml:"secretStore,omitempty"`
	Registry      *RegistryConfigMarshall      `yaml:"registry,omitempty"`
	Results       *ResultsConfigMarshall       `yaml:"results,omitempty"`
	ObjectStorage *ObjectStorageConfigMarshall `yaml:"objectStorage,omitempty"`
}

var _ Marshalled[*Config] = &ConfigMarshall{}

func (c *ConfigMarshall) trySeal(path string) *Config {
	level := logrus.InfoLevel
	if c.LogLevel != "" {
		l, err := logrus.ParseLevel(c.LogLevel)
		if err != nil {
			panic(fmt.Errorf("%s.logLevel: %w", path, err))
		}
		level = l
	}

	ops := c.Ops
	if ops == nil {
		ops = &OpsConfigMarshall{}
	}

	conf := &Config{
		logLevel: level,
		demo:     c.Demo,
		database: c.Database,
		amqp:     nonnil(c.AMQP, path+".amqp").trySeal(path + ".amqp"),
		ops:      ops.trySeal(path + ".ops"),
	}
	if c.SecretStore != nil {
		conf.secretStore = c.SecretStore.trySeal(path + ".secretStore")
	}
	if c.Registry != nil {
		conf.registry = c.Registry.trySeal(path + ".registry")
	}
	if c.Results != nil {
		conf.results = c.Results.trySeal(path + ".results")
	}
	if c.ObjectStorage != nil {
		conf.objectStorage = c.ObjectStorage.trySeal(path + ".objectStorage")
	}
	return conf
}

type AMQPConfigMarshall struct {
	URL           string `yaml:"url"`
	Exchange      string `yaml:"exchange,omitempty"`
	EventExchange string `yaml:"eventExchange,omitempty"`
	Prefetch      int    `yaml:"prefetch,omitempty"`
}

func (a *AMQPConfigMarshall) trySeal(path string) *AMQPConfig {
	if a.Prefetch < 0 {
		panic(path + ".prefetch should not be negative")
	}
	return &AMQPConfig{
		url:           required(a.URL, path+".url"),
		exchange:      orDefault(a.Exchange, "pht"),
		eventExchange: orDefault(a.EventExchange, "pht.events"),
		prefetch:      a.Prefetch,
	}
}

type OpsConfigMarshall struct {
	Listen string `yaml:"listen,omitempty"`
}

func (o *OpsConfigMarshall) trySeal(string) *OpsConfig {
	return &OpsConfig{listen: orDefault(o.Listen, ":8080")}
}

type SecretStoreConfigMarshall struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

func (s *SecretStoreConfigMarshall) trySeal(path string) *SecretStoreConfig {
	return &SecretStoreConfig{
		region:   required(s.Region, path+".region"),
		endpoint: s.Endpoint,
		prefix:   s.Prefix,
	}
}

type ProjectsMarshall struct {
	Master   string `yaml:"master,omitempty"`
	Incoming string `yaml:"incoming,omitempty"`
	Outgoing string `yaml:"outgoing,omitempty"`
}

type RegistryConfigMarshall struct {
	// "<user>:<password>@<url>"
	Connection      string            `yaml:"connection"`
	Projects        *ProjectsMarshall `yaml:"projects,omitempty"`
	WebhookCallback string            `yaml:"webhookCallback,omitempty"`
	CacheDir        string            `yaml:"cacheDir"`
}

func (r *RegistryConfigMarshall) trySeal(path string) *RegistryConfig {
	conn, err := registry.ParseConnectionString(required(r.Connection, path+".connection"))
	if err != nil {
		panic(fmt.Errorf("%s.connection: %w", path, err))
	}

	projects := r.Projects
	if projects == nil {
		projects = &ProjectsMarshall{}
	}

	var callback *url.URL
	if r.WebhookCallback != "" {
		u, err := url.Parse(r.WebhookCallback)
		if err != nil {
			panic(fmt.Errorf("%s.webhookCallback: %w", path, err))
		}
		if !u.IsAbs() || u.Host == "" {
			panic(fmt.Errorf("%s.webhookCallback should be absolute: %s", path, r.WebhookCallback))
		}
		callback = u
	}

	return &RegistryConfig{
		connection: conn,
		projects: registry.Projects{
			Master:   orDefault(projects.Master, "pht_master"),
			Incoming: orDefault(projects.Incoming, "pht_incoming"),
			Outgoing: orDefault(projects.Outgoing, "pht_outgoing"),
		},
		webhookCallback: callback,
		cacheDir:        absolute(required(r.CacheDir, path+".cacheDir"), path+".cacheDir"),
	}
}

type ResultsConfigMarshall struct {
	Paths       []string `yaml:"paths"`
	OutputDir   string   `yaml:"outputDir,omitempty"`
	WorkDir     string   `yaml:"workDir,omitempty"`
	SnapshotDir string   `yaml:"snapshotDir,omitempty"`
}

func (r *ResultsConfigMarshall) trySeal(path string) *ResultsConfig {
	if len(r.Paths) == 0 {
		panic(path + ".paths is required")
	}
	for i, p := range r.Paths {
		absolute(p, fmt.Sprintf("%s.paths[%d]", path, i))
	}
	return &ResultsConfig{
		paths:       r.Paths,
		outputDir:   r.OutputDir,
		workDir:     r.WorkDir,
		snapshotDir: r.SnapshotDir,
	}
}

type ObjectStorageConfigMarshall struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Secure    bool   `yaml:"secure,omitempty"`
	Region    string `yaml:"region,omitempty"`
}

func (o *ObjectStorageConfigMarshall) trySeal(path string) *ObjectStorageConfig {
	return &ObjectStorageConfig{
		endpoint:  required(o.Endpoint, path+".endpoint"),
		accessKey: required(o.AccessKey, path+".accessKey"),
		secretKey: required(o.SecretKey, path+".secretKey"),
		secure:    o.Secure,
		region:    o.Region,
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

func orDefault[T comparable](v T, d T) T {
	if v == *new(T) {
		return d
	}
	return v
}

func absolute(p string, path string) string {
	if !filepath.IsAbs(p) {
		panic(fmt.Errorf("%s should be an absolute path: %s", path, p))
	}
	return p
}
