package provisioner

import (
	"fmt"
	"strings"
	"time"

	"github.com/gammadia/spawner/provisioner/internal"
	"github.com/gammadia/spawner/provisioner/storage"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const (
	KeyStorageAccessKey = "storage-access-key"
	KeyStorageSecretKey = "storage-secret-key"
	KeyStorageEndpoint  = "storage-endpoint"
	KeyStorageBucket    = "storage-bucket"
	KeyStorageACL       = "storage-acl"
	KeyStorageRegion    = "storage-region"
	KeySecurityGroup    = "security-group"
	KeyNamespace        = "namespace"
	KeyMaxMachines      = "max-machines"
	KeyImage            = "image"
	KeyMaxUploadTime    = "max-upload-time"
	KeyMaxRuntime       = "max-runtime"
	KeyServicePort      = "service-port"
	KeyPollInterval     = "poll-interval"
	KeyPollAttempts     = "poll-attempts"
	KeyCPURequest       = "cpu-request"
	KeyCPULimit         = "cpu-limit"
	KeyMemoryRequest    = "memory-request"
	KeyMemoryLimit      = "memory-limit"
	KeyNamePrefix       = "name-prefix"
	KeyNodeToken        = "node-token"
)

const (
	DefaultNamespace     = "default"
	DefaultMaxMachines   = 10
	DefaultImage         = "ghcr.io/gammadia/spawner-node:latest"
	DefaultStorageACL    = "private"
	DefaultStorageRegion = "us-east-1"
	DefaultMaxUploadTime = time.Hour
	DefaultMaxRuntime    = 24 * time.Hour
	DefaultServicePort   = 8080
	DefaultPollInterval  = 5 * time.Second
	DefaultPollAttempts  = 60
	DefaultNamePrefix    = "spawner-node"
)

// CommonRequiredKeys must be set whatever the backend.
var CommonRequiredKeys = []string{
	KeyStorageAccessKey,
	KeyStorageSecretKey,
	KeyStorageEndpoint,
	KeyStorageBucket,
}

// Config gives typed access to the provisioner settings.
type Config struct {
	v *viper.Viper
}

func NewConfig(v *viper.Viper) *Config {
	if v == nil {
		v = viper.New()
	}
	return &Config{v: v}
}

// Missing returns the keys that have no value.
func (c *Config) Missing(keys ...string) []string {
	return lo.Filter(lo.Uniq(keys), func(key string, _ int) bool {
		return strings.TrimSpace(c.v.GetString(key)) == "" && len(c.StringSlice(key)) == 0
	})
}

func (c *Config) String(key, def string) string {
	if s := strings.TrimSpace(c.v.GetString(key)); s != "" {
		return s
	}
	return def
}

func (c *Config) Int(key string, def int) int {
	if c.v.GetString(key) == "" {
		return def
	}
	return c.v.GetInt(key)
}

func (c *Config) Duration(key string, def time.Duration) time.Duration {
	if c.v.GetString(key) == "" {
		return def
	}
	return c.v.GetDuration(key)
}

func (c *Config) StringSlice(key string) []string {
	return lo.Filter(c.v.GetStringSlice(key), func(s string, _ int) bool {
		return strings.TrimSpace(s) != ""
	})
}

// settings is the validated snapshot taken by Initialize.
type settings struct {
	namespace     string
	image         string
	prefix        string
	port          int
	maxRuntime    time.Duration
	maxUploadTime time.Duration
	policy        internal.Policy
	requests      Resources
	limits        Resources

	storageEndpoint  string
	storageRegion    string
	storageBucket    string
	storageACL       string
	storageAccessKey string
	storageSecretKey string
}

func (c *Config) settings() (*settings, error) {
	s := &settings{
		namespace:     c.String(KeyNamespace, DefaultNamespace),
		image:         c.String(KeyImage, DefaultImage),
		prefix:        strings.ToLower(c.String(KeyNamePrefix, DefaultNamePrefix)),
		port:          c.Int(KeyServicePort, DefaultServicePort),
		maxRuntime:    c.Duration(KeyMaxRuntime, DefaultMaxRuntime),
		maxUploadTime: c.Duration(KeyMaxUploadTime, DefaultMaxUploadTime),
		policy: internal.Policy{
			Interval:    c.Duration(KeyPollInterval, DefaultPollInterval),
			MaxAttempts: c.Int(KeyPollAttempts, DefaultPollAttempts),
		},
		requests: Resources{
			CPU:    c.String(KeyCPURequest, "1"),
			Memory: c.String(KeyMemoryRequest, "2Gi"),
		},
		limits: Resources{
			CPU:    c.String(KeyCPULimit, "2"),
			Memory: c.String(KeyMemoryLimit, "4Gi"),
		},

		storageEndpoint:  c.String(KeyStorageEndpoint, ""),
		storageRegion:    c.String(KeyStorageRegion, DefaultStorageRegion),
		storageBucket:    c.String(KeyStorageBucket, ""),
		storageACL:       c.String(KeyStorageACL, DefaultStorageACL),
		storageAccessKey: c.String(KeyStorageAccessKey, ""),
		storageSecretKey: c.String(KeyStorageSecretKey, ""),
	}

	switch {
	case s.port < 1 || s.port > 65535:
		return nil, fmt.Errorf("%w: %s must be a valid port, got %d", ErrConfiguration, KeyServicePort, s.port)
	case s.policy.Interval <= 0:
		return nil, fmt.Errorf("%w: %s must be greater than 0", ErrConfiguration, KeyPollInterval)
	case s.policy.MaxAttempts < 1:
		return nil, fmt.Errorf("%w: %s must be greater than 0", ErrConfiguration, KeyPollAttempts)
	}
	if err := storage.ValidateACL(s.storageACL); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, KeyStorageACL, err)
	}

	return s, nil
}

// EnvName is the environment variable carrying the given setting on a node.
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
