package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gammadia/spawner/namegen"
	"github.com/gammadia/spawner/provisioner/internal"
	"github.com/gammadia/spawner/provisioner/storage"
)

// Provider is the contract the job dispatcher depends on.
type Provider interface {
	DriverName() string
	MaxMachines() int
	Namespace() string
	CanHandle(size int) bool
	Initialize(ctx context.Context) error
	CreateArgs(token string) map[string]string
	CreateNode(ctx context.Context, req Request) (*Node, error)
	// DestroyNode never fails, errors are logged.
	DestroyNode(ctx context.Context, node *Node)
	SetupMachine(ctx context.Context, node *Node) error
	Pending() int
}

// Storage is the object storage nodes upload their results to.
type Storage interface {
	Check(ctx context.Context, bucket string) error
}

type Provisioner struct {
	name    namegen.ID
	backend Backend
	config  *Config
	storage Storage
	admit   func(size int) bool
	pending PendingCounter
	log     *slog.Logger

	settings atomic.Pointer[settings]
	nodes    sync.Map
}

// Provisioner implements Provider
var _ Provider = (*Provisioner)(nil)

type Option func(*Provisioner)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioner) {
		p.log = logger
	}
}

// WithStorage replaces the S3 client built from the storage settings.
func WithStorage(s Storage) Option {
	return func(p *Provisioner) {
		p.storage = s
	}
}

// WithAdmission installs the admission check used by CanHandle.
// Without it every workload is admitted.
func WithAdmission(admit func(size int) bool) Option {
	return func(p *Provisioner) {
		p.admit = admit
	}
}

func New(backend Backend, config *Config, opts ...Option) *Provisioner {
	p := &Provisioner{
		name:    namegen.Get(),
		backend: backend,
		config:  config,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.log = p.log.With("driver", backend.Driver(), "provisioner", p.name)
	p.pending.gauge = pendingCreations.WithLabelValues(backend.Driver())
	return p
}

func (p *Provisioner) Name() namegen.ID {
	return p.name
}

func (p *Provisioner) DriverName() string {
	return p.backend.Driver()
}

func (p *Provisioner) MaxMachines() int {
	return p.config.Int(KeyMaxMachines, DefaultMaxMachines)
}

func (p *Provisioner) Namespace() string {
	return p.config.String(KeyNamespace, DefaultNamespace)
}

// CanHandle admits every workload unless an admission check was installed.
// TODO: decide on a real policy once the dispatcher reports workload sizes.
func (p *Provisioner) CanHandle(size int) bool {
	if p.admit == nil {
		return true
	}
	return p.admit(size)
}

func (p *Provisioner) Pending() int {
	return p.pending.Value()
}

// Initialize validates the settings and checks that the storage bucket is
// reachable. CreateNode refuses to run before it succeeded.
func (p *Provisioner) Initialize(ctx context.Context) error {
	required := append(append([]string{}, CommonRequiredKeys...), p.backend.RequiredKeys()...)
	if missing := p.config.Missing(required...); len(missing) > 0 {
		return fmt.Errorf("%w: missing required settings: %s", ErrConfiguration, strings.Join(missing, ", "))
	}

	s, err := p.config.settings()
	if err != nil {
		return err
	}

	if p.storage == nil {
		if p.storage, err = storage.NewS3(ctx, s.storageEndpoint, s.storageRegion, s.storageAccessKey, s.storageSecretKey); err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
	}

	p.log.Debug("Checking storage bucket", "endpoint", s.storageEndpoint, "bucket", s.storageBucket)
	if err := internal.RetryWithContext(ctx, 3, func() error {
		return p.storage.Check(ctx, s.storageBucket)
	}); err != nil {
		return fmt.Errorf("storage bucket '%s' is unreachable: %w", s.storageBucket, err)
	}

	p.settings.Store(s)
	p.log.Info("Provisioner initialized", "namespace", s.namespace, "image", s.image, "wait", s.policy.Budget())
	return nil
}

// CreateArgs returns the startup environment of a node.
func (p *Provisioner) CreateArgs(token string) map[string]string {
	env := map[string]string{
		EnvName(KeyNodeToken):     token,
		EnvName(KeyServicePort):   strconv.Itoa(p.config.Int(KeyServicePort, DefaultServicePort)),
		EnvName(KeyMaxUploadTime): p.config.Duration(KeyMaxUploadTime, DefaultMaxUploadTime).String(),
		EnvName(KeyStorageACL):    p.config.String(KeyStorageACL, DefaultStorageACL),
		EnvName(KeyStorageRegion): p.config.String(KeyStorageRegion, DefaultStorageRegion),
	}
	for _, key := range CommonRequiredKeys {
		env[EnvName(key)] = p.config.String(key, "")
	}
	return env
}

// SetupMachine has nothing to do: nodes configure themselves from CreateArgs.
func (p *Provisioner) SetupMachine(context.Context, *Node) error {
	return nil
}

// Nodes returns the nodes created by this provisioner and not destroyed yet.
func (p *Provisioner) Nodes() []*Node {
	var nodes []*Node
	p.nodes.Range(func(_, value any) bool {
		nodes = append(nodes, value.(*Node))
		return true
	})
	return nodes
}

// Shutdown destroys every node still owned by this provisioner.
func (p *Provisioner) Shutdown(ctx context.Context) {
	var wg sync.WaitGroup
	for _, node := range p.Nodes() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.DestroyNode(ctx, node)
		}()
	}
	wg.Wait()
}
