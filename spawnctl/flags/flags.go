package flags

import (
	"strings"
	"time"

	"github.com/gammadia/spawner/provisioner"
	"github.com/gammadia/spawner/provisioner/openstack"
	"github.com/samber/lo"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	LogFormat   = "log-format"
	LogLevel    = "log-level"
	LogSource   = "log-source"
	Provisioner = "provisioner"

	Kubeconfig            = "kubeconfig"
	KubernetesServiceAcct = "kubernetes-service-account"

	LocalNetwork = "local-network"

	OpenstackNetworks = "openstack-networks"
	OpenstackKeyName  = "openstack-key-name"
)

// Register adds every setting to flags and binds them into viper, which also
// reads them from SPAWNER_* environment variables.
func Register(flags *flag.FlagSet) {
	// spawnctl
	flags.String(LogFormat, "text", "log format (json, text)")
	flags.String(LogLevel, "INFO", "minimum log level")
	flags.Bool(LogSource, false, "add source code location to logs")
	flags.String(Provisioner, "kubernetes", "node provisioner to use (kubernetes, local, openstack)")

	// Storage
	flags.String(provisioner.KeyStorageAccessKey, "", "object storage access key")
	flags.String(provisioner.KeyStorageSecretKey, "", "object storage secret key")
	flags.String(provisioner.KeyStorageEndpoint, "", "object storage endpoint")
	flags.String(provisioner.KeyStorageBucket, "", "object storage bucket nodes upload to")
	flags.String(provisioner.KeyStorageACL, provisioner.DefaultStorageACL, "canned ACL of uploaded objects")
	flags.String(provisioner.KeyStorageRegion, provisioner.DefaultStorageRegion, "object storage region")

	// Nodes
	flags.String(provisioner.KeyNamespace, provisioner.DefaultNamespace, "namespace nodes are created in")
	flags.Int(provisioner.KeyMaxMachines, provisioner.DefaultMaxMachines, "maximum number of nodes")
	flags.String(provisioner.KeyImage, provisioner.DefaultImage, "container image of the nodes")
	flags.String(provisioner.KeyNamePrefix, provisioner.DefaultNamePrefix, "prefix of node names")
	flags.Int(provisioner.KeyServicePort, provisioner.DefaultServicePort, "port the nodes listen on")
	flags.Duration(provisioner.KeyMaxUploadTime, provisioner.DefaultMaxUploadTime, "maximum time a node may spend uploading results")
	flags.Duration(provisioner.KeyMaxRuntime, provisioner.DefaultMaxRuntime, "maximum lifetime of a node")
	flags.Duration(provisioner.KeyPollInterval, provisioner.DefaultPollInterval, "how long to wait between node status checks")
	flags.Int(provisioner.KeyPollAttempts, provisioner.DefaultPollAttempts, "how many status checks before giving up on a node")
	flags.String(provisioner.KeyCPURequest, "1", "CPU requested by each node")
	flags.String(provisioner.KeyCPULimit, "2", "CPU limit of each node")
	flags.String(provisioner.KeyMemoryRequest, "2Gi", "memory requested by each node")
	flags.String(provisioner.KeyMemoryLimit, "4Gi", "memory limit of each node")

	// Kubernetes
	flags.String(Kubeconfig, "", "kubeconfig file, in-cluster config if empty")
	flags.String(KubernetesServiceAcct, "", "service account of the node pods")

	// Local
	flags.String(LocalNetwork, "", "docker network the node containers are attached to")

	// Openstack
	flags.String(openstack.KeyImage, "", "image to use for provisioning")
	flags.String(openstack.KeyFlavor, "", "flavor to use for provisioning")
	flags.StringSlice(OpenstackNetworks, nil, "networks attached to the nodes")
	flags.StringSlice(provisioner.KeySecurityGroup, nil, "security groups defined for the nodes")
	flags.String(OpenstackKeyName, "", "keypair injected in the nodes")

	viper.SetEnvPrefix("spawner")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	lo.Must0(viper.BindPFlags(flags))
}

// Timeout is the longest a single creation may take with the current settings.
func Timeout() time.Duration {
	return viper.GetDuration(provisioner.KeyPollInterval) * time.Duration(viper.GetInt(provisioner.KeyPollAttempts))
}
