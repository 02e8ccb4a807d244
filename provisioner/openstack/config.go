package openstack

import (
	"log/slog"

	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
)

type Config struct {
	Logger *slog.Logger `json:"-"`

	Image          string            `json:"image"`
	Flavor         string            `json:"flavor"`
	Networks       []servers.Network `json:"networks"`
	SecurityGroups []string          `json:"security-groups"`
	KeyName        string            `json:"key-name"`
}
