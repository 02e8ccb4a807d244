package local

import (
	"log/slog"
)

type Config struct {
	// Logger to use
	Logger *slog.Logger `json:"-"`
	// Docker network the node containers are attached to, the default bridge if empty
	Network string `json:"network"`
}
