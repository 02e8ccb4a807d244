package namegen

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	vendor "github.com/anandvarma/namegen"
	"github.com/google/uuid"
)

var gen = vendor.New()

type ID string

func Get() ID {
	return ID(gen.Get())
}

func (id ID) String() string {
	return string(id)
}

// ResourceName returns a lower-cased resource name made of prefix, the
// workload size hint and a random suffix.
func ResourceName(prefix string, size int) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return strings.ToLower(fmt.Sprintf("%s-%d-%s", prefix, size, suffix))
}

// Token issues a fresh credential for a spawned node.
func Token() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Errorf("failed to read random bytes: %w", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
