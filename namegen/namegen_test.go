package namegen

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceNameFormat(t *testing.T) {
	name := ResourceName("Spawner-Node", 50)
	assert.Regexp(t, regexp.MustCompile(`^spawner-node-50-[0-9a-f]{12}$`), name)
}

func TestResourceNameUnique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		name := ResourceName("spawner-node", 50)
		_, exists := seen[name]
		require.False(t, exists, "duplicate name %s after %d calls", name, i)
		seen[name] = struct{}{}
	}
}

func TestTokenConcurrent(t *testing.T) {
	var mu sync.Mutex
	var wg sync.WaitGroup
	tokens := make(map[string]struct{})

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token := Token()
			mu.Lock()
			tokens[token] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, tokens, 64)
	for token := range tokens {
		assert.Len(t, token, 32)
		assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9_-]+$`), token)
	}
}

func TestGetIsNotEmpty(t *testing.T) {
	assert.NotEmpty(t, Get().String())
}
