package id

import (
	"bytes"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{ViewerPrefix, ImportPrefix, RequestPrefix} {
		id := gen.GenerateWithPrefix(prefix)
		require.True(t, strings.HasPrefix(id, prefix+"_"), id)

		p, _, err := Split(id)
		require.NoError(t, err)
		assert.Equal(t, prefix, p)
		assert.True(t, HasPrefix(id, prefix))
	}
}

func TestTypedIDs(t *testing.T) {
	assert.True(t, HasPrefix(NewViewerID().String(), ViewerPrefix))
	assert.True(t, HasPrefix(NewImportID().String(), ImportPrefix))
	assert.True(t, HasPrefix(NewRequestID().String(), RequestPrefix))
	assert.False(t, HasPrefix(NewViewerID().String(), ImportPrefix))
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	gen := NewGenerator()
	gen.now = func() time.Time { return fixed }

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = gen.GenerateString()
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	const workers, per = 10, 100

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id := gen.GenerateWithPrefix(ViewerPrefix)
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*per)
}

func TestDeterministicEntropy(t *testing.T) {
	now := func() time.Time { return time.UnixMilli(42) }
	a := NewGeneratorWithEntropy(bytes.NewReader(make([]byte, 16)), now).GenerateString()
	b := NewGeneratorWithEntropy(bytes.NewReader(make([]byte, 16)), now).GenerateString()
	assert.Equal(t, a, b)
}

func TestTimestamp(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_123)
	gen := NewGeneratorWithEntropy(bytes.NewReader(make([]byte, 16)), func() time.Time { return at })

	ts, err := Timestamp(gen.GenerateWithPrefix(ViewerPrefix))
	require.NoError(t, err)
	assert.True(t, at.Equal(ts))

	_, err = Timestamp("win_nope")
	assert.Error(t, err)
}

func TestSplitRejects(t *testing.T) {
	_, _, err := Split("noprefix")
	assert.Error(t, err)
	_, _, err = Split("win_bad")
	assert.Error(t, err)
	assert.False(t, IsValid("bad"))
}
