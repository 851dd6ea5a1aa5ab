package syncmap_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdds/slaeworker/internal/syncmap"
)

func TestPutGetPop(t *testing.T) {
	m := syncmap.New[string, int]()

	_, ok := m.Get("a")
	require.False(t, ok)

	m.Put("a", 1)
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	require.Equal(t, 1, m.Size())

	popped, ok := m.Pop("a")
	require.True(t, ok)
	assert.Equal(t, 1, popped)
	assert.Equal(t, 0, m.Size())

	_, ok = m.Pop("a")
	assert.False(t, ok)
}

func TestKeysIsSnapshot(t *testing.T) {
	m := syncmap.New[string, int]()
	m.Put("a", 1)
	m.Put("b", 2)

	keys := m.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "b"}, keys)

	m.Put("c", 3)
	assert.Len(t, keys, 2, "snapshot must not observe later mutation")
}

func TestClear(t *testing.T) {
	m := syncmap.New[string, int]()
	m.Put("a", 1)
	m.Put("b", 2)
	m.Clear()
	assert.Equal(t, 0, m.Size())
	assert.Empty(t, m.Keys())
}

func TestConcurrentAccess(t *testing.T) {
	m := syncmap.New[int, int]()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Put(i, i*i)
			m.Get(i)
			m.Keys()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, m.Size())
}
