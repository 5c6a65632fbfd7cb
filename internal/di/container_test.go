package di

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainer_Get_BuildsLazilyAndCaches(t *testing.T) {
	c := New()
	builds := 0
	c.RegisterSingleton("thing", func(r *Container) (interface{}, error) {
		builds++
		return "built", nil
	})

	v1, err := c.Get("thing")
	require.NoError(t, err)
	v2, err := c.Get("thing")
	require.NoError(t, err)

	assert.Equal(t, "built", v1)
	assert.Equal(t, "built", v2)
	assert.Equal(t, 1, builds)
}

func TestContainer_Get_UnregisteredServiceErrors(t *testing.T) {
	c := New()
	_, err := c.Get("missing")
	assert.Error(t, err)
}

func TestContainer_Get_DetectsCircularDependency(t *testing.T) {
	c := New()
	c.RegisterSingleton("a", func(r *Container) (interface{}, error) {
		return r.Get("b")
	})
	c.RegisterSingleton("b", func(r *Container) (interface{}, error) {
		return r.Get("a")
	})

	_, err := c.Get("a")
	assert.Error(t, err)
}

func TestContainer_RegisterInstance_SkipsFactory(t *testing.T) {
	c := New()
	c.RegisterInstance("config", 42)

	v, err := c.Get("config")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestContainer_MustGet_PanicsOnError(t *testing.T) {
	c := New()
	assert.Panics(t, func() { c.MustGet("missing") })
}

func TestContainer_Has(t *testing.T) {
	c := New()
	c.RegisterInstance("x", 1)
	assert.True(t, c.Has("x"))
	assert.False(t, c.Has("y"))
}

func TestContainer_Get_ConcurrentBuildsOnlyOnce(t *testing.T) {
	c := New()
	var builds int
	var mu sync.Mutex
	c.RegisterSingleton("shared", func(r *Container) (interface{}, error) {
		mu.Lock()
		builds++
		mu.Unlock()
		return fmt.Sprintf("instance-%d", builds), nil
	})

	var wg sync.WaitGroup
	results := make([]interface{}, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := c.Get("shared")
			require.NoError(t, err)
			results[idx] = v
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, builds)
	for _, r := range results {
		assert.Equal(t, "instance-1", r)
	}
}
