package pool_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyctools/runtime/internal/frame"
	"github.com/pyctools/runtime/internal/pool"
)

func countingFactory() pool.Factory {
	return func() (*frame.Frame, error) {
		return frame.New(), nil
	}
}

func TestNewRejectsUndersizedPool(t *testing.T) {
	_, err := pool.New(countingFactory(), 1, nil, nil, nil)
	require.Error(t, err)
}

func TestOutstandingPlusIdleAlwaysEqualsSize(t *testing.T) {
	p, err := pool.New(countingFactory(), 3, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Available())
	assert.Equal(t, 0, p.Outstanding())

	f1, ok := p.Get()
	require.True(t, ok)
	f2, ok := p.Get()
	require.True(t, ok)
	assert.Equal(t, 1, p.Available())
	assert.Equal(t, 2, p.Outstanding())
	assert.Equal(t, 3, p.Available()+p.Outstanding())

	f1.Release()
	assert.Equal(t, 2, p.Available())
	assert.Equal(t, 1, p.Outstanding())
	assert.Equal(t, 3, p.Available()+p.Outstanding())

	f2.Release()
	assert.Equal(t, 3, p.Available())
	assert.Equal(t, 0, p.Outstanding())
}

func TestGetOnEmptyPoolReturnsFalseRatherThanBlocking(t *testing.T) {
	p, err := pool.New(countingFactory(), 2, nil, nil, nil)
	require.NoError(t, err)
	_, ok1 := p.Get()
	_, ok2 := p.Get()
	require.True(t, ok1)
	require.True(t, ok2)

	_, ok3 := p.Get()
	assert.False(t, ok3, "pool must never block; it reports starvation instead")
}

func TestReleaseFiresNotify(t *testing.T) {
	var notified sync.WaitGroup
	notified.Add(1)
	p, err := pool.New(countingFactory(), 2, nil, nil, nil)
	require.NoError(t, err)

	p2, err := pool.New(countingFactory(), 2, func() { notified.Done() }, nil, nil)
	require.NoError(t, err)
	_ = p

	f, ok := p2.Get()
	require.True(t, ok)
	f.Release()
	notified.Wait()
}

func TestRetainDelaysRelease(t *testing.T) {
	p, err := pool.New(countingFactory(), 2, nil, nil, nil)
	require.NoError(t, err)
	f, ok := p.Get()
	require.True(t, ok)

	f.Retain()
	f.Release()
	assert.Equal(t, 1, p.Available(), "frame retained once more must survive the first release")

	f.Release()
	assert.Equal(t, 2, p.Available())
}

func TestFactoryFailureDuringReplenishIsReportedFatal(t *testing.T) {
	calls := 0
	factory := func() (*frame.Frame, error) {
		calls++
		if calls > 2 {
			return nil, errors.New("boom")
		}
		return frame.New(), nil
	}
	var fatalErr error
	var mu sync.Mutex
	p, err := pool.New(factory, 2, nil, func(e error) {
		mu.Lock()
		fatalErr = e
		mu.Unlock()
	}, nil)
	require.NoError(t, err)

	f, ok := p.Get()
	require.True(t, ok)
	f.Release()

	mu.Lock()
	defer mu.Unlock()
	require.Error(t, fatalErr)
}
