package crash

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureReturnsPanicError(t *testing.T) {
	err := Capture("unit", func() { panic("boom") })
	require.Error(t, err)

	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "unit", pe.Module)
	assert.Equal(t, "boom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, "panic in unit: boom", err.Error())
}

func TestCaptureNoPanic(t *testing.T) {
	ran := false
	assert.NoError(t, Capture("unit", func() { ran = true }))
	assert.True(t, ran)
}

func TestSafeGoroutineRecovers(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	SafeGoroutine("test", func() {
		defer wg.Done()
		panic("inside goroutine")
	})
	wg.Wait()
}
