package errors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncErrorError(t *testing.T) {
	testCases := []struct {
		name     string
		err      *SyncError
		contains []string
	}{
		{
			name:     "copy error with path",
			err:      ErrSourceMissing("/src/assets/logo.png"),
			contains: []string{"[ERR_SOURCE_MISSING]", "/src/assets/logo.png", "source file does not exist"},
		},
		{
			name: "merge error with module and cause",
			err: ErrConfInvalid("/build/template.conf", fmt.Errorf("unexpected EOF")).
				WithModule("goats"),
			contains: []string{"module:goats", "/build/template.conf", "unexpected EOF"},
		},
		{
			name:     "structural error with key",
			err:      NewStructuralError("layouts", "cannot merge array into object"),
			contains: []string{"key:layouts", "cannot merge array into object"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := tc.err.Error()
			for _, want := range tc.contains {
				assert.Contains(t, msg, want)
			}
		})
	}
}

func TestSyncErrorIsAndUnwrap(t *testing.T) {
	cause := os.ErrNotExist
	err := ErrManifestMissing("/src/package.json", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, &SyncError{Type: ErrorTypeResolution, Code: ErrCodeManifestMissing}))
	assert.False(t, errors.Is(err, &SyncError{Type: ErrorTypeResolution, Code: ErrCodeManifestInvalid}))
	assert.True(t, IsResolutionError(err))
	assert.False(t, IsMergeError(err))
}

func TestWrapPreservesAttribution(t *testing.T) {
	inner := ErrConfMissing("/build/template.conf", nil).WithModule("goats")
	outer := WrapMerge(inner, ErrCodeConfWrite, "write failed", "/build/template.conf", "goats")

	require.NotNil(t, outer)
	assert.Equal(t, "goats", outer.Module)
	assert.Equal(t, inner, outer.Unwrap())
	assert.Nil(t, Wrap(nil, ErrorTypeIO, "x", "y"))

	copyErr := WrapCopy(os.ErrPermission, "/src/pages/home.page")
	assert.True(t, IsCopyError(copyErr))
	assert.Equal(t, os.ErrPermission, RootCause(copyErr))
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	assert.False(t, c.HasErrors())
	assert.NoError(t, c.Join())

	c.Add(nil)
	c.Add(ErrSourceMissing("/a"))
	c.Add(ErrConfInvalid("/b", nil))
	c.Add(ErrNotRegularFile("/a"))

	assert.True(t, c.HasErrors())
	assert.Equal(t, 3, c.Len())
	assert.Len(t, c.ByType(ErrorTypeCopy), 2)
	assert.Len(t, c.ByType(ErrorTypeMerge), 1)
	assert.Len(t, c.ByPath("/a"), 2)
	assert.Error(t, c.Join())

	errs := c.Errors()
	errs[0] = nil
	assert.NotNil(t, c.Errors()[0], "Errors must return a copy")

	c.Clear()
	assert.False(t, c.HasErrors())
}

func TestCollectorConcurrency(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Add(ErrSourceMissing(fmt.Sprintf("/file-%d", i)))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
}

type recordingLogger struct {
	warns  []string
	errors []string
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.errors = append(r.errors, msg)
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.warns = append(r.warns, msg)
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	h := NewErrorHandler(logger)
	ctx := context.Background()

	h.Handle(ctx, nil)
	h.Handle(ctx, ErrSourceMissing("/a"))
	h.Handle(ctx, NewStructuralError("k", "mismatch"))
	h.Handle(ctx, NewConfigError(ErrCodeConfigInvalid, "bad"))
	h.Handle(ctx, errors.New("plain"))

	assert.Equal(t, []string{"File skipped", "Configuration key skipped"}, logger.warns)
	assert.Equal(t, []string{"Error occurred", "Unhandled error occurred"}, logger.errors)
}
