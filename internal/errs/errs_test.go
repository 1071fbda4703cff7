package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tcs := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "message only",
			err:      NoResults("this location has no photos"),
			expected: "this location has no photos",
		},
		{
			name:     "with cause",
			err:      Transport("search request failed").WithCause(errors.New("connection refused")),
			expected: "search request failed: connection refused",
		},
		{
			name:     "sentinel falls back to kind",
			err:      ErrSchema,
			expected: "SchemaError",
		},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, c.err.Error())
		})
	}
}

func TestErrorsIs(t *testing.T) {
	err := fmt.Errorf("acquire pin abc: %w", HTTPStatus("status 404"))

	assert.True(t, errors.Is(err, ErrHTTPStatus))
	assert.False(t, errors.Is(err, ErrTransport))
	assert.Equal(t, KindHTTPStatus, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestErrorsTrace(t *testing.T) {
	err := Download("unable to download image").
		WithCause(Transport("request failed").WithCause(errors.New("dial tcp: timeout")))

	expected := "unable to download image\n\tCaused by: request failed\n\t\tCaused by: dial tcp: timeout"
	assert.Equal(t, expected, err.Trace(), "unexpected error trace")
}

func TestWithCauseLeavesSentinelUntouched(t *testing.T) {
	err := ErrNotFound.WithCause(errors.New("no such row"))

	assert.Equal(t, "NotFound: no such row", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Nil(t, ErrNotFound.Unwrap())
	assert.Equal(t, "NotFound", ErrNotFound.Error())
}
