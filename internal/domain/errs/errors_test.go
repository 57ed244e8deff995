package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection refused")
	err := DataUnavailable(cause, "fetch %s", "AAPL")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrModelNotFound)
	assert.Contains(t, err.Error(), "fetch AAPL")
	assert.Contains(t, err.Error(), "connection refused")

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, cause, e.Cause)
}

func TestKindOf(t *testing.T) {
	cases := map[string]error{
		"insufficient_data": InsufficientData("only %d rows", 3),
		"data_unavailable":  DataUnavailable(nil, "empty"),
		"model_not_found":   ModelNotFound("ZZZ"),
		"invalid_input":     InvalidInput("horizon must be positive"),
		"internal":          errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, KindOf(err))
	}
	assert.Equal(t, "", KindOf(nil))

	wrapped := fmt.Errorf("train: %w", ModelNotFound("X"))
	assert.Equal(t, "model_not_found", KindOf(wrapped))
	assert.True(t, IsDomain(wrapped))
	assert.False(t, IsDomain(errors.New("boom")))
	assert.False(t, IsDomain(nil))
}
