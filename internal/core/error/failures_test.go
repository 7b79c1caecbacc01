package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolFailureUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewToolFailure("web_search", cause)

	assert.Contains(t, err.Error(), "web_search")
	assert.True(t, errors.Is(err, cause))

	var tf *ToolFailure
	wrapped := fmt.Errorf("run failed: %w", err)
	require.True(t, errors.As(wrapped, &tf))
	assert.Equal(t, "web_search", tf.Tool)
}

func TestSynthesisFailureCarriesLastPayload(t *testing.T) {
	err := NewSynthesisFailure(5, `{"research_title": "oops"`)

	var sf *SynthesisFailure
	require.True(t, errors.As(error(err), &sf))
	assert.Equal(t, 5, sf.Attempts)
	assert.Contains(t, sf.LastPayload, "oops")
}

func TestErrorWrapsStatusAndMessage(t *testing.T) {
	cause := errors.New("boom")
	err := New(cause, http.StatusBadGateway, RedisErrorMessage)

	assert.Equal(t, http.StatusBadGateway, err.Status)
	assert.Contains(t, err.Error(), RedisErrorMessage)
	assert.True(t, errors.Is(err, cause))
}
