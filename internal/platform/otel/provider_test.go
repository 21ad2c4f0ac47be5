package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brick/internal/platform/config"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.Otel{Enabled: true})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.Otel{Enabled: false, Endpoint: "http://collector:4318"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
