package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer abc ,x-tenant=coffee,, broken ,=empty")
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-tenant":      "coffee",
	}, headers)
}

func TestInitWithoutExporters(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)

	shutdown, err := Init(context.Background(), Config{ServiceName: "coffeed"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestResourceCarriesChainID(t *testing.T) {
	res, err := newResource(Config{ServiceName: "coffeed", Environment: "test", ChainID: 7})
	require.NoError(t, err)
	value, ok := res.Set().Value(chainIDAttributeKey)
	require.True(t, ok)
	require.Equal(t, "7", value.AsString())
}

func TestSamplerRatio(t *testing.T) {
	require.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	require.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	require.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
