package tlsutil

import (
	"crypto/tls"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfig(t *testing.T) {
	cfg := ClientConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.ElementsMatch(t, aeadSuites, cfg.CipherSuites)

	// callers may mutate their copy
	cfg.CipherSuites[0] = 0
	assert.NotEqual(t, uint16(0), ClientConfig().CipherSuites[0])
}

func TestRedisConfig(t *testing.T) {
	assert.Nil(t, RedisConfig(false))
	require.NotNil(t, RedisConfig(true))
	assert.Equal(t, uint16(tls.VersionTLS12), RedisConfig(true).MinVersion)
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.Timeout)

	transport, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.ForceAttemptHTTP2)
}
