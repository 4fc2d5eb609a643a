package redisx

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDisabledWithoutAddr(t *testing.T) {
	client, err := NewClient(context.Background(), Config{Addr: " , "})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestOptionsSplitsAddresses(t *testing.T) {
	opts := Config{Addr: "a:6379, b:6379", DB: 2, TLSEnabled: true}.Options()
	assert.Equal(t, []string{"a:6379", "b:6379"}, opts.Addrs)
	assert.Equal(t, 2, opts.DB)
	require.NotNil(t, opts.TLSConfig)
	assert.False(t, opts.TLSConfig.InsecureSkipVerify)
}

func TestNewClientFailsWhenUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	client, err := NewClient(context.Background(), Config{Addr: addr, PingTimeout: 500 * time.Millisecond})
	require.Error(t, err)
	assert.Nil(t, client)
}
