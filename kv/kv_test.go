// ABOUTME: Tests for the key-value store implementations
// ABOUTME: Exercises the badger backend against a temp dir and the memory store
package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	// Missing key is not an error.
	v, err := s.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.Set("contacts", []byte(`[{"name":"x"}]`)))
	v, err = s.Get("contacts")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"name":"x"}]`), v)

	require.NoError(t, s.Remove("contacts"))
	v, err = s.Get("contacts")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestBadgerReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", []byte("v")))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemory()

	in := []byte("original")
	require.NoError(t, s.Set("k", in))
	in[0] = 'X'

	out, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), out)

	// Mutating the returned slice must not affect the stored value.
	out[0] = 'Y'
	again, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}
