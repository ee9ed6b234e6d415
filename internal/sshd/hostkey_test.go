package sshd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestLoadOrCreateHostKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host_key")

	first, err := LoadOrCreateHostKey(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// A second load must return the same host identity, not a new key.
	second, err := LoadOrCreateHostKey(path)
	require.NoError(t, err)
	assert.Equal(t,
		ssh.MarshalAuthorizedKey(first.PublicKey()),
		ssh.MarshalAuthorizedKey(second.PublicKey()))
}

func TestLoadOrCreateHostKeyRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host_key")
	require.NoError(t, os.WriteFile(path, []byte("not a pem key"), 0600))

	_, err := LoadOrCreateHostKey(path)
	require.Error(t, err)
}
