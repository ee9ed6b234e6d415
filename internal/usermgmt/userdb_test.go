package usermgmt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	return db
}

func TestAddAndAuthenticate(t *testing.T) {
	db := openTempDB(t)
	require.NoError(t, db.Add("alice", "hunter2"))

	assert.True(t, db.Authenticate("alice", "hunter2"))
	assert.False(t, db.Authenticate("alice", "wrong"))
	assert.False(t, db.Authenticate("nobody", "hunter2"))
}

func TestAddValidation(t *testing.T) {
	db := openTempDB(t)

	require.Error(t, db.Add("", "longenough"))
	require.Error(t, db.Add("bob", "abc"), "short passwords must be rejected")

	require.NoError(t, db.Add("bob", "good-enough"))
	err := db.Add("bob", "good-enough")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestDisableBlocksAuthentication(t *testing.T) {
	db := openTempDB(t)
	require.NoError(t, db.Add("carol", "secret99"))

	require.NoError(t, db.Disable("carol"))
	assert.False(t, db.Authenticate("carol", "secret99"))

	require.NoError(t, db.Enable("carol"))
	assert.True(t, db.Authenticate("carol", "secret99"))
}

func TestSetPassword(t *testing.T) {
	db := openTempDB(t)
	require.NoError(t, db.Add("dave", "original"))

	require.NoError(t, db.SetPassword("dave", "replaced"))
	assert.False(t, db.Authenticate("dave", "original"))
	assert.True(t, db.Authenticate("dave", "replaced"))

	require.Error(t, db.SetPassword("dave", "abc"))
	require.Error(t, db.SetPassword("nobody", "whatever1"))
}

func TestRemove(t *testing.T) {
	db := openTempDB(t)
	require.NoError(t, db.Add("erin", "password"))
	require.NoError(t, db.Remove("erin"))

	assert.False(t, db.Authenticate("erin", "password"))
	require.Error(t, db.Remove("erin"))
}

func TestPersistenceAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Add("frank", "persisted"))
	require.NoError(t, db.RecordLogin("frank"))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.True(t, reopened.Authenticate("frank", "persisted"))

	user, err := reopened.Get("frank")
	require.NoError(t, err)
	assert.Equal(t, "frank", user.Username)
	assert.NotNil(t, user.LastLogin)
	assert.Empty(t, user.PasswordHash, "Get must not expose the hash")
}

func TestNamesSorted(t *testing.T) {
	db := openTempDB(t)
	for _, name := range []string{"zoe", "adam", "mia"} {
		require.NoError(t, db.Add(name, "password"))
	}
	assert.Equal(t, []string{"adam", "mia", "zoe"}, db.Names())
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	db := openTempDB(t)
	assert.Empty(t, db.Names())

	// The file only appears once something is written.
	_, err := os.Stat(db.path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path)
	require.Error(t, err)
}

func TestEnsureDefaultFromEnv(t *testing.T) {
	db := openTempDB(t)

	t.Setenv("POSTERN_DEFAULT_USER", "")
	t.Setenv("POSTERN_DEFAULT_PASSWORD", "")
	require.NoError(t, db.EnsureDefaultFromEnv())
	assert.Empty(t, db.Names())

	t.Setenv("POSTERN_DEFAULT_USER", "admin")
	t.Setenv("POSTERN_DEFAULT_PASSWORD", "bootstrap")
	require.NoError(t, db.EnsureDefaultFromEnv())
	assert.True(t, db.Authenticate("admin", "bootstrap"))

	// Re-running must not touch the existing account.
	require.NoError(t, db.SetPassword("admin", "rotated1"))
	require.NoError(t, db.EnsureDefaultFromEnv())
	assert.True(t, db.Authenticate("admin", "rotated1"))
}
