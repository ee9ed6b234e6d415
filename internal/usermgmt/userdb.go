// Package usermgmt implements the JSON-file user database behind the
// embedded SSH server's password authentication and the user CLI commands.
package usermgmt

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// minPasswordLen is the shortest password Add and SetPassword accept.
const minPasswordLen = 4

// User is one account record as stored on disk.
type User struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	Enabled      bool       `json:"enabled"`
}

// DB is a thread-safe user database persisted as one JSON file. Every
// mutation is written back atomically (temp file plus rename) before it is
// considered done.
type DB struct {
	path  string
	mu    sync.RWMutex
	users map[string]*User
}

// Open loads the database at path. A missing file is an empty database, not
// an error; the file appears on the first mutation.
func Open(path string) (*DB, error) {
	db := &DB{
		path:  path,
		users: make(map[string]*User),
	}
	if err := db.load(); err != nil {
		return nil, fmt.Errorf("load user database %s: %w", path, err)
	}
	return db, nil
}

// Add creates an enabled account with the given password.
func (db *DB) Add(username, password string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLen)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.users[username]; exists {
		return fmt.Errorf("user %q already exists", username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	db.users[username] = &User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
		Enabled:      true,
	}
	if err := db.save(); err != nil {
		delete(db.users, username)
		return err
	}
	return nil
}

// Remove deletes an account.
func (db *DB) Remove(username string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	user, exists := db.users[username]
	if !exists {
		return fmt.Errorf("user %q does not exist", username)
	}
	delete(db.users, username)
	if err := db.save(); err != nil {
		db.users[username] = user
		return err
	}
	return nil
}

// SetPassword replaces an account's password.
func (db *DB) SetPassword(username, password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLen)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	user, exists := db.users[username]
	if !exists {
		return fmt.Errorf("user %q does not exist", username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	return db.save()
}

// Enable reactivates an account.
func (db *DB) Enable(username string) error {
	return db.setEnabled(username, true)
}

// Disable deactivates an account without deleting it; authentication fails
// until it is enabled again.
func (db *DB) Disable(username string) error {
	return db.setEnabled(username, false)
}

func (db *DB) setEnabled(username string, enabled bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	user, exists := db.users[username]
	if !exists {
		return fmt.Errorf("user %q does not exist", username)
	}
	user.Enabled = enabled
	return db.save()
}

// Authenticate reports whether the password matches an enabled account.
func (db *DB) Authenticate(username, password string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	user, exists := db.users[username]
	if !exists || !user.Enabled {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// RecordLogin stamps an account's last successful login.
func (db *DB) RecordLogin(username string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	user, exists := db.users[username]
	if !exists {
		return fmt.Errorf("user %q does not exist", username)
	}
	now := time.Now()
	user.LastLogin = &now
	return db.save()
}

// Names returns all usernames, sorted.
func (db *DB) Names() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := make([]string, 0, len(db.users))
	for name := range db.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a copy of an account record with the password hash blanked.
func (db *DB) Get(username string) (User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	user, exists := db.users[username]
	if !exists {
		return User{}, fmt.Errorf("user %q does not exist", username)
	}
	out := *user
	out.PasswordHash = ""
	return out, nil
}

// EnsureDefaultFromEnv creates the account named by POSTERN_DEFAULT_USER
// with POSTERN_DEFAULT_PASSWORD. It does nothing when either variable is
// unset or the account already exists, so it is safe to run on every start.
func (db *DB) EnsureDefaultFromEnv() error {
	username := os.Getenv("POSTERN_DEFAULT_USER")
	password := os.Getenv("POSTERN_DEFAULT_PASSWORD")
	if username == "" || password == "" {
		return nil
	}

	db.mu.RLock()
	_, exists := db.users[username]
	db.mu.RUnlock()
	if exists {
		return nil
	}
	return db.Add(username, password)
}
