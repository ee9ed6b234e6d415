package sshd

import (
	"fmt"

	pam "github.com/msteinert/pam/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"postern/internal/usermgmt"
)

// Authenticator checks a username and password pair.
type Authenticator interface {
	Authenticate(username, password string) bool
}

// DatabaseAuth authenticates against the user database and stamps the last
// login on success.
func DatabaseAuth(db *usermgmt.DB) Authenticator {
	return dbAuth{db}
}

type dbAuth struct {
	db *usermgmt.DB
}

func (a dbAuth) Authenticate(username, password string) bool {
	if !a.db.Authenticate(username, password) {
		return false
	}
	// Login stamping is bookkeeping; a write failure must not undo a
	// correct password.
	a.db.RecordLogin(username)
	return true
}

// SystemAuth authenticates against the host's PAM stack using the sshd
// service, so system accounts work without a postern user database.
type SystemAuth struct{}

// Authenticate implements Authenticator.
func (SystemAuth) Authenticate(username, password string) bool {
	t, err := pam.StartFunc("sshd", username, func(s pam.Style, msg string) (string, error) {
		switch s {
		case pam.PromptEchoOff:
			return password, nil
		case pam.TextInfo:
			return "", nil
		default:
			return "", nil
		}
	})
	if err != nil {
		return false
	}
	return t.Authenticate(0) == nil
}

// passwordCallback adapts an Authenticator to the x/crypto server callback,
// logging every attempt.
func passwordCallback(auth Authenticator, logger logrus.FieldLogger) func(ssh.ConnMetadata, []byte) (*ssh.Permissions, error) {
	return func(c ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
		if auth.Authenticate(c.User(), string(password)) {
			logger.WithField("user", c.User()).Info("ssh: login succeeded")
			return nil, nil
		}
		logger.WithField("user", c.User()).Warn("ssh: login failed")
		return nil, fmt.Errorf("invalid credentials")
	}
}
