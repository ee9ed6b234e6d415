// Package sshd runs the in-process SSH server the relay can use as its
// backend on hosts without a local sshd. It answers password authentication
// and serves direct-tcpip port-forwarding channels; shells and other channel
// types are rejected.
package sshd

import (
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

const (
	serverVersion = "SSH-2.0-postern_1.0"
	banner        = "Welcome to postern.\n"
)

// Server accepts SSH connections handed to ServeConn. It holds no listener:
// the relay dials it through an in-memory pipe.
type Server struct {
	config *ssh.ServerConfig
	logger logrus.FieldLogger

	// dial opens forwarding targets; swapped out in tests.
	dial func(network, address string) (net.Conn, error)
}

// New builds a server with the host key at hostKeyPath, generating the key
// on first use.
func New(hostKeyPath string, auth Authenticator, logger logrus.FieldLogger) (*Server, error) {
	signer, err := LoadOrCreateHostKey(hostKeyPath)
	if err != nil {
		return nil, err
	}
	return NewWithSigner(signer, auth, logger), nil
}

// NewWithSigner builds a server around an existing host key.
func NewWithSigner(signer ssh.Signer, auth Authenticator, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	config := &ssh.ServerConfig{
		PasswordCallback: passwordCallback(auth, logger),
		BannerCallback: func(ssh.ConnMetadata) string {
			return banner
		},
		ServerVersion: serverVersion,
	}
	config.AddHostKey(signer)

	return &Server{
		config: config,
		logger: logger,
		dial:   net.Dial,
	}
}

// ServeConn upgrades conn to SSH and serves its channels until the client
// disconnects. It blocks, so callers usually run it on its own goroutine;
// conn is closed before it returns.
func (s *Server) ServeConn(conn net.Conn) {
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		// Routine noise: failed handshakes and bad passwords both land
		// here.
		s.logger.WithError(err).Debug("ssh: handshake failed")
		conn.Close()
		return
	}
	defer sshConn.Close()

	logger := s.logger.WithField("user", sshConn.User())
	logger.Info("ssh: session opened")

	go ssh.DiscardRequests(reqs)
	s.serveChannels(chans)

	logger.Info("ssh: session closed")
}
