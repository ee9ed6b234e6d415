// Package server assembles the middleware chain around the tunnel relay and
// runs the plain and TLS listeners.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"postern/internal/config"
	"postern/internal/sshd"
	"postern/internal/tunnel"
	"postern/internal/usermgmt"
	"postern/pkg/certgen"
)

// Version is reported by the /version endpoint.
const Version = "1.0"

// shutdownTimeout bounds how long graceful shutdown waits for in-flight
// requests. Hijacked tunnels are not waited for; they end on their own
// terms.
const shutdownTimeout = 5 * time.Second

// Server owns the handler chain and the two listeners.
type Server struct {
	cfg    *config.Config
	logger logrus.FieldLogger

	handler  http.Handler
	certFile string
	keyFile  string

	plainLn net.Listener
	tlsLn   net.Listener
}

// New wires the relay, the optional embedded SSH backend and the handler
// chain from cfg.
func New(cfg *config.Config, logger logrus.FieldLogger) (*Server, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	relay := &tunnel.Relay{
		Backend:     cfg.Tunnel.Backend,
		IdleTimeout: time.Duration(cfg.Tunnel.IdleTimeout),
		MaxDuration: time.Duration(cfg.Tunnel.MaxDuration),
		Logger:      logger,
	}

	if cfg.SSH.Embedded {
		backend, err := newEmbeddedBackend(cfg, logger)
		if err != nil {
			return nil, err
		}
		// The relay's backend becomes an in-memory pipe into the embedded
		// server; the configured backend address is never dialed.
		relay.Dial = func(ctx context.Context, network, address string) (net.Conn, error) {
			client, srv := net.Pipe()
			go backend.ServeConn(srv)
			return client, nil
		}
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		handler: buildHandler(cfg, relay, logger),
	}

	if cfg.TLS.Enabled {
		var err error
		if s.certFile, err = resolvePath(cfg.TLS.CertFile, "cert.pem"); err != nil {
			return nil, err
		}
		if s.keyFile, err = resolvePath(cfg.TLS.KeyFile, "key.pem"); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// newEmbeddedBackend opens the user database (or the PAM stack) and builds
// the in-process SSH server.
func newEmbeddedBackend(cfg *config.Config, logger logrus.FieldLogger) (*sshd.Server, error) {
	var auth sshd.Authenticator
	switch cfg.SSH.Auth {
	case "system":
		auth = sshd.SystemAuth{}
	default:
		dbPath, err := resolvePath(cfg.SSH.UserDB, "users.json")
		if err != nil {
			return nil, err
		}
		db, err := usermgmt.Open(dbPath)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureDefaultFromEnv(); err != nil {
			logger.WithError(err).Warn("creating default user from environment failed")
		}
		auth = sshd.DatabaseAuth(db)
	}

	hostKey, err := resolvePath(cfg.SSH.HostKey, "host_key")
	if err != nil {
		return nil, err
	}
	return sshd.New(hostKey, auth, logger)
}

// resolvePath keeps explicit paths and places defaults in the config
// directory.
func resolvePath(explicit, name string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return config.Path(name)
}

// Handler returns the assembled chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listen binds the configured addresses without serving yet, so callers can
// read the bound addresses first. With TLS enabled a missing certificate
// pair is generated on the spot.
func (s *Server) Listen() error {
	if s.cfg.TLS.Enabled {
		if err := certgen.Ensure(s.certFile, s.keyFile, "localhost", "127.0.0.1"); err != nil {
			return err
		}
		ln, err := net.Listen("tcp", s.cfg.TLS.Listen)
		if err != nil {
			return err
		}
		s.tlsLn = ln
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		if s.tlsLn != nil {
			s.tlsLn.Close()
			s.tlsLn = nil
		}
		return err
	}
	s.plainLn = ln
	return nil
}

// Addr returns the bound plain listener address, nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.plainLn == nil {
		return nil
	}
	return s.plainLn.Addr()
}

// TLSAddr returns the bound TLS listener address, nil before Listen or with
// TLS disabled.
func (s *Server) TLSAddr() net.Addr {
	if s.tlsLn == nil {
		return nil
	}
	return s.tlsLn.Addr()
}

// Serve runs the bound listeners until ctx is cancelled or a listener
// fails, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	plainHandler := s.handler
	servers := make([]*http.Server, 0, 2)
	errc := make(chan error, 2)

	if s.tlsLn != nil {
		tlsServer := &http.Server{Handler: s.handler}
		servers = append(servers, tlsServer)
		s.logger.WithField("addr", s.tlsLn.Addr().String()).Info("tls server listening")
		go func() { errc <- tlsServer.ServeTLS(s.tlsLn, s.certFile, s.keyFile) }()

		if s.cfg.TLS.Redirect {
			plainHandler = RedirectHandler(s.tlsLn.Addr().String())
		}
	}

	plainServer := &http.Server{Handler: plainHandler}
	servers = append(servers, plainServer)
	s.logger.WithField("addr", s.plainLn.Addr().String()).Info("http server listening")
	go func() { errc <- plainServer.Serve(s.plainLn) }()

	var err error
	received := 0
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case err = <-errc:
		// One listener failed; take the rest down too.
		received++
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		srv.Shutdown(shutdownCtx)
	}
	// Drain the serve goroutines; Shutdown makes them return ErrServerClosed.
	for received < len(servers) {
		e := <-errc
		received++
		if err == nil && !errors.Is(e, http.ErrServerClosed) {
			err = e
		}
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

// Run binds and serves in one call.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}
