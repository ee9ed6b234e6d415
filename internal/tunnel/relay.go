package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultBackend is the service relayed to when no backend address is
	// configured: the local SSH daemon.
	DefaultBackend = "127.0.0.1:22"

	// backendReadSize caps a single read from the backend socket. Whatever a
	// read returns is forwarded to the client in one write.
	backendReadSize = 4096
)

// ErrNoAddress is returned when the backend host resolves to zero addresses.
var ErrNoAddress = errors.New("no address found")

// pipeBuffers pools the per-direction copy buffers shared by all live
// tunnels.
var pipeBuffers = sync.Pool{
	New: func() any {
		buf := make([]byte, backendReadSize)
		return &buf
	},
}

// Duplex is the raw byte stream the HTTP layer hands over after a hijack.
// Read returns the next chunk sent by the client and io.EOF once the client
// half-closes. A zero-length Write tells the client no more tunnel data is
// coming; transport-backed implementations map it to a write-side close.
type Duplex interface {
	io.Reader
	io.Writer
}

// DialFunc opens the backend connection. It matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// LookupFunc resolves the backend host. It matches
// net.Resolver.LookupIPAddr.
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// Relay bridges hijacked client streams to a fixed TCP backend. The zero
// value relays to DefaultBackend. A Relay may serve many tunnels at once;
// every Tunnel call owns its own backend connection and shares nothing with
// its siblings.
type Relay struct {
	// Backend is the host:port dialed for every tunneled connection.
	// Empty means DefaultBackend.
	Backend string

	// Dial overrides how the backend connection is opened. Nil uses a
	// plain net.Dialer.
	Dial DialFunc

	// Lookup overrides backend host resolution. Nil uses the default
	// resolver.
	Lookup LookupFunc

	// IdleTimeout tears the tunnel down when no byte moves in either
	// direction for this long. Zero keeps the historical behavior: the
	// relay waits until both directions reach EOF, even if that never
	// happens.
	IdleTimeout time.Duration

	// MaxDuration caps the total lifetime of one tunnel. Zero means no cap.
	MaxDuration time.Duration

	// Logger receives tunnel lifecycle and failure records. Nil uses the
	// logrus standard logger.
	Logger logrus.FieldLogger
}

func (r *Relay) logger() logrus.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return logrus.StandardLogger()
}

func (r *Relay) backend() string {
	if r.Backend != "" {
		return r.Backend
	}
	return DefaultBackend
}

// dialBackend resolves the backend host and opens the TCP connection for one
// tunnel. Resolution that yields zero addresses fails with ErrNoAddress.
func (r *Relay) dialBackend(ctx context.Context) (net.Conn, error) {
	backend := r.backend()
	host, port, err := net.SplitHostPort(backend)
	if err != nil {
		return nil, fmt.Errorf("invalid backend address %q: %w", backend, err)
	}

	lookup := r.Lookup
	if lookup == nil {
		lookup = net.DefaultResolver.LookupIPAddr
	}
	addrs, err := lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve backend %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve backend %q: %w", host, ErrNoAddress)
	}

	dial := r.Dial
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	conn, err := dial(ctx, "tcp", net.JoinHostPort(addrs[0].IP.String(), port))
	if err != nil {
		return nil, fmt.Errorf("dial backend: %w", err)
	}
	return conn, nil
}

// Tunnel bridges stream to the backend until both directions are finished.
//
// The inbound loop forwards every client chunk to the backend verbatim and
// stops when the client half-closes. The outbound loop forwards backend
// chunks of up to 4096 bytes and stops when the backend closes. Neither
// loop cancels the other; Tunnel returns only after both have stopped. On
// every exit path the backend connection is closed and exactly one
// zero-length write is issued on stream so the client learns the tunnel is
// over.
func (r *Relay) Tunnel(ctx context.Context, stream Duplex) error {
	backend, err := r.dialBackend(ctx)
	if err != nil {
		return err
	}

	var notify sync.Once
	closeNotify := func() {
		stream.Write(nil)
	}
	defer func() {
		backend.Close()
		notify.Do(closeNotify)
	}()

	var wd *watchdog
	if r.IdleTimeout > 0 || r.MaxDuration > 0 {
		wd = newWatchdog(r.IdleTimeout, r.MaxDuration, func() {
			backend.Close()
			if c, ok := stream.(io.Closer); ok {
				c.Close()
			}
		})
		defer wd.stop()
	}

	var wg sync.WaitGroup
	var errs pipeErr
	wg.Add(2)

	// Inbound pipe: client -> backend.
	go func() {
		defer wg.Done()
		bufp := pipeBuffers.Get().(*[]byte)
		defer pipeBuffers.Put(bufp)
		buf := *bufp
		for {
			n, err := stream.Read(buf)
			if n > 0 {
				wd.touch()
				if _, werr := backend.Write(buf[:n]); werr != nil {
					errs[0] = werr
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					errs[0] = err
				}
				return
			}
		}
	}()

	// Outbound pipe: backend -> client.
	go func() {
		defer wg.Done()
		bufp := pipeBuffers.Get().(*[]byte)
		defer pipeBuffers.Put(bufp)
		buf := *bufp
		for {
			n, err := backend.Read(buf)
			if n > 0 {
				wd.touch()
				if _, werr := stream.Write(buf[:n]); werr != nil {
					errs[1] = werr
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					// Orderly backend close. The terminal zero-length write
					// doubles as the close notification, so the deferred
					// cleanup will not repeat it.
					notify.Do(closeNotify)
				} else {
					errs[1] = err
				}
				return
			}
		}
	}()

	wg.Wait()

	if wd.expired() {
		return fmt.Errorf("tunnel to %s: %w", r.backend(), wd.cause)
	}
	return errs.first()
}

// pipeErr collects the failure of each pipe direction; the first non-nil
// entry wins.
type pipeErr [2]error

func (p pipeErr) first() error {
	for _, err := range p {
		if err != nil && !isClosedErr(err) {
			return err
		}
	}
	return nil
}

// isClosedErr reports errors that only say a connection was torn down under
// a blocked read or write, which happens whenever the watchdog fires.
func isClosedErr(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}

// Timeout causes reported by the watchdog.
var (
	ErrIdleTimeout = errors.New("idle timeout exceeded")
	ErrMaxDuration = errors.New("maximum duration exceeded")
)

// watchdog closes both tunnel ends when the idle or total-duration limit is
// hit. A nil watchdog is inert, so callers can leave it unset for the
// faithful wait-forever behavior.
type watchdog struct {
	idle  time.Duration
	last  atomic.Int64
	once  sync.Once
	fired atomic.Bool
	cause error

	idleTimer *time.Timer
	maxTimer  *time.Timer
	expire    func()
}

func newWatchdog(idle, max time.Duration, expire func()) *watchdog {
	wd := &watchdog{idle: idle, expire: expire}
	wd.last.Store(time.Now().UnixNano())
	if idle > 0 {
		wd.idleTimer = time.AfterFunc(idle, wd.checkIdle)
	}
	if max > 0 {
		wd.maxTimer = time.AfterFunc(max, func() { wd.fire(ErrMaxDuration) })
	}
	return wd
}

// checkIdle fires only when no byte has moved for the full idle window;
// otherwise it re-arms for the remainder.
func (wd *watchdog) checkIdle() {
	elapsed := time.Since(time.Unix(0, wd.last.Load()))
	if elapsed >= wd.idle {
		wd.fire(ErrIdleTimeout)
		return
	}
	wd.idleTimer.Reset(wd.idle - elapsed)
}

func (wd *watchdog) fire(cause error) {
	wd.once.Do(func() {
		wd.cause = cause
		wd.fired.Store(true)
		wd.expire()
	})
}

func (wd *watchdog) touch() {
	if wd == nil {
		return
	}
	wd.last.Store(time.Now().UnixNano())
}

func (wd *watchdog) expired() bool {
	return wd != nil && wd.fired.Load()
}

func (wd *watchdog) stop() {
	if wd.idleTimer != nil {
		wd.idleTimer.Stop()
	}
	if wd.maxTimer != nil {
		wd.maxTimer.Stop()
	}
}
