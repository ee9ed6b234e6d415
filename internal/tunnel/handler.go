package tunnel

import (
	"bufio"
	"net"
	"net/http"

	"github.com/gofrs/uuid/v5"
	"github.com/sirupsen/logrus"
)

// connectResponse is the response head written on the hijacked connection
// before raw tunnel bytes take over: status only, no headers, no body. The
// advertised status is 405 by long-standing contract; tunnel clients never
// read the head as HTTP, and to everything else CONNECT really is not
// allowed here.
const connectResponse = "HTTP/1.1 405 Method Not Allowed\r\n\r\n"

// Middleware intercepts CONNECT requests and turns them into raw tunnels to
// the relay backend. Every other request reaches next untouched. The CONNECT
// target is deliberately ignored; the relay always bridges to its own
// backend.
func (r *Relay) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodConnect {
			next.ServeHTTP(w, req)
			return
		}
		r.serveConnect(w, req)
	})
}

func (r *Relay) serveConnect(w http.ResponseWriter, req *http.Request) {
	logger := r.logger().WithFields(logrus.Fields{
		"remote": req.RemoteAddr,
		"target": req.Host,
	})

	hj, ok := w.(http.Hijacker)
	if !ok {
		logger.Error("connect: response writer does not support hijacking")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	conn, bufrw, err := hj.Hijack()
	if err != nil {
		logger.WithError(err).Error("connect: hijack failed")
		return
	}
	defer conn.Close()

	// The declared response goes out before the backend dial so the client
	// sees the same head whether or not the backend is reachable.
	if _, err := bufrw.WriteString(connectResponse); err != nil {
		logger.WithError(err).Error("connect: writing response head failed")
		return
	}
	if err := bufrw.Flush(); err != nil {
		logger.WithError(err).Error("connect: flushing response head failed")
		return
	}

	logger.Info("connect: tunnel opened")
	stream := &hijackedStream{conn: conn, br: bufrw.Reader}
	if err := r.Tunnel(req.Context(), stream); err != nil {
		// Headers are long gone, so the failure surfaces only here; the
		// identifier ties this record to a client report of a dead tunnel.
		id, _ := uuid.NewV4()
		logger.WithError(err).WithField("error_id", id.String()).Error("connect: tunnel failed")
		return
	}
	logger.Info("connect: tunnel closed")
}

// hijackedStream adapts a hijacked connection to the Duplex contract. Reads
// drain the server's buffered reader first and then the connection itself. A
// zero-length write becomes a write-side close so the client observes EOF
// rather than a stray empty frame.
type hijackedStream struct {
	conn net.Conn
	br   *bufio.Reader
}

func (s *hijackedStream) Read(p []byte) (int, error) {
	return s.br.Read(p)
}

func (s *hijackedStream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
			return 0, cw.CloseWrite()
		}
		return 0, nil
	}
	return s.conn.Write(p)
}

func (s *hijackedStream) Close() error {
	return s.conn.Close()
}
