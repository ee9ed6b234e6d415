package tunnel

import (
	"io"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  backendReadSize,
	WriteBufferSize: backendReadSize,
	// Tunnel clients are not browsers; origin checks only get in the way.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler upgrades the request and feeds the socket's binary
// message stream through the same relay used for CONNECT. Clients that
// cannot speak CONNECT through intermediate proxies usually can open a
// WebSocket.
func (r *Relay) WebSocketHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logger := r.logger().WithField("remote", req.RemoteAddr)
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			// Upgrade already replied with an error status.
			logger.WithError(err).Error("websocket: upgrade failed")
			return
		}
		defer ws.Close()

		logger.Info("websocket: tunnel opened")
		if err := r.Tunnel(req.Context(), &wsStream{conn: ws}); err != nil {
			logger.WithError(err).Error("websocket: tunnel failed")
			return
		}
		logger.Info("websocket: tunnel closed")
	})
}

// wsStream adapts a websocket connection to the Duplex contract: reads
// deliver the byte stream reassembled from data messages, writes emit one
// binary message per chunk, and the zero-length close notification becomes a
// close frame.
type wsStream struct {
	conn *websocket.Conn
	// frame holds the reader for the data message currently being drained.
	frame io.Reader
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.frame == nil {
			_, frame, err := s.conn.NextReader()
			if err != nil {
				return 0, wsReadErr(err)
			}
			s.frame = frame
		}
		n, err := s.frame.Read(p)
		if err == io.EOF {
			// End of this message, not of the stream.
			s.frame = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		return 0, s.conn.WriteMessage(websocket.CloseMessage, msg)
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}

// wsReadErr maps orderly websocket shutdowns onto io.EOF so the relay treats
// them like any other client half-close.
func wsReadErr(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return io.EOF
	}
	return err
}
