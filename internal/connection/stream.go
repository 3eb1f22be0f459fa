package connection

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsStream adapts a WebSocket connection to the byte stream the STOMP
// codec expects. Each Write is sent as one text message; reads span
// message boundaries.
type wsStream struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	reader  io.Reader
	writeMu sync.Mutex

	readErrOnce sync.Once
	onReadErr   func(error)

	errMu   sync.Mutex
	readErr error
}

func newWSStream(conn *websocket.Conn, writeTimeout time.Duration, onReadErr func(error)) *wsStream {
	return &wsStream{
		conn:         conn,
		writeTimeout: writeTimeout,
		onReadErr:    onReadErr,
	}
}

// Read implements io.Reader.
func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.reader == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				s.readErrOnce.Do(func() {
					s.errMu.Lock()
					s.readErr = err
					s.errMu.Unlock()
					if s.onReadErr != nil {
						s.onReadErr(err)
					}
				})
				return 0, err
			}
			s.reader = r
		}

		n, err := s.reader.Read(p)
		if err == io.EOF {
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Err returns the first read error, if any.
func (s *wsStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.readErr
}

// Write implements io.Writer.
func (s *wsStream) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements io.Closer.
func (s *wsStream) Close() error {
	return s.conn.Close()
}
