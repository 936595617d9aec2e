package esp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/retroenv/retrogolib/log"
)

// ErrNotConnected is returned for server traffic while no server is connected.
var ErrNotConnected = errors.New("server not connected")

// maxMessageSize is the largest payload a single length byte can frame.
const maxMessageSize = 0xFF

const recvQueueCap = 16

// Server is the remote end the firmware forwards game messages to.
type Server interface {
	// Send transmits one message.
	Send(msg []byte) error
	// Recv returns the next received message without blocking.
	Recv() ([]byte, bool)
	// Closed reports that the remote end hung up. Messages received before
	// the hangup are still returned by Recv.
	Closed() bool
	Close() error
}

// Dialer opens a server connection on demand.
type Dialer func(ctx context.Context) (Server, error)

// TCPServer frames each message as one length byte followed by the payload
// in both directions.
type TCPServer struct {
	conn   net.Conn
	logger *log.Logger

	// filled by the reader goroutine, drained by Recv on the emulation side
	recv   chan []byte
	done   chan struct{}
	hangup chan struct{} // closed once the reader stops
	wg     sync.WaitGroup

	sendLock  sync.Mutex
	closeOnce sync.Once
}

// DialTCP connects to addr and starts receiving messages in the background.
func DialTCP(ctx context.Context, addr string, logger *log.Logger) (*TCPServer, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing server %s: %w", addr, err)
	}

	s := &TCPServer{
		conn:   conn,
		logger: logger,
		recv:   make(chan []byte, recvQueueCap),
		done:   make(chan struct{}),
		hangup: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.readLoop()

	logger.Info("Connected to server", log.String("address", addr))
	return s, nil
}

// TCPDialer returns a Dialer for DialTCP giving up after timeout.
func TCPDialer(addr string, timeout time.Duration, logger *log.Logger) Dialer {
	return func(ctx context.Context) (Server, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		s, err := DialTCP(ctx, addr, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (s *TCPServer) readLoop() {
	defer s.wg.Done()
	defer close(s.hangup)
	defer close(s.recv)

	r := bufio.NewReader(s.conn)
	for {
		n, err := r.ReadByte()
		if err != nil {
			s.readFailed(err)
			return
		}
		msg := make([]byte, n)
		if _, err := io.ReadFull(r, msg); err != nil {
			s.readFailed(err)
			return
		}

		select {
		case s.recv <- msg:
		case <-s.done:
			return
		}
	}
}

func (s *TCPServer) readFailed(err error) {
	select {
	case <-s.done:
		// closed locally
	default:
		if errors.Is(err, io.EOF) {
			s.logger.Info("Server closed connection")
			return
		}
		s.logger.Error("Reading from server failed", log.Err(err))
	}
}

func (s *TCPServer) Send(msg []byte) error {
	if len(msg) > maxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds %d", len(msg), maxMessageSize)
	}

	buf := make([]byte, 0, len(msg)+1)
	buf = append(buf, byte(len(msg)))
	buf = append(buf, msg...)

	s.sendLock.Lock()
	defer s.sendLock.Unlock()
	if _, err := s.conn.Write(buf); err != nil {
		return fmt.Errorf("writing to server: %w", err)
	}
	return nil
}

func (s *TCPServer) Recv() ([]byte, bool) {
	select {
	case msg, ok := <-s.recv:
		return msg, ok
	default:
		return nil, false
	}
}

func (s *TCPServer) Closed() bool {
	select {
	case <-s.hangup:
		return true
	default:
		return false
	}
}

func (s *TCPServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
		s.wg.Wait()
	})
	return err
}
