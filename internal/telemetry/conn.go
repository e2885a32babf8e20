// Package telemetry streams per-step samples to an external diagnostics
// viewer over a websocket. Publishing never blocks the frame loop: samples
// that do not fit in the send queue are dropped.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	queueSize    = 256
	writeTimeout = time.Second
)

type Sample struct {
	Session  string  `json:"session"`
	Frame    uint64  `json:"frame"`
	Time     float64 `json:"time"`
	Dt       float64 `json:"dt"`
	Entities int     `json:"entities"`
	Gravity  bool    `json:"gravity"`
	GPU      bool    `json:"gpu"`
}

type Conn struct {
	session string
	ws      *websocket.Conn
	log     *zap.Logger

	queue   chan Sample
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
	sent    atomic.Uint64
}

// Dial connects to a ws:// or wss:// address and starts the writer.
func Dial(ctx context.Context, addr string, log *zap.Logger) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("telemetry: dial %s: %w", addr, err)
	}
	c := newConn(ws, log)
	c.wg.Add(1)
	go c.writeLoop()
	c.log.Info("diagnostics connected", zap.String("addr", addr), zap.String("session", c.session))
	return c, nil
}

func newConn(ws *websocket.Conn, log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	return &Conn{
		session: uuid.NewString(),
		ws:      ws,
		log:     log.Named("telemetry"),
		queue:   make(chan Sample, queueSize),
		done:    make(chan struct{}),
	}
}

func (c *Conn) Session() string { return c.session }

// Publish stamps s with the session id and queues it.
func (c *Conn) Publish(s Sample) {
	if c.closed.Load() {
		return
	}
	s.Session = c.session
	select {
	case c.queue <- s:
	default:
		if c.dropped.Add(1) == 1 {
			c.log.Debug("send queue full, dropping samples")
		}
	}
}

func (c *Conn) Dropped() uint64 { return c.dropped.Load() }

func (c *Conn) Sent() uint64 { return c.sent.Load() }

func (c *Conn) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case s := <-c.queue:
			if err := c.write(s); err != nil {
				c.log.Warn("diagnostics write failed, stopping stream", zap.Error(err))
				return
			}
		case <-c.done:
			c.flush()
			return
		}
	}
}

func (c *Conn) flush() {
	for {
		select {
		case s := <-c.queue:
			if err := c.write(s); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(s Sample) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.sent.Add(1)
	return nil
}

// Close flushes queued samples and closes the socket.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.done)
		c.wg.Wait()

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		err = c.ws.Close()
		c.log.Info("diagnostics closed",
			zap.Uint64("sent", c.sent.Load()),
			zap.Uint64("dropped", c.dropped.Load()))
	})
	return err
}
