// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"

	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/correlation"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/envelope"
	"github.com/MoisesRodriguez12/comunicacionagentes/pkg/queue"
)

const (
	// DefaultReconnectDelay between an unexpected close and the next connection attempt.
	DefaultReconnectDelay = 5 * time.Second

	// DefaultHandshakeTimeout bounds dialing and the WebSocket handshake.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds a single frame's write.
	DefaultWriteTimeout = 10 * time.Second
)

// FrameHandler receives every inbound raw frame, e.g., a dispatch.Dispatcher.
type FrameHandler interface {
	OnMessage(raw []byte)
}

// ConnectionOptions configure a Connection. Zero values are replaced by their defaults.
type ConnectionOptions struct {
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// QueueLimit bounds the outbound queue; zero is unbounded.
	QueueLimit int
}

func (opts ConnectionOptions) withDefaults() ConnectionOptions {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return opts
}

// dialAttempt is shared by all callers waiting for the same connection attempt.
type dialAttempt struct {
	epoch uint64
	done  chan struct{}
	err   error
}

// Connection owns a single WebSocket channel to a peer.
//
// Envelopes sent while the channel is not open are queued and flushed in order on the next successful connection.
// Unless Disconnect was called, an unexpected close leads to a new connection attempt after the ReconnectDelay.
type Connection struct {
	// mu guards the lifecycle fields below.
	mu sync.Mutex
	// writeMu serializes writes on the WebSocket, including the flush of the queue.
	writeMu sync.Mutex

	state       State
	address     string
	conn        *websocket.Conn
	intentional bool
	epoch       uint64
	attempt     *dialAttempt

	reconnectTimer *time.Timer
	reconnectSeq   uint64

	queue    *queue.Queue
	registry *correlation.Registry
	handler  FrameHandler
	dialer   websocket.Dialer
	opts     ConnectionOptions

	observersMu sync.Mutex
	observers   []func(State)
}

// NewConnection creates a disconnected Connection. Inbound frames are passed to the handler. On Disconnect, all of the
// registry's pending conversations are rejected; the registry might be nil.
func NewConnection(handler FrameHandler, registry *correlation.Registry, opts ConnectionOptions) *Connection {
	opts = opts.withDefaults()

	return &Connection{
		state:    Disconnected,
		queue:    queue.New(opts.QueueLimit),
		registry: registry,
		handler:  handler,
		dialer: websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		opts: opts,
	}
}

// State of this Connection.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Address of the most recently requested peer.
func (c *Connection) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.address
}

// Queued is the amount of Envelopes waiting for the channel to open.
func (c *Connection) Queued() int {
	return c.queue.Len()
}

// OnStateChange registers an observer for State transitions. Observers are called synchronously, without holding any
// of the Connection's locks.
func (c *Connection) OnStateChange(fn func(State)) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()

	c.observers = append(c.observers, fn)
}

func (c *Connection) notify(s State) {
	c.observersMu.Lock()
	observers := make([]func(State), len(c.observers))
	copy(observers, c.observers)
	c.observersMu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// Connect opens the channel to the address. If a connection attempt is already in progress, Connect waits for its
// outcome instead of dialing again. An already open channel is kept.
func (c *Connection) Connect(ctx context.Context, address string) error {
	c.mu.Lock()
	c.intentional = false
	c.stopReconnectLocked()

	switch c.state {
	case Connected:
		if address != c.address {
			log.WithFields(log.Fields{
				"connected": c.address,
				"requested": address,
			}).Warn("Connection is already open to another address")
		}
		c.mu.Unlock()
		return nil

	case Connecting:
		attempt := c.attempt
		c.mu.Unlock()

		select {
		case <-attempt.done:
			return attempt.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.address = address
	attempt := c.startAttemptLocked()
	c.mu.Unlock()

	c.notify(Connecting)
	return c.runAttempt(ctx, attempt, address)
}

// startAttemptLocked transitions into Connecting. The caller must hold mu.
func (c *Connection) startAttemptLocked() *dialAttempt {
	c.epoch++
	c.state = Connecting
	c.attempt = &dialAttempt{
		epoch: c.epoch,
		done:  make(chan struct{}),
	}
	return c.attempt
}

// runAttempt dials the peer and finishes the dialAttempt.
func (c *Connection) runAttempt(ctx context.Context, attempt *dialAttempt, address string) error {
	attempt.err = c.dial(ctx, attempt.epoch, address)
	close(attempt.done)
	return attempt.err
}

func (c *Connection) dial(ctx context.Context, epoch uint64, address string) error {
	logger := log.WithField("address", address)
	logger.Info("Connecting to peer")

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(dialCtx, address, nil)
	if err != nil {
		logger.WithError(err).Warn("Dialing peer errored")

		c.mu.Lock()
		current := c.epoch == epoch
		if current {
			c.state = Disconnected
			if !c.intentional {
				c.scheduleReconnectLocked()
			}
		}
		c.mu.Unlock()

		if current {
			c.notify(Disconnected)
		}
		return &ConnectionError{Op: "dial", Address: address, Err: err}
	}

	// The write lock is taken before the channel becomes visible as Connected. Thus, each Send for this channel has to
	// wait until the backlog was flushed.
	c.writeMu.Lock()

	c.mu.Lock()
	if c.epoch != epoch || c.intentional {
		c.mu.Unlock()
		c.writeMu.Unlock()

		logger.Info("Connection was cancelled while dialing")
		_ = conn.Close()
		return ErrDisconnected
	}
	c.conn = conn
	c.state = Connected
	c.mu.Unlock()

	n, flushErr := c.queue.Flush(func(e envelope.Envelope) error {
		return c.write(conn, e)
	})
	c.writeMu.Unlock()

	logger.WithField("flushed", n).Info("Connected to peer")
	c.notify(Connected)

	go c.readLoop(conn)

	if flushErr != nil {
		c.drop(conn, flushErr)
	}
	return nil
}

// write an Envelope as a text frame. The caller must hold writeMu.
func (c *Connection) write(conn *websocket.Conn, e envelope.Envelope) error {
	data, err := envelope.Marshal(e)
	if err != nil {
		return err
	}

	if err := conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Send an Envelope. If the channel is open, it is written immediately; otherwise it is queued. Failing writes are
// queued as well and lead to a reconnect, thus only invalid Envelopes result in an error.
//
// Sends are serialized by the write lock. Failed envelopes are queued before the lock is released, keeping them in
// the order they were written.
func (c *Connection) Send(e envelope.Envelope) error {
	if err := e.CheckValid(); err != nil {
		return &envelope.SerializationError{Err: err}
	}

	c.writeMu.Lock()

	c.mu.Lock()
	conn := c.conn
	if c.state != Connected || conn == nil {
		c.queue.Enqueue(e)
		c.mu.Unlock()
		c.writeMu.Unlock()
		return nil
	}
	c.mu.Unlock()

	err := c.write(conn, e)
	if err != nil {
		c.queue.Enqueue(e)
	}
	c.writeMu.Unlock()

	if err != nil {
		log.WithError(err).WithField("envelope", e).Warn("Writing envelope errored, queuing it")

		c.drop(conn, &ConnectionError{Op: "write", Address: c.Address(), Err: err})
		return nil
	}

	log.WithField("envelope", e).Debug("Sent envelope")
	return nil
}

// readLoop feeds inbound frames to the handler until the channel breaks.
func (c *Connection) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn, err)
			return
		}

		c.handle(data)
	}
}

func (c *Connection) handle(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Handling inbound frame panicked")
		}
	}()

	c.handler.OnMessage(data)
}

// drop a broken channel. Unless the close was intentional, a reconnect will be scheduled.
func (c *Connection) drop(conn *websocket.Conn, reason error) {
	c.mu.Lock()
	if c.conn != conn {
		// Already replaced or closed by Disconnect.
		c.mu.Unlock()
		return
	}

	c.conn = nil
	c.state = Disconnected
	if !c.intentional {
		c.scheduleReconnectLocked()
	}
	address := c.address
	c.mu.Unlock()

	_ = conn.Close()

	logger := log.WithField("address", address)
	if websocket.IsCloseError(reason, websocket.CloseNormalClosure) {
		logger.Info("Peer closed the connection")
	} else {
		logger.WithError(reason).Warn("Connection closed unexpectedly")
	}

	c.notify(Disconnected)
}

// scheduleReconnectLocked replaces any scheduled reconnect by a new one. The caller must hold mu.
func (c *Connection) scheduleReconnectLocked() {
	c.stopReconnectLocked()

	seq := c.reconnectSeq
	c.reconnectTimer = time.AfterFunc(c.opts.ReconnectDelay, func() {
		c.reconnect(seq)
	})

	log.WithFields(log.Fields{
		"address": c.address,
		"delay":   c.opts.ReconnectDelay,
	}).Info("Scheduled reconnect")
}

// stopReconnectLocked cancels a scheduled reconnect. The caller must hold mu.
func (c *Connection) stopReconnectLocked() {
	c.reconnectSeq++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Connection) reconnect(seq uint64) {
	c.mu.Lock()
	if seq != c.reconnectSeq || c.intentional || c.state != Disconnected {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	address := c.address
	attempt := c.startAttemptLocked()
	c.mu.Unlock()

	log.WithField("address", address).Info("Reconnecting")
	c.notify(Connecting)

	if err := c.runAttempt(context.Background(), attempt, address); err != nil {
		log.WithError(err).WithField("address", address).Warn("Reconnect failed")
	}
}

// Disconnect closes the channel intentionally. No reconnect will follow and every pending conversation of the
// registry is rejected with correlation.ErrConnectionClosed. Queued Envelopes are kept for a later Connect.
func (c *Connection) Disconnect() (errs error) {
	c.mu.Lock()
	c.intentional = true
	c.epoch++
	c.stopReconnectLocked()

	conn := c.conn
	prev := c.state
	c.conn = nil
	c.state = Disconnected
	address := c.address
	c.mu.Unlock()

	if conn != nil {
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(c.opts.WriteTimeout)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("writing close message: %w", err))
		}
		if err := conn.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("closing connection: %w", err))
		}
	}

	var rejected int
	if c.registry != nil {
		rejected = c.registry.RejectAll(correlation.ErrConnectionClosed)
	}

	log.WithFields(log.Fields{
		"address":  address,
		"rejected": rejected,
	}).Info("Disconnected")

	if prev != Disconnected {
		c.notify(Disconnected)
	}
	return
}
