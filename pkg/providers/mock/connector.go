// Package mock provides a scriptable in-memory provider for tests and offline runs.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/airassist/pkg/adapters/provider"
	"github.com/harunnryd/airassist/pkg/events"
)

// SendFunc produces the reply for a command.
type SendFunc func(ctx context.Context, command string) (events.Event, error)

// Attempt is an Open call held until the test resolves it.
type Attempt struct {
	Credential string
	Hooks      provider.Hooks
	result     chan error
}

// Succeed lets the held Open return a live connection.
func (a *Attempt) Succeed() { a.result <- nil }

// Fail makes the held Open return err.
func (a *Attempt) Fail(err error) { a.result <- err }

// Connector opens in-memory connections. In manual mode every Open blocks until
// the matching Attempt is resolved, which lets tests interleave callbacks.
type Connector struct {
	kind    provider.Kind
	manual  atomic.Bool
	attempt chan *Attempt

	mu      sync.Mutex
	openErr error
	send    SendFunc
	conns   []*Connection
	opens   int
}

func NewConnector(kind provider.Kind) *Connector {
	return &Connector{kind: kind, attempt: make(chan *Attempt, 16)}
}

func (c *Connector) Kind() provider.Kind { return c.kind }

// SetManual toggles held Open calls.
func (c *Connector) SetManual(v bool) { c.manual.Store(v) }

// SetOpenError makes subsequent automatic Opens fail.
func (c *Connector) SetOpenError(err error) {
	c.mu.Lock()
	c.openErr = err
	c.mu.Unlock()
}

// SetSend replaces the reply function for new and existing connections.
func (c *Connector) SetSend(fn SendFunc) {
	c.mu.Lock()
	c.send = fn
	c.mu.Unlock()
}

func (c *Connector) Open(ctx context.Context, credential string, hooks provider.Hooks) (provider.Connection, error) {
	if credential == "" {
		return nil, &provider.MissingCredentialError{Provider: c.kind}
	}
	c.mu.Lock()
	c.opens++
	openErr := c.openErr
	c.mu.Unlock()

	if c.manual.Load() {
		a := &Attempt{Credential: credential, Hooks: hooks, result: make(chan error, 1)}
		c.attempt <- a
		select {
		case err := <-a.result:
			if err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if openErr != nil {
		return nil, openErr
	}

	conn := &Connection{connector: c, credential: credential, hooks: hooks}
	c.mu.Lock()
	c.conns = append(c.conns, conn)
	c.mu.Unlock()
	return conn, nil
}

// NextAttempt waits for the next held Open call.
func (c *Connector) NextAttempt(timeout time.Duration) (*Attempt, error) {
	select {
	case a := <-c.attempt:
		return a, nil
	case <-time.After(timeout):
		return nil, errors.New("no connect attempt")
	}
}

// Opens counts Open calls, including failed ones.
func (c *Connector) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

// Connections returns every connection opened so far.
func (c *Connector) Connections() []*Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Connection(nil), c.conns...)
}

// Last returns the most recent connection or nil.
func (c *Connector) Last() *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.conns) == 0 {
		return nil
	}
	return c.conns[len(c.conns)-1]
}

func (c *Connector) sendFunc() SendFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send
}

// Connection records traffic and lets tests fire lifecycle callbacks.
type Connection struct {
	connector  *Connector
	credential string
	hooks      provider.Hooks

	mu     sync.Mutex
	sent   []string
	closed bool
}

func (c *Connection) Send(ctx context.Context, command string) (events.Event, error) {
	c.mu.Lock()
	c.sent = append(c.sent, command)
	c.mu.Unlock()
	if fn := c.connector.sendFunc(); fn != nil {
		return fn(ctx, command)
	}
	return events.Event{
		Type:     events.TypeResponseText,
		Provider: c.connector.kind.String(),
		Role:     events.RoleAssistant,
		Text:     fmt.Sprintf("%s ack: %s", c.connector.kind, command),
		Time:     time.Now(),
	}, nil
}

func (c *Connection) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Emit fires OnEvent as if the backend pushed ev.
func (c *Connection) Emit(ev events.Event) { c.hooks.Event(ev) }

// Drop fires OnDisconnect as if the transport closed.
func (c *Connection) Drop(err error) { c.hooks.Disconnect(err) }

func (c *Connection) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) Credential() string { return c.credential }

var (
	_ provider.Connector  = (*Connector)(nil)
	_ provider.Connection = (*Connection)(nil)
)
