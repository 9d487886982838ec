package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle state of a Manager.
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "uninitialized"
	}
}

// DB is the borrowed query surface handed to repositories.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Handle is an owned connection pool. *pgxpool.Pool satisfies it.
type Handle interface {
	DB
	Ping(ctx context.Context) error
	Close()
}

// Opener dials a new Handle.
type Opener func(ctx context.Context, opts Options) (Handle, error)

// Spawner runs a named background task. The task stops when ctx is done.
type Spawner func(name string, fn func(ctx context.Context) error)

func goSpawner(_ string, fn func(ctx context.Context) error) {
	go func() { _ = fn(context.Background()) }()
}

// Options configures the pool and its timeouts.
type Options struct {
	URL              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	ConnectTimeout   time.Duration // server selection
	StatementTimeout time.Duration // socket
	HealthInterval   time.Duration
}

// ConnectionError reports a failed connect or a use of the manager while not connected.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return "database " + e.Op
	}
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

var errNotConnected = errors.New("not connected")

// Manager exclusively owns the database pool. Connect and Disconnect are
// idempotent; IsHealthy and State are lock-free.
type Manager struct {
	opts Options
	log   logrus.FieldLogger
	open  Opener
	spawn Spawner

	mu        sync.Mutex // serializes Connect/Disconnect
	state     atomic.Int32
	reachable atomic.Bool

	hmu    sync.RWMutex
	handle Handle

	stopWatch chan struct{}
	watchDone chan struct{}
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithOpener replaces the pgxpool opener.
func WithOpener(o Opener) ManagerOption { return func(m *Manager) { m.open = o } }

// WithSpawner runs the health watcher through s instead of a bare goroutine.
func WithSpawner(s Spawner) ManagerOption {
	return func(m *Manager) {
		if s != nil {
			m.spawn = s
		}
	}
}

func NewManager(opts Options, log logrus.FieldLogger, mopts ...ManagerOption) *Manager {
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = 5 * time.Second
	}
	m := &Manager{opts: opts, log: log.WithField("component", "database"), open: OpenPool, spawn: goSpawner}
	for _, o := range mopts {
		o(m)
	}
	return m
}

func (m *Manager) State() State { return State(m.state.Load()) }

// IsHealthy is true iff the manager is connected and the last transport
// observation succeeded.
func (m *Manager) IsHealthy() bool {
	return m.State() == StateConnected && m.reachable.Load()
}

// Conn returns the pool for the duration of one call.
func (m *Manager) Conn() (DB, error) {
	m.hmu.RLock()
	defer m.hmu.RUnlock()
	if m.handle == nil || m.State() != StateConnected {
		return nil, &ConnectionError{Op: "acquire", Err: errNotConnected}
	}
	return m.handle, nil
}

func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() == StateConnected {
		m.log.Warn("database already connected")
		return nil
	}
	prev := State(m.state.Swap(int32(StateConnecting)))

	cctx := ctx
	if m.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, m.opts.ConnectTimeout)
		defer cancel()
	}
	h, err := m.open(cctx, m.opts)
	if err == nil {
		if err = h.Ping(cctx); err != nil {
			h.Close()
		}
	}
	if err != nil {
		m.state.Store(int32(prev))
		m.log.WithError(err).Error("database connection failed")
		return &ConnectionError{Op: "connect", Err: err}
	}

	m.hmu.Lock()
	m.handle = h
	m.hmu.Unlock()
	m.reachable.Store(true)
	m.state.Store(int32(StateConnected))

	stop, done := make(chan struct{}), make(chan struct{})
	m.stopWatch, m.watchDone = stop, done
	m.spawn("database health watch", func(ctx context.Context) error {
		m.watch(ctx, h, stop, done)
		return nil
	})

	m.log.WithFields(logrus.Fields{
		"max_conns": m.opts.MaxConns,
		"min_conns": m.opts.MinConns,
	}).Info("database connected")
	return nil
}

func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() != StateConnected {
		return nil
	}
	close(m.stopWatch)
	m.hmu.Lock()
	h := m.handle
	m.handle = nil
	m.state.Store(int32(StateDisconnected))
	m.hmu.Unlock()
	m.reachable.Store(false)

	watchDone := m.watchDone
	done := make(chan struct{})
	go func() {
		<-watchDone
		h.Close() // waits for borrowed connections to be returned
		close(done)
	}()
	select {
	case <-done:
		m.log.Info("database disconnected")
		return nil
	case <-ctx.Done():
		m.log.WithError(ctx.Err()).Error("database disconnect did not finish")
		return &ConnectionError{Op: "disconnect", Err: ctx.Err()}
	}
}

// watch observes the transport and reflects it in the reachability flag.
// It emits error, disconnected and reconnected events and never fails. It
// returns on Disconnect or when ctx ends.
func (m *Manager) watch(ctx context.Context, h Handle, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(m.opts.HealthInterval)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
		}
		timeout := m.opts.HealthInterval
		if m.opts.ConnectTimeout > 0 && m.opts.ConnectTimeout < timeout {
			timeout = m.opts.ConnectTimeout
		}
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := h.Ping(pctx)
		cancel()

		was := m.reachable.Load()
		switch {
		case err != nil && was:
			m.reachable.Store(false)
			m.log.WithError(err).Error("database connection error")
			m.log.Warn("database disconnected")
		case err != nil:
			m.log.WithError(err).Debug("database still unreachable")
		case !was:
			m.reachable.Store(true)
			m.log.Info("database reconnected")
		}
	}
}

// OpenPool opens a pgx pool configured from opts.
func OpenPool(ctx context.Context, opts Options) (Handle, error) {
	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.ConnectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}
	if opts.StatementTimeout > 0 {
		cfg.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", opts.StatementTimeout.Milliseconds())
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pool, nil
}
