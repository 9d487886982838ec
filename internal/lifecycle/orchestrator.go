package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Exit codes returned by Run and Drain.
const (
	ExitOK     = 0
	ExitFailed = 1
)

// State of the process as seen by the orchestrator.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Server is the part of *http.Server the orchestrator drives.
type Server interface {
	Shutdown(ctx context.Context) error
}

// Resource is released once the listener has drained.
type Resource struct {
	Name  string
	Close func(ctx context.Context) error
}

// Options configure an Orchestrator.
type Options struct {
	Timeout    time.Duration // forced exit after this long in draining
	Production bool
}

// Orchestrator runs the server until a termination signal and then drains it.
type Orchestrator struct {
	srv        Server
	log        logrus.FieldLogger
	timeout    time.Duration
	production bool

	state     atomic.Int32
	mu        sync.Mutex
	resources []Resource

	bg     sync.WaitGroup
	bgCtx  context.Context
	cancel context.CancelFunc
}

// New returns an orchestrator for srv. srv may be nil for processes without a
// listener; draining then only stops background tasks and releases resources.
func New(srv Server, log logrus.FieldLogger, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		srv:        srv,
		log:        log.WithField("component", "lifecycle"),
		timeout:    opts.Timeout,
		production: opts.Production,
		bgCtx:      ctx,
		cancel:     cancel,
	}
}

func (o *Orchestrator) State() State { return State(o.state.Load()) }

// Manage registers resources in acquisition order. They are released in
// reverse, so the first one registered (the database) goes last.
func (o *Orchestrator) Manage(rs ...Resource) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resources = append(o.resources, rs...)
}

// Go runs background work bound to the process lifetime. Errors and panics are
// logged. Outside production a panic is re-raised after logging.
func (o *Orchestrator) Go(name string, fn func(ctx context.Context) error) {
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			o.log.WithFields(logrus.Fields{
				"task":  name,
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("background task panicked")
			if !o.production {
				panic(r)
			}
		}()
		if err := fn(o.bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			o.log.WithField("task", name).WithError(err).Error("background task failed")
		}
	}()
}

// Run calls serve and blocks until SIGINT/SIGTERM, ctx cancellation or a
// serve failure, then drains. It returns the process exit code.
func (o *Orchestrator) Run(ctx context.Context, serve func() error) int {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		err := serve()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()

	select {
	case <-sigCtx.Done():
		o.log.Info("termination requested, draining")
		return o.Drain()
	case err := <-serveErr:
		if err != nil {
			o.log.WithError(err).Error("server failed")
		} else {
			o.log.Warn("server stopped unexpectedly")
		}
		o.Drain()
		return ExitFailed
	}
}

// Drain stops the listener, waits for in-flight requests and background
// tasks, then releases resources. Only the first call does any work.
func (o *Orchestrator) Drain() int {
	if !o.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		return ExitOK
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	done := make(chan int, 1)
	go func() { done <- o.drain(ctx) }()

	select {
	case code := <-done:
		o.state.Store(int32(StateStopped))
		if code == ExitOK {
			o.log.Info("shutdown complete")
		}
		return code
	case <-ctx.Done():
		o.log.WithField("timeout", o.timeout.String()).Error("drain did not finish in time, forcing exit")
		return ExitFailed
	}
}

func (o *Orchestrator) drain(ctx context.Context) int {
	code := ExitOK
	if o.srv != nil {
		if err := o.srv.Shutdown(ctx); err != nil {
			o.log.WithError(err).Error("http server shutdown")
			if errors.Is(err, context.DeadlineExceeded) {
				code = ExitFailed
			}
		}
	}

	o.cancel()
	o.bg.Wait()

	o.mu.Lock()
	rs := append([]Resource(nil), o.resources...)
	o.mu.Unlock()
	for i := len(rs) - 1; i >= 0; i-- {
		if err := rs[i].Close(ctx); err != nil {
			o.log.WithField("resource", rs[i].Name).WithError(err).Error("release failed")
			continue
		}
		o.log.WithField("resource", rs[i].Name).Debug("released")
	}
	return code
}
