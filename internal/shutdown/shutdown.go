// Package shutdown runs an ordered, timeout-bounded teardown sequence when
// the daemon receives a termination signal or hits a fatal in-process error.
//
// The coordinator moves Idle → ShuttingDown → Completed | ForcedExit once per
// process lifetime. Steps run one after another in ascending Order; a step
// that fails, panics or overruns its own timeout is logged and the sequence
// moves on. Only the global deadline, or a failure of the sequence itself,
// leads to a forced exit.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/loykin/claudewrap/internal/metrics"
)

const (
	// DefaultTimeout is the deadline for the whole sequence.
	DefaultTimeout = 10 * time.Second
	// DefaultStepTimeout applies to steps registered without a timeout.
	DefaultStepTimeout = 5 * time.Second
)

// ErrSignal marks malformed step registrations and invalid setup input.
var ErrSignal = errors.New("shutdown setup error")

// State of the coordinator.
type State int32

const (
	Idle State = iota
	ShuttingDown
	Completed
	ForcedExit
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ShuttingDown:
		return "shutting_down"
	case Completed:
		return "completed"
	case ForcedExit:
		return "forced_exit"
	default:
		return "unknown"
	}
}

// Step is one named unit of teardown work.
type Step struct {
	Order   int
	Name    string
	Action  func(ctx context.Context) error
	Timeout time.Duration // 0 selects the default step timeout, negative disables it
}

// StepResult records how a step ended.
type StepResult struct {
	Order    int
	Name     string
	Err      error
	Duration time.Duration
}

// Server is the listening side the first default step closes.
// *http.Server satisfies it.
type Server interface {
	Shutdown(ctx context.Context) error
}

// SessionCloser is the optional dependent subsystem stopped by the second
// default step.
type SessionCloser interface {
	Shutdown(ctx context.Context) error
}

// PIDCleaner removes the PID record in the last default step.
type PIDCleaner interface {
	Cleanup()
}

// Coordinator owns the registered steps and the shutdown state machine.
type Coordinator struct {
	mu      sync.Mutex
	state   State
	steps   []Step
	results []StepResult

	store       PIDCleaner
	timeout     time.Duration
	stepTimeout time.Duration
	exit        func(code int)
	signals     []os.Signal
	logger      *slog.Logger

	exitOnce   sync.Once
	done       chan struct{}
	sigCh      chan os.Signal
	stopListen chan struct{}
	listening  bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout sets the global deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithStepTimeout sets the timeout used by steps that do not carry one.
func WithStepTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.stepTimeout = d
		}
	}
}

// WithExit replaces os.Exit.
func WithExit(fn func(code int)) Option { return func(c *Coordinator) { c.exit = fn } }

// WithSignals replaces the subscribed termination signals.
func WithSignals(sigs ...os.Signal) Option {
	return func(c *Coordinator) { c.signals = append([]os.Signal(nil), sigs...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds an idle coordinator. store may be nil when there is no PID
// record to remove.
func New(store PIDCleaner, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		timeout:     DefaultTimeout,
		stepTimeout: DefaultStepTimeout,
		exit:        os.Exit,
		signals:     []os.Signal{os.Interrupt, syscall.SIGTERM},
		logger:      slog.Default(),
		done:        make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Setup registers the default steps and subscribes to the termination
// signals. sessions may be nil.
func (c *Coordinator) Setup(server Server, sessions SessionCloser) error {
	if server == nil {
		return fmt.Errorf("%w: server handle is required", ErrSignal)
	}
	defaults := []Step{
		{Order: 1, Name: "close http server", Action: server.Shutdown},
		{Order: 2, Name: "stop sessions", Action: func(ctx context.Context) error {
			if sessions == nil {
				c.logger.Info("no session manager configured, skipping")
				return nil
			}
			return sessions.Shutdown(ctx)
		}},
		{Order: 3, Name: "remove pid file", Action: func(context.Context) error {
			if c.store != nil {
				c.store.Cleanup()
			}
			return nil
		}},
	}
	for _, s := range defaults {
		if err := c.Register(s); err != nil {
			return err
		}
	}
	c.listen()
	return nil
}

// Register inserts step keeping ascending Order; equal orders keep their
// registration order.
func (c *Coordinator) Register(step Step) error {
	switch {
	case step.Name == "":
		return fmt.Errorf("%w: step name is required", ErrSignal)
	case step.Action == nil:
		return fmt.Errorf("%w: step %q has no action", ErrSignal, step.Name)
	case step.Order <= 0:
		return fmt.Errorf("%w: step %q order must be positive, got %d", ErrSignal, step.Name, step.Order)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step)
	sort.SliceStable(c.steps, func(i, j int) bool { return c.steps[i].Order < c.steps[j].Order })
	return nil
}

// Steps returns a copy of the registered steps in execution order.
func (c *Coordinator) Steps() []Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Step(nil), c.steps...)
}

// Results returns the outcome of every step that has finished so far.
func (c *Coordinator) Results() []StepResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]StepResult(nil), c.results...)
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the process exit has been requested.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

func (c *Coordinator) listen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listening || len(c.signals) == 0 {
		return
	}
	c.listening = true
	c.sigCh = make(chan os.Signal, 2)
	c.stopListen = make(chan struct{})
	signal.Notify(c.sigCh, c.signals...)
	go func(sigCh chan os.Signal, stop chan struct{}) {
		for {
			select {
			case sig := <-sigCh:
				go c.Initiate(sig.String())
			case <-stop:
				return
			}
		}
	}(c.sigCh, c.stopListen)
}

// Stop unsubscribes from the termination signals.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.listening {
		return
	}
	signal.Stop(c.sigCh)
	close(c.stopListen)
	c.listening = false
}

// Fatal routes an unexpected in-process failure into the shutdown path.
func (c *Coordinator) Fatal(err error) {
	c.logger.Error("fatal error, shutting down", "error", err)
	c.Initiate("fatal error: " + err.Error())
}

// Recover is meant to be deferred at the top of long-lived goroutines; a
// panic becomes a Fatal shutdown instead of a crash.
func (c *Coordinator) Recover() {
	if r := recover(); r != nil {
		c.Fatal(fmt.Errorf("panic: %v", r))
	}
}

// Initiate runs the shutdown sequence. Calls made while a sequence is in
// progress, or after it finished, are ignored.
func (c *Coordinator) Initiate(reason string) {
	c.mu.Lock()
	if c.state != Idle {
		state := c.state
		c.mu.Unlock()
		c.logger.Warn("shutdown already in progress, ignoring", "reason", reason, "state", state.String())
		return
	}
	c.state = ShuttingDown
	steps := append([]Step(nil), c.steps...)
	c.mu.Unlock()

	c.logger.Info("graceful shutdown started", "reason", reason, "steps", len(steps), "timeout", c.timeout)
	deadline := time.AfterFunc(c.timeout, func() { c.Force("timeout exceeded") })

	defer func() {
		if r := recover(); r != nil {
			deadline.Stop()
			c.Force(fmt.Sprintf("shutdown sequence failed: %v", r))
		}
	}()

	for _, step := range steps {
		c.runStep(step)
	}
	deadline.Stop()
	c.finish(Completed, 0)
}

func (c *Coordinator) runStep(step Step) {
	timeout := step.Timeout
	if timeout == 0 {
		timeout = c.stepTimeout
	}
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()

	c.logger.Debug("running shutdown step", "step", step.Order, "name", step.Name)
	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("panic: %v", r)
			}
		}()
		errCh <- step.Action(ctx)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = fmt.Errorf("step timed out after %s", timeout)
	}
	dur := time.Since(start)

	result := "ok"
	if err != nil {
		result = "error"
		c.logger.Error("shutdown step failed", "step", step.Order, "name", step.Name, "duration", dur, "error", err)
	} else {
		c.logger.Info("shutdown step completed", "step", step.Order, "name", step.Name, "duration", dur)
	}
	metrics.IncShutdownStep(step.Name, result)

	c.mu.Lock()
	c.results = append(c.results, StepResult{Order: step.Order, Name: step.Name, Err: err, Duration: dur})
	c.mu.Unlock()
}

// Force is the fallback exit: best-effort PID cleanup then exit code 1.
// It never blocks on the steps and never panics.
func (c *Coordinator) Force(reason string) {
	c.logger.Error("forcing shutdown", "reason", reason)
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("pid cleanup during forced shutdown failed", "panic", r)
			}
		}()
		if c.store != nil {
			c.store.Cleanup()
		}
	}()
	c.finish(ForcedExit, 1)
}

func (c *Coordinator) finish(state State, code int) {
	c.mu.Lock()
	if c.state == Completed || c.state == ForcedExit {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	if state == Completed {
		c.logger.Info("graceful shutdown completed")
	}
	c.exitOnce.Do(func() {
		close(c.done)
		c.exit(code)
	})
}
