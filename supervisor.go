package procmgr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"vawter.tech/stopper"
)

// Supervisor owns a registry of external processes. It spawns them, captures
// their output without blocking callers, answers lookup queries and stops
// process trees with escalating force. All methods are safe for concurrent
// use.
type Supervisor struct {
	// StopTimeout is the default graceful termination budget for Stop
	StopTimeout time.Duration

	// KillGrace is how long Stop waits after SIGKILL
	KillGrace time.Duration

	// PollInterval is the interval between liveness probes during Stop
	PollInterval time.Duration

	// Concurrency is the maximum number of concurrent stops in StopAll
	Concurrency int

	logger      *slog.Logger
	console     io.Writer
	consoleMu   sync.Mutex
	lineHandler func(string)
	queue       chan string

	// mu protects procs and closed
	mu     sync.Mutex
	procs  []*managedProcess
	closed bool

	pipesMu sync.Mutex
	pipes   map[*os.File]struct{}

	sctx      *stopper.Context
	closeOnce sync.Once
	closeErr  error
}

// managedProcess is a registry entry. Fields other than stopping are fixed
// at spawn.
type managedProcess struct {
	pid       int
	name      string
	command   []string
	cmd       *exec.Cmd
	createdAt time.Time
	routing   Routing
	sink      *lineWriter

	// streams counts live output readers; the last one closes sink
	streams atomic.Int32

	// done is closed once the process has been reaped
	done chan struct{}

	// stopping is guarded by Supervisor.mu
	stopping bool
	stopped  chan struct{}
}

func (p *managedProcess) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *managedProcess) info() ProcessInfo {
	state := StateRunning
	if p.exited() {
		state = StateExited
	}
	return ProcessInfo{
		PID:       p.pid,
		Name:      p.name,
		State:     state,
		Command:   append([]string(nil), p.command...),
		CreatedAt: p.createdAt,
		Routing:   p.routing,
	}
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithLogger sets the structured logger for lifecycle events
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = l
	}
}

// WithConsole sets the writer used by console routing
func WithConsole(w io.Writer) Option {
	return func(s *Supervisor) {
		s.console = w
	}
}

// WithLineHandler sets the consumer of the shared output queue. The default
// handler logs each line at info level.
func WithLineHandler(fn func(line string)) Option {
	return func(s *Supervisor) {
		s.lineHandler = fn
	}
}

// WithQueueSize sets the capacity of the shared output queue
func WithQueueSize(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.queue = make(chan string, n)
		}
	}
}

// WithStopTimeout sets the default graceful termination budget
func WithStopTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		s.StopTimeout = d
	}
}

// WithKillGrace sets how long Stop waits after SIGKILL
func WithKillGrace(d time.Duration) Option {
	return func(s *Supervisor) {
		s.KillGrace = d
	}
}

// WithPollInterval sets the liveness probe interval used by Stop
func WithPollInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		s.PollInterval = d
	}
}

// WithConcurrency sets the maximum number of concurrent stops in StopAll
func WithConcurrency(n int) Option {
	return func(s *Supervisor) {
		s.Concurrency = n
	}
}

// New creates a Supervisor and starts its output queue consumer
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		StopTimeout:  DefaultStopTimeout,
		KillGrace:    DefaultKillGrace,
		PollInterval: DefaultPollInterval,
		Concurrency:  DefaultConcurrency,
		logger:       slog.Default(),
		console:      os.Stdout,
		pipes:        make(map[*os.File]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.queue == nil {
		s.queue = make(chan string, DefaultQueueSize)
	}
	if s.lineHandler == nil {
		s.lineHandler = func(line string) {
			s.logger.Info("process output", "line", line)
		}
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.StopTimeout <= 0 {
		s.StopTimeout = DefaultStopTimeout
	}

	s.sctx = stopper.WithContext(context.Background())
	s.sctx.Go(s.consumeQueue)

	return s
}

type spawnConfig struct {
	name    string
	routing Routing
	dir     string
	env     []string
}

// SpawnOption configures a single Spawn call
type SpawnOption func(*spawnConfig)

// WithName sets the process label. Defaults to Process-<pid>.
func WithName(name string) SpawnOption {
	return func(c *spawnConfig) {
		c.name = name
	}
}

// WithRouting sets the output routing flags
func WithRouting(r Routing) SpawnOption {
	return func(c *spawnConfig) {
		c.routing = r
	}
}

// WithOutputMode sets the output routing from a preset mode
func WithOutputMode(mode OutputMode, path string) SpawnOption {
	return func(c *spawnConfig) {
		c.routing = mode.Routing(path)
	}
}

// WithDir sets the working directory of the process
func WithDir(dir string) SpawnOption {
	return func(c *spawnConfig) {
		c.dir = dir
	}
}

// WithEnv sets the environment of the process as KEY=value pairs.
// The supervisor's environment is inherited when unset.
func WithEnv(env []string) SpawnOption {
	return func(c *spawnConfig) {
		c.env = env
	}
}

// Spawn starts command (an executable and its arguments, never a shell
// string) and returns its pid. Failure to start is reported here and leaves
// no registry entry.
func (s *Supervisor) Spawn(command []string, opts ...SpawnOption) (int, error) {
	cfg := spawnConfig{routing: OutputDiscard.Routing("")}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(command) == 0 || command[0] == "" {
		return 0, s.spawnFailed(cfg.name, command, ErrEmptyCommand)
	}
	if err := cfg.routing.validate(); err != nil {
		return 0, s.spawnFailed(cfg.name, command, err)
	}
	if s.isClosed() {
		return 0, &OpError{Op: OpSpawn, Name: cfg.name, Err: ErrClosed}
	}

	sink, err := openSink(cfg.routing)
	if err != nil {
		return 0, s.spawnFailed(cfg.name, command, err)
	}

	s.logger.Info("starting process", "command", command, "routing", cfg.routing.String())

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		_ = sink.Close()
		return 0, s.spawnFailed(cfg.name, command, err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		_ = sink.Close()
		return 0, s.spawnFailed(cfg.name, command, err)
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = cfg.dir
	cmd.Env = cfg.env
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		_ = sink.Close()
		return 0, s.spawnFailed(cfg.name, command, err)
	}
	// The child holds its own copies of the write ends.
	closeAll(stdoutW, stderrW)

	pid := cmd.Process.Pid
	name := cfg.name
	if name == "" {
		name = fmt.Sprintf("Process-%d", pid)
	}

	p := &managedProcess{
		pid:       pid,
		name:      name,
		command:   append([]string(nil), command...),
		cmd:       cmd,
		createdAt: time.Now(),
		routing:   cfg.routing,
		sink:      sink,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	p.streams.Store(2)

	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = cmd.Process.Kill()
		closeAll(stdoutR, stderrR)
		_ = sink.Close()
		return 0, &OpError{Op: OpSpawn, PID: pid, Name: name, Err: ErrClosed}
	}
	s.procs = append(s.procs, p)
	// Readers are started under mu so Close cannot stop the stopper first.
	s.trackPipe(stdoutR)
	s.trackPipe(stderrR)
	s.sctx.Go(func(sctx *stopper.Context) error {
		s.readStream(sctx, p, StreamStdout, stdoutR)
		return nil
	})
	s.sctx.Go(func(sctx *stopper.Context) error {
		s.readStream(sctx, p, StreamStderr, stderrR)
		return nil
	})
	s.mu.Unlock()

	s.logger.Info("process started", "pid", pid, "name", name)
	return pid, nil
}

func (s *Supervisor) spawnFailed(name string, command []string, err error) error {
	s.logger.Error("starting process failed", "command", command, "name", name, "error", err)
	return &OpError{Op: OpSpawn, Name: name, Err: err}
}

// List drops entries whose process has exited, then returns the remaining
// processes in registration order.
func (s *Supervisor) List() []ProcessInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()

	out := make([]ProcessInfo, 0, len(s.procs))
	for _, p := range s.procs {
		out = append(out, p.info())
	}
	return out
}

// Exists reports whether the target is registered and still running. The
// answer is a snapshot and may be stale by the time it is used.
func (s *Supervisor) Exists(target Target) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findLocked(target)
	if p == nil {
		return false
	}
	if p.exited() {
		s.removeLocked(p)
		s.logger.Info("process exited", "pid", p.pid, "name", p.name)
		return false
	}
	return true
}

// Lookup returns the registered process with the given pid
func (s *Supervisor) Lookup(pid int) (ProcessInfo, bool) {
	return s.lookup(ByPID(pid))
}

// LookupByName returns the first registered process with the given name
func (s *Supervisor) LookupByName(name string) (ProcessInfo, bool) {
	return s.lookup(ByName(name))
}

func (s *Supervisor) lookup(target Target) (ProcessInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findLocked(target)
	if p == nil {
		return ProcessInfo{}, false
	}
	return p.info(), true
}

// Wait blocks until the process with the given pid exits or ctx is done.
// The entry stays registered until the next List, Exists or Stop.
func (s *Supervisor) Wait(ctx context.Context, pid int) (ProcessInfo, error) {
	s.mu.Lock()
	p := s.findLocked(ByPID(pid))
	s.mu.Unlock()

	if p == nil {
		return ProcessInfo{}, &OpError{Op: OpWait, PID: pid, Err: ErrNotFound}
	}

	select {
	case <-p.done:
		return p.info(), nil
	case <-ctx.Done():
		return p.info(), ctx.Err()
	}
}

// Close stops every managed process, then stops the output readers and the
// queue consumer. Pipes still held open by orphaned descendants are closed
// after a short grace period. Close is idempotent.
func (s *Supervisor) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		merr := &MultiError{}
		merr.Add(s.StopAll(ctx))

		s.sctx.Stop(DefaultReaderGrace)

		waited := make(chan error, 1)
		go func() {
			waited <- s.sctx.Wait()
		}()

		select {
		case err := <-waited:
			merr.Add(err)
		case <-time.After(DefaultReaderGrace):
			s.closePipes()
			merr.Add(<-waited)
		}

		s.closeErr = merr.Err()
	})
	return s.closeErr
}

func (s *Supervisor) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// findLocked resolves a target; pid takes precedence over name
func (s *Supervisor) findLocked(target Target) *managedProcess {
	if target.PID > 0 {
		for _, p := range s.procs {
			if p.pid == target.PID {
				return p
			}
		}
		return nil
	}
	if target.Name != "" {
		for _, p := range s.procs {
			if p.name == target.Name {
				return p
			}
		}
	}
	return nil
}

func (s *Supervisor) removeLocked(target *managedProcess) {
	for i, p := range s.procs {
		if p == target {
			s.procs = append(s.procs[:i], s.procs[i+1:]...)
			return
		}
	}
}

// purgeLocked drops entries whose process has been reaped
func (s *Supervisor) purgeLocked() {
	kept := s.procs[:0]
	for _, p := range s.procs {
		if p.exited() {
			s.logger.Info("process exited", "pid", p.pid, "name", p.name)
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(s.procs); i++ {
		s.procs[i] = nil
	}
	s.procs = kept
}

func (s *Supervisor) trackPipe(f *os.File) {
	s.pipesMu.Lock()
	s.pipes[f] = struct{}{}
	s.pipesMu.Unlock()
}

func (s *Supervisor) releasePipe(f *os.File) {
	s.pipesMu.Lock()
	delete(s.pipes, f)
	s.pipesMu.Unlock()
	_ = f.Close()
}

func (s *Supervisor) closePipes() {
	s.pipesMu.Lock()
	pipes := make([]*os.File, 0, len(s.pipes))
	for f := range s.pipes {
		pipes = append(pipes, f)
	}
	s.pipesMu.Unlock()

	for _, f := range pipes {
		_ = f.Close()
	}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
