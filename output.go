package procmgr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"vawter.tech/stopper"
)

// lineWriter appends whole lines to a file sink. Both output readers of a
// process share one lineWriter, so each line lands in a single write.
type lineWriter struct {
	mu   sync.Mutex
	file *os.File
}

// openSink prepares the file sink for a routing. The file is truncated for
// the file and both presets; only routings that write to file keep it open.
func openSink(r Routing) (*lineWriter, error) {
	if !r.truncatesFile() {
		return nil, nil
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC | os.O_APPEND
	f, err := os.OpenFile(r.Path, flags, FileMode)
	if err != nil {
		return nil, fmt.Errorf("opening output file: %w", err)
	}
	if !r.File {
		_ = f.Close()
		return nil, nil
	}
	return &lineWriter{file: f}, nil
}

// WriteLine appends line and a newline in one write
func (w *lineWriter) WriteLine(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return os.ErrClosed
	}
	_, err := w.file.WriteString(line + "\n")
	return err
}

// Close closes the sink file. It is safe on a nil writer.
func (w *lineWriter) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// readStream copies one output stream of p, line by line, into its sinks
// until end of file. It never touches the registry.
func (s *Supervisor) readStream(sctx *stopper.Context, p *managedProcess, stream string, r *os.File) {
	defer func() {
		s.releasePipe(r)
		if p.streams.Add(-1) == 0 {
			if err := p.sink.Close(); err != nil {
				s.logger.Error("closing output file", "pid", p.pid, "name", p.name, "error", err)
			}
		}
	}()

	prefix := "[" + p.name + "] " + stream + ": "
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			s.route(sctx, p, prefix+strings.TrimSpace(line))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return
			}
			s.logger.Error("reading process output", "pid", p.pid, "name", p.name, "stream", stream, "error", err)
			return
		}
	}
}

func (s *Supervisor) route(sctx *stopper.Context, p *managedProcess, line string) {
	r := p.routing

	if r.Console {
		s.consoleMu.Lock()
		_, _ = fmt.Fprintln(s.console, line)
		s.consoleMu.Unlock()
	}

	if r.File && p.sink != nil {
		if err := p.sink.WriteLine(line); err != nil {
			s.logger.Error("writing output file", "pid", p.pid, "name", p.name, "path", r.Path, "error", err)
		}
	}

	if r.Queue {
		select {
		case s.queue <- line:
		case <-sctx.Stopping():
		}
	}
}

// consumeQueue forwards queued lines to the line handler until the
// supervisor stops, then drains what is left.
func (s *Supervisor) consumeQueue(sctx *stopper.Context) error {
	for {
		select {
		case line := <-s.queue:
			s.lineHandler(line)
		case <-sctx.Stopping():
			for {
				select {
				case line := <-s.queue:
					s.lineHandler(line)
				default:
					return nil
				}
			}
		}
	}
}
