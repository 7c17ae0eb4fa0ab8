package tools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Invocation describes a single external tool call.
type Invocation struct {
	Binary  string
	Args    []string
	Env     []string // extra KEY=VALUE entries appended to the inherited environment
	Dir     string
	Timeout time.Duration
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, inv Invocation, onLine func(string)) error
}

// stderrTailLines bounds the amount of tool output retained for error messages.
const stderrTailLines = 20

// NewExecutor returns the production executor backed by os/exec.
func NewExecutor() Executor {
	return commandExecutor{}
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, inv Invocation, onLine func(string)) error {
	if strings.TrimSpace(inv.Binary) == "" {
		return errors.New("tool binary required")
	}
	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, inv.Binary, inv.Args...) //nolint:gosec
	if inv.Dir != "" {
		cmd.Dir = inv.Dir
	}
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", inv.Binary, err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once
	tail := newLineTail(stderrTailLines)

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() { scanErr = err })
		}
	}

	// stdout and stderr are scanned from separate goroutines; the callback
	// contract is serial, so interleave under a lock.
	var lineMu sync.Mutex
	forward := func(line string) {
		tail.Add(line)
		if onLine == nil {
			return
		}
		lineMu.Lock()
		defer lineMu.Unlock()
		onLine(line)
	}

	wg.Add(2)
	go scan(stdout, forward)
	go scan(stderr, forward)
	wg.Wait()

	waitErr := cmd.Wait()
	if scanErr != nil {
		return fmt.Errorf("scan %s output: %w", inv.Binary, scanErr)
	}
	if waitErr != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			return fmt.Errorf("%s timed out after %s", inv.Binary, inv.Timeout)
		}
		if detail := tail.String(); detail != "" {
			return fmt.Errorf("%s: %w: %s", inv.Binary, waitErr, detail)
		}
		return fmt.Errorf("%s: %w", inv.Binary, waitErr)
	}
	return nil
}

// Capture runs an invocation and returns its combined line output. Run
// serializes the line callback, so the builder needs no extra locking.
func Capture(ctx context.Context, exec Executor, inv Invocation) (string, error) {
	var builder strings.Builder
	err := exec.Run(ctx, inv, func(line string) {
		builder.WriteString(line)
		builder.WriteByte('\n')
	})
	return builder.String(), err
}

type lineTail struct {
	mu    sync.Mutex
	limit int
	lines []string
}

func newLineTail(limit int) *lineTail {
	return &lineTail{limit: limit}
}

func (t *lineTail) Add(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, trimmed)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "; ")
}
