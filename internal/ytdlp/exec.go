package ytdlp

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/mhalvorsen/fetchd/internal/constants"
)

// ProgressFunc receives download progress: percent in [0,100] (negative when
// the line carried no percentage) and the raw output line, truncated to
// constants.MaxProgressLine.
type ProgressFunc func(percent float64, line string)

var percentPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%`)

// Executor runs the external download tool. One Executor is shared across
// jobs; each Run tracks its own process and is killed through its context.
type Executor struct {
	binary string
}

func NewExecutor(binary string) *Executor {
	return &Executor{binary: binary}
}

// Run executes the tool with the given arguments, invoking onProgress for
// every output line from either stream. Cancelling ctx terminates the
// subprocess by its process handle; Run then reports the cancellation via
// ctx.Err so callers can tell a stop request from a tool failure.
func (e *Executor) Run(ctx context.Context, args []string, onProgress ProgressFunc) error {
	cmd := exec.CommandContext(ctx, e.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", e.binary, err)
	}

	var tail tailBuffer
	var wg sync.WaitGroup
	read := func(r *bufio.Scanner) {
		defer wg.Done()
		for r.Scan() {
			line := truncate(r.Text(), constants.MaxProgressLine)
			tail.append(line)
			if onProgress != nil {
				onProgress(parsePercent(line), line)
			}
		}
	}

	wg.Add(2)
	go read(newLineScanner(stdout))
	go read(newLineScanner(stderr))
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %w\n%s", e.binary, err, tail.String())
	}
	return nil
}

// newLineScanner splits on both \n and \r so progress lines the tool redraws
// in place still arrive one by one.
func newLineScanner(r interface{ Read([]byte) (int, error) }) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitByNewlineOrCR)
	return scanner
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// parsePercent extracts the completion percentage from a progress line,
// returning -1 when the line has none.
func parsePercent(line string) float64 {
	match := percentPattern.FindStringSubmatch(line)
	if match == nil {
		return -1
	}
	percent, err := strconv.ParseFloat(match[1], 64)
	if err != nil || percent > 100 {
		return -1
	}
	return percent
}

// tailBuffer keeps a bounded tail of output for error reporting.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
}

const tailKeep = 20

func (b *tailBuffer) append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > tailKeep {
		b.lines = b.lines[len(b.lines)-tailKeep:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(strings.Join(b.lines, "\n"))
}
