package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Command describes one external tool invocation.
type Command struct {
	Stage  string
	Binary string
	Args   []string
	Stdin  io.Reader
	// Stdout receives output directly when set; otherwise it is captured
	// and returned by Run.
	Stdout io.Writer
}

// Run executes the command and maps failures onto markers: a binary absent
// from PATH is ErrToolMissing, an expired context deadline is ErrTimeout and
// a non-zero exit is ErrExternalTool carrying the tail of stderr.
func (c Command) Run(ctx context.Context) ([]byte, error) {
	binary := strings.TrimSpace(c.Binary)
	if binary == "" {
		return nil, Wrap(ErrConfiguration, c.Stage, "run command", "binary not configured", nil)
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, Wrap(ErrToolMissing, c.Stage, binary, "not found on PATH", err)
	}

	cmd := exec.CommandContext(ctx, binary, c.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = c.Stdin
	cmd.Stderr = &stderr
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	} else {
		cmd.Stdout = &stdout
	}

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return nil, Wrap(ErrTimeout, c.Stage, binary, "timed out", ctxErr)
	case ctxErr != nil:
		return nil, ctxErr
	}
	detail := tail(stderr.String(), 400)
	if strings.Contains(strings.ToLower(detail), "out of memory") {
		return nil, Wrap(ErrResourceExhausted, c.Stage, binary, detail, err)
	}
	return nil, Wrap(ErrExternalTool, c.Stage, binary, fmt.Sprintf("exited with error: %s", detail), err)
}

func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "no stderr output"
	}
	if len(s) > limit {
		s = "..." + s[len(s)-limit:]
	}
	return strings.Join(strings.Fields(s), " ")
}
