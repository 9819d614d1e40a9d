package mermaid

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultRasterTimeout bounds one mmdc invocation.
const DefaultRasterTimeout = 30 * time.Second

// RasterOptions configures SVG rasterization via the Mermaid CLI.
type RasterOptions struct {
	// Binary is the mmdc executable. Defaults to "mmdc" on PATH.
	Binary string

	// Timeout bounds the subprocess. Defaults to DefaultRasterTimeout.
	Timeout time.Duration
}

// RasterError captures a failed rasterization. The diagram text that
// was being rasterized is never lost; callers return it alongside this
// error payload.
type RasterError struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Stderr   string `json:"stderr,omitempty"`
}

// Error implements the error interface.
func (e *RasterError) Error() string {
	return fmt.Sprintf("raster command %q failed (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
}

// RasterSVG renders Mermaid diagram text to SVG by invoking the
// external mmdc binary. Any failure, including a missing binary or a
// timeout, is reported as a *RasterError; the caller's diagram text
// remains usable either way.
func RasterSVG(ctx context.Context, diagram string, opts RasterOptions) ([]byte, *RasterError) {
	binary := opts.Binary
	if binary == "" {
		binary = "mmdc"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRasterTimeout
	}

	dir, err := os.MkdirTemp("", "archmap-mmdc-*")
	if err != nil {
		return nil, &RasterError{Command: binary, ExitCode: -1, Stderr: err.Error()}
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "diagram.mmd")
	out := filepath.Join(dir, "diagram.svg")
	if err := os.WriteFile(in, []byte(diagram), 0644); err != nil {
		return nil, &RasterError{Command: binary, ExitCode: -1, Stderr: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, "-i", in, "-o", out, "-b", "transparent")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		re := &RasterError{
			Command:  strings.Join(cmd.Args, " "),
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			re.ExitCode = exitErr.ExitCode()
		}
		if re.Stderr == "" {
			re.Stderr = err.Error()
		}
		if ctx.Err() == context.DeadlineExceeded {
			re.Stderr = "timeout: " + re.Stderr
		}
		return nil, re
	}

	svg, err := os.ReadFile(out)
	if err != nil {
		return nil, &RasterError{
			Command:  strings.Join(cmd.Args, " "),
			ExitCode: 0,
			Stderr:   "no output produced: " + err.Error(),
		}
	}
	return svg, nil
}
