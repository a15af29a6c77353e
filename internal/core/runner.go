package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

type CmdSpec struct {
	Path string
	Args []string
	Dir  string
	Env  map[string]string

	StdoutLine func(string)
	StderrLine func(string)
}

type CmdResult struct {
	ExitCode int
	PID      int
	Duration time.Duration
}

// CommandRunner executes external tools. Every xcrun invocation in this
// package goes through one so tests can substitute canned output.
type CommandRunner interface {
	Run(ctx context.Context, spec CmdSpec) (CmdResult, error)
}

// ExecRunner runs real processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	return RunStreaming(ctx, spec)
}

// Output is the buffered form of a finished command.
type Output struct {
	Stdout string
	Stderr string
	CmdResult
}

// Capture runs spec and buffers both streams. Line callbacks already set on
// spec still fire.
func Capture(ctx context.Context, r CommandRunner, spec CmdSpec) (Output, error) {
	if r == nil {
		r = ExecRunner{}
	}
	var stdout, stderr strings.Builder
	onOut, onErr := spec.StdoutLine, spec.StderrLine
	spec.StdoutLine = func(s string) {
		stdout.WriteString(s)
		stdout.WriteString("\n")
		if onOut != nil {
			onOut(s)
		}
	}
	spec.StderrLine = func(s string) {
		stderr.WriteString(s)
		stderr.WriteString("\n")
		if onErr != nil {
			onErr(s)
		}
	}
	res, err := r.Run(ctx, spec)
	return Output{Stdout: stdout.String(), Stderr: stderr.String(), CmdResult: res}, err
}

// IsExitError reports whether err only says the process exited non-zero.
func IsExitError(err error) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee)
}

func RunStreaming(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	start := time.Now()

	cmd := exec.Command(spec.Path, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	cmd.Env = mergeEnv(os.Environ(), spec.Env)

	// Signal the whole process group on cancel; xcodebuild spawns children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return CmdResult{}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return CmdResult{}, err
	}

	if err := cmd.Start(); err != nil {
		return CmdResult{}, err
	}
	pid := cmd.Process.Pid

	stdoutDone := make(chan struct{})
	stderrDone := make(chan struct{})
	go streamLines(stdout, spec.StdoutLine, stdoutDone)
	go streamLines(stderr, spec.StderrLine, stderrDone)

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	finish := func(err error) (CmdResult, error) {
		<-stdoutDone
		<-stderrDone
		if ctx.Err() != nil {
			return CmdResult{ExitCode: exitCodeFromErr(err), PID: pid, Duration: time.Since(start)}, ctx.Err()
		}
		return finalizeResult(err, pid, time.Since(start))
	}

	select {
	case err := <-waitDone:
		return finish(err)
	case <-ctx.Done():
	}

	// Escalate INT -> TERM -> KILL, three seconds apart.
	for _, sig := range []syscall.Signal{syscall.SIGINT, syscall.SIGTERM} {
		_ = syscall.Kill(-pid, sig)
		select {
		case err := <-waitDone:
			return finish(err)
		case <-time.After(3 * time.Second):
		}
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	return finish(<-waitDone)
}

func streamLines(r io.Reader, onLine func(string), done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(r)
	// xcodebuild can print very long lines (linker invocations).
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
}

func finalizeResult(waitErr error, pid int, dur time.Duration) (CmdResult, error) {
	res := CmdResult{ExitCode: exitCodeFromErr(waitErr), PID: pid, Duration: dur}
	return res, waitErr
}

func exitCodeFromErr(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
			return ws.ExitStatus()
		}
	}
	return 1
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	m := map[string]string{}
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	for k, v := range extra {
		m[k] = v
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

func formatCmd(path string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, path)
	for _, a := range args {
		if strings.ContainsAny(a, " \t\"") {
			a = strings.ReplaceAll(a, "\"", "\\\"")
			parts = append(parts, "\""+a+"\"")
		} else {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}
