package core

import (
	"context"
	"os/exec"
	"strings"
)

type fakeResponse struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
	// OnRun lets a test create files the real tool would have produced.
	OnRun func(spec CmdSpec)
}

type fakeRule struct {
	match string
	resp  fakeResponse
}

// fakeRunner answers with the first rule whose match is a substring of the
// space-joined argument list. Unmatched commands exit 1 with no output.
type fakeRunner struct {
	rules []fakeRule
	calls [][]string
}

func (f *fakeRunner) on(match string, resp fakeResponse) *fakeRunner {
	f.rules = append(f.rules, fakeRule{match: match, resp: resp})
	return f
}

func (f *fakeRunner) Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	f.calls = append(f.calls, append([]string{spec.Path}, spec.Args...))
	joined := strings.Join(spec.Args, " ")

	resp := fakeResponse{ExitCode: 1}
	for _, r := range f.rules {
		if strings.Contains(joined, r.match) {
			resp = r.resp
			break
		}
	}
	if resp.Err != nil {
		return CmdResult{}, resp.Err
	}
	if resp.OnRun != nil {
		resp.OnRun(spec)
	}
	emitLines(resp.Stdout, spec.StdoutLine)
	emitLines(resp.Stderr, spec.StderrLine)
	if resp.ExitCode != 0 {
		return CmdResult{ExitCode: resp.ExitCode}, &exec.ExitError{}
	}
	return CmdResult{}, nil
}

func (f *fakeRunner) called(match string) int {
	n := 0
	for _, c := range f.calls {
		if strings.Contains(strings.Join(c, " "), match) {
			n++
		}
	}
	return n
}

func (f *fakeRunner) lastCall(match string) []string {
	for i := len(f.calls) - 1; i >= 0; i-- {
		if strings.Contains(strings.Join(f.calls[i], " "), match) {
			return f.calls[i]
		}
	}
	return nil
}

func emitLines(text string, fn func(string)) {
	if text == "" || fn == nil {
		return
	}
	for _, ln := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		fn(ln)
	}
}
