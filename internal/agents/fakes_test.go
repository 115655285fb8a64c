package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"agentforge/internal/agents/core"
	"agentforge/internal/ai"
	"agentforge/internal/console"
	"agentforge/internal/execution"
)

var knownFunctions = []ai.Function{
	ai.ConvertUserInputToGoal,
	ai.DecideProjectScope,
	ai.ListExternalURLs,
	ai.WriteBackendCode,
	ai.ImproveBackendCode,
	ai.FixBackendCode,
	ai.ExtractRESTEndpoints,
}

// fakeCompleter answers each generation step from a per-function queue.
// The last queued answer repeats once the queue is drained.
type fakeCompleter struct {
	mu        sync.Mutex
	responses map[string][]string
	calls     []string
	inputs    map[string][]string
	err       error
}

func newFakeCompleter() *fakeCompleter {
	return &fakeCompleter{
		responses: make(map[string][]string),
		inputs:    make(map[string][]string),
	}
}

func (f *fakeCompleter) on(fn ai.Function, responses ...string) *fakeCompleter {
	f.responses[fn.Name] = append(f.responses[fn.Name], responses...)
	return f
}

func (f *fakeCompleter) Complete(_ context.Context, messages []ai.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(messages) != 1 || messages[0].Role != ai.RoleSystem {
		return "", errors.New("expected a single system message")
	}
	name := ""
	for _, fn := range knownFunctions {
		if strings.Contains(messages[0].Text, fn.Instruction) {
			name = fn.Name
			break
		}
	}
	f.calls = append(f.calls, name)
	f.inputs[name] = append(f.inputs[name], messages[0].Text)
	if f.err != nil {
		return "", f.err
	}

	queue := f.responses[name]
	if len(queue) == 0 {
		return "", fmt.Errorf("no response scripted for %q", name)
	}
	out := queue[0]
	if len(queue) > 1 {
		f.responses[name] = queue[1:]
	}
	return out, nil
}

func (f *fakeCompleter) count(fn ai.Function) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == fn.Name {
			n++
		}
	}
	return n
}

// fakeBuilder returns scripted results, nil once exhausted
type fakeBuilder struct {
	results []error
	calls   int
}

func (b *fakeBuilder) Build(context.Context) error {
	b.calls++
	if len(b.results) == 0 {
		return nil
	}
	err := b.results[0]
	b.results = b.results[1:]
	return err
}

func buildFailure(diag string) error {
	return &execution.BuildError{ExitCode: 101, Diagnostics: diag}
}

type fakeServer struct {
	base  string
	stops int
}

func (s *fakeServer) Endpoint(route string) string { return s.base + route }

func (s *fakeServer) Stop() error {
	s.stops++
	return nil
}

type fakeLauncher struct {
	server  *fakeServer
	err     error
	starts  int
	onStart func()
}

func (l *fakeLauncher) Start(context.Context) (Server, error) {
	l.starts++
	if l.onStart != nil {
		l.onStart()
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.server, nil
}

type probeResult struct {
	status int
	err    error
}

// fakeProber answers by URL; unknown URLs answer 200
type fakeProber struct {
	results map[string]probeResult
	calls   []string
}

func (p *fakeProber) Status(_ context.Context, url string) (int, error) {
	p.calls = append(p.calls, url)
	if r, ok := p.results[url]; ok {
		return r.status, r.err
	}
	return 200, nil
}

type memStore struct {
	template     string
	source       string
	schema       string
	sourceWrites int
	schemaWrites int
	onSchema     func()
}

func (s *memStore) LoadTemplate() (string, error) { return s.template, nil }
func (s *memStore) ReadSource() (string, error)   { return s.source, nil }

func (s *memStore) WriteSource(_ context.Context, code string) error {
	s.sourceWrites++
	s.source = code
	return nil
}

func (s *memStore) WriteSchema(_ context.Context, schema string) error {
	s.schemaWrites++
	s.schema = schema
	if s.onSchema != nil {
		s.onSchema()
	}
	return nil
}

type reportLine struct {
	kind     console.Kind
	position string
	message  string
}

type recordingReporter struct {
	lines []reportLine
}

func (r *recordingReporter) Report(kind console.Kind, position, message string) {
	r.lines = append(r.lines, reportLine{kind: kind, position: position, message: message})
}

func (r *recordingReporter) contains(kind console.Kind, fragment string) bool {
	for _, l := range r.lines {
		if l.kind == kind && strings.Contains(l.message, fragment) {
			return true
		}
	}
	return false
}

type fixedConfirmer struct {
	answer bool
	asked  int
}

func (c *fixedConfirmer) Confirm(context.Context, string) (bool, error) {
	c.asked++
	return c.answer, nil
}

type fakeJournal struct {
	description string
	transitions []core.StateTransition
	status      string
	errMsg      string
	startErr    error
}

func (j *fakeJournal) StartRun(_ context.Context, description string) (string, error) {
	if j.startErr != nil {
		return "", j.startErr
	}
	j.description = description
	return "run-1", nil
}

func (j *fakeJournal) RecordTransitions(_ context.Context, _ string, transitions []core.StateTransition) error {
	j.transitions = append(j.transitions, transitions...)
	return nil
}

func (j *fakeJournal) FinishRun(_ context.Context, _ string, status, errMsg string) error {
	j.status = status
	j.errMsg = errMsg
	return nil
}

// testDeps wires fakes with zero delays
type testDeps struct {
	completer *fakeCompleter
	reporter  *recordingReporter
	confirmer *fixedConfirmer
	store     *memStore
	builder   *fakeBuilder
	launcher  *fakeLauncher
	urls      *fakeProber
	endpoints *fakeProber
}

func newTestDeps() *testDeps {
	return &testDeps{
		completer: newFakeCompleter(),
		reporter:  &recordingReporter{},
		confirmer: &fixedConfirmer{answer: true},
		store:     &memStore{template: "fn main() {}"},
		builder:   &fakeBuilder{},
		launcher:  &fakeLauncher{server: &fakeServer{base: "http://127.0.0.1:8080"}},
		urls:      &fakeProber{results: map[string]probeResult{}},
		endpoints: &fakeProber{results: map[string]probeResult{}},
	}
}

func (d *testDeps) deps() Deps {
	return Deps{
		Completer:      d.completer,
		Reporter:       d.reporter,
		Confirmer:      d.confirmer,
		Store:          d.store,
		Builder:        d.builder,
		Launcher:       d.launcher,
		URLProber:      d.urls,
		EndpointProber: d.endpoints,
		Settings:       Settings{MaxBugs: 2},
	}
}
