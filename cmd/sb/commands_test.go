package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/signalbox/internal/assemble"
	"github.com/zulandar/signalbox/internal/enrichment"
	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/route"
	"github.com/zulandar/signalbox/internal/storage"
	"github.com/zulandar/signalbox/internal/trace"
)

const atomSeed = `
atoms:
  - id: sie-f30001
    title: SINAMICS F30001 overcurrent
    manufacturer: siemens
    equipment_class: vfd
    body: F30001 indicates power unit overcurrent. Check motor cable insulation and ramp-up time.
    source_doc: sinamics-g120-lh.pdf
    source_page: 412
  - id: sie-f30002
    title: SINAMICS F30002 DC link overvoltage
    manufacturer: siemens
    equipment_class: vfd
    body: F30002 indicates DC link overvoltage. Increase ramp-down time or add a braking resistor.
    source_doc: sinamics-g120-lh.pdf
    source_page: 413
`

const caseSeed = `
cases:
  - id: case-101
    problem: G120 trips F30001 on start with long motor cable
    resolution: Added output reactor and extended ramp-up to 5 s.
    vendor: siemens
    equipment_class: vfd
`

// writeConfig writes a two-provider sqlite config into a temp dir.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
storage:
  providers:
    - name: primary
      driver: sqlite
      path: %s
    - name: fallback
      driver: sqlite
      path: %s
embedding:
  provider: hash
logging:
  level: error
%s`, filepath.Join(dir, "primary.db"), filepath.Join(dir, "fallback.db"), extra)
	path := filepath.Join(dir, "signalbox.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.Execute()
	return out.String(), err
}

func TestDBInit_SQLite(t *testing.T) {
	cfgPath := writeConfig(t, "")
	out, err := runCmd(t, "db", "init", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db init: %v", err)
	}
	if !strings.Contains(out, "tables on primary") || !strings.Contains(out, "tables on fallback") {
		t.Errorf("output = %q, want both providers migrated", out)
	}
}

func TestAtomsIngest_ReplicatesAndDedupes(t *testing.T) {
	cfgPath := writeConfig(t, "")
	seed := writeFile(t, "atoms.yaml", atomSeed)

	out, err := runCmd(t, "atoms", "ingest", seed, "--config", cfgPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	for _, want := range []string{"primary: 2 atoms ingested", "fallback: 2 atoms ingested"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}

	out, err = runCmd(t, "atoms", "ingest", seed, "--config", cfgPath)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if !strings.Contains(out, "primary: 0 atoms ingested, 2 already present") {
		t.Errorf("second ingest output = %q, want duplicates skipped", out)
	}

	a, err := openApp(cfgPath, new(bytes.Buffer))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	atom, err := a.atoms.Get(context.Background(), "sie-f30001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(atom.Embedding) == 0 {
		t.Error("ingested atom should carry an embedding")
	}
}

func TestCasesIngest(t *testing.T) {
	cfgPath := writeConfig(t, "")
	seed := writeFile(t, "cases.yaml", caseSeed)

	out, err := runCmd(t, "cases", "ingest", seed, "--config", cfgPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out, "primary: 1 cases recorded") {
		t.Errorf("output = %q", out)
	}
}

func TestAsk_EndToEnd(t *testing.T) {
	cfgPath := writeConfig(t, "")
	seed := writeFile(t, "atoms.yaml", atomSeed)
	if _, err := runCmd(t, "atoms", "ingest", seed, "--config", cfgPath); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	out, err := runCmd(t, "ask", "--config", cfgPath, "--json", "Siemens", "SINAMICS", "G120", "drive", "F30001", "overcurrent")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	var body struct {
		Response assemble.Response `json:"response"`
	}
	if err := json.Unmarshal([]byte(out), &body); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if body.Response.Answer == "" {
		t.Error("answer should not be empty")
	}
	if body.Response.Route == route.Clarification {
		t.Errorf("route = %s, want an answer for a Siemens question", body.Response.Route)
	}
}

func TestAsk_ThinCoverageDeliversEnrichment(t *testing.T) {
	cfgPath := writeConfig(t, "routing:\n  min_similarity: -1\n")
	seed := writeFile(t, "atoms.yaml", atomSeed)
	if _, err := runCmd(t, "atoms", "ingest", seed, "--config", cfgPath); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	out, err := runCmd(t, "ask", "--config", cfgPath, "--json", "--trace", "Siemens", "SINAMICS", "G120", "drive", "F30001", "overcurrent")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	var body struct {
		Response assemble.Response `json:"response"`
		Trace    trace.AgentTrace  `json:"trace"`
	}
	if err := json.Unmarshal([]byte(out), &body); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if body.Response.Route != route.SpecialistWithEnrichment || !body.Trace.EnrichmentQueued {
		t.Fatalf("route = %s queued = %v, want B with enrichment queued", body.Response.Route, body.Trace.EnrichmentQueued)
	}

	a, err := openApp(cfgPath, new(bytes.Buffer))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	pending, err := enrichment.NewStoreSink(a.pool).Pending(context.Background(), 0)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].RequestID != body.Response.RequestID {
		t.Errorf("pending = %+v, want the request from ask", pending)
	}
}

func TestHealth(t *testing.T) {
	cfgPath := writeConfig(t, "")
	out, err := runCmd(t, "health", "--config", cfgPath)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out, "PROVIDER") || strings.Count(out, "healthy") < 2 {
		t.Errorf("health output = %q", out)
	}
}

func TestPrintHealth_NoneHealthy(t *testing.T) {
	buf := new(bytes.Buffer)
	err := printHealth(buf, []storage.ProviderStatus{{Name: "primary", Health: "unhealthy", LastError: "refused"}})
	if err == nil {
		t.Fatal("expected error when no provider is healthy")
	}
	if !strings.Contains(buf.String(), "refused") {
		t.Errorf("output = %q, want last error shown", buf.String())
	}
}

// --- runAsk with a stub ---

type stubAnswerer struct {
	questions []string
	err       error
}

func (s *stubAnswerer) Handle(ctx context.Context, req intent.Request) (*assemble.Response, *trace.AgentTrace, error) {
	s.questions = append(s.questions, req.Payload.Content)
	if s.err != nil {
		return nil, nil, s.err
	}
	return &assemble.Response{
			RequestID: req.ID,
			Answer:    "Answer to: " + req.Payload.Content,
			Citations: []assemble.Citation{{Kind: assemble.KindAtom, ID: "atom-1"}},
			Notes:     []string{"Similar case: case-9"},
			Route:     route.DirectSpecialist,
		}, &trace.AgentTrace{
			RequestID: req.ID,
			Flags:     []string{trace.FlagEnhancementTimeout},
			Stages:    []trace.StageTiming{{Stage: trace.StageCoverage, Duration: time.Millisecond}},
		}, nil
}

func TestRunAsk_Args(t *testing.T) {
	ans := &stubAnswerer{}
	out := new(bytes.Buffer)
	if err := runAsk(context.Background(), ans, strings.NewReader(""), out, []string{"ABB", "2310"}, askOpts{showTrace: true}); err != nil {
		t.Fatal(err)
	}
	if len(ans.questions) != 1 || ans.questions[0] != "ABB 2310" {
		t.Errorf("questions = %v", ans.questions)
	}
	for _, want := range []string{"[route A]", "Answer to: ABB 2310", "Notes:", "Sources: atom:atom-1", "enhancement_timeout"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunAsk_Stdin(t *testing.T) {
	ans := &stubAnswerer{}
	if err := runAsk(context.Background(), ans, strings.NewReader("drive shows F0002\n"), new(bytes.Buffer), nil, askOpts{}); err != nil {
		t.Fatal(err)
	}
	if len(ans.questions) != 1 || !strings.Contains(ans.questions[0], "F0002") {
		t.Errorf("questions = %v", ans.questions)
	}
}

func TestRunAsk_Interactive(t *testing.T) {
	ans := &stubAnswerer{}
	out := new(bytes.Buffer)
	in := strings.NewReader("first question\n\nsecond question\nexit\nnever asked\n")
	if err := runAsk(context.Background(), ans, in, out, nil, askOpts{interactive: true}); err != nil {
		t.Fatal(err)
	}
	if len(ans.questions) != 2 {
		t.Errorf("questions = %v, want 2 before exit", ans.questions)
	}
	// One prompt up front and one after each line read before exit.
	if strings.Count(out.String(), "sb> ") != 4 {
		t.Errorf("prompt count = %d, want 4", strings.Count(out.String(), "sb> "))
	}
}

func TestRunAsk_InteractiveReportsErrors(t *testing.T) {
	ans := &stubAnswerer{err: storage.ErrStorageUnavailable}
	out := new(bytes.Buffer)
	if err := runAsk(context.Background(), ans, strings.NewReader("anything\n"), out, nil, askOpts{interactive: true}); err != nil {
		t.Fatalf("interactive mode should keep going: %v", err)
	}
	if !strings.Contains(out.String(), "error:") {
		t.Errorf("output = %q, want error line", out.String())
	}
}

func TestRunServe_StopsOnCancel(t *testing.T) {
	port := 19000 + int(time.Now().UnixNano()%1000)
	cfgPath := writeConfig(t, fmt.Sprintf("server:\n  port: %d\n", port))

	ctx, cancel := context.WithCancel(context.Background())
	out := new(bytes.Buffer)
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, out, new(bytes.Buffer), cfgPath, 0, true) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServe: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not stop after cancel")
	}
}

func TestCreateAdapter(t *testing.T) {
	cfgPath := writeConfig(t, `
telegraph:
  platform: discord
  discord:
    bot_token: token
`)
	a, err := openApp(cfgPath, new(bytes.Buffer))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if _, err := createAdapter(a.cfg.Current(), a.log); err != nil {
		t.Errorf("discord adapter: %v", err)
	}
}
