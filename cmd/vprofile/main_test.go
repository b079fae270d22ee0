package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/viroprof/vprof"
	"github.com/viroprof/vprof/internal/eventlog"
	"github.com/viroprof/vprof/internal/stats"
	"github.com/viroprof/vprof/internal/vclock"
)

func writeEventLog(t *testing.T, path string, recs []eventlog.Record) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create event log: %v", err)
	}
	defer f.Close()

	w := eventlog.NewWriter(f)
	for _, r := range recs {
		if err := w.Write(r); err != nil {
			t.Fatalf("write record: %v", err)
		}
	}
}

func TestRunReplaysEventLogAndWritesNativeStats(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "trace.jsonl")
	outPath := filepath.Join(dir, "out.vprof")

	writeEventLog(t, logPath, []eventlog.Record{
		{Kind: "call", Tick: 0, Module: "m", Name: "a", Line: 1},
		{Kind: "call", Tick: 1, Module: "m", Name: "b", Line: 2},
		{Kind: "return", Tick: 4},
		{Kind: "return", Tick: 6},
	})

	rout, wout, _ := os.Pipe()
	rerr, werr, _ := os.Pipe()
	defer rout.Close()
	defer rerr.Close()

	code := run([]string{"-f", "native", "-o", outPath, logPath}, wout, werr)
	wout.Close()
	werr.Close()

	if code != 0 {
		t.Fatalf("run() = %d", code)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty native stats output")
	}
}

func TestRunRejectsMissingEventLogPath(t *testing.T) {
	rout, wout, _ := os.Pipe()
	rerr, werr, _ := os.Pipe()
	defer rout.Close()
	defer rerr.Close()

	code := run([]string{}, wout, werr)
	wout.Close()
	werr.Close()

	if code != 2 {
		t.Fatalf("run() = %d, want 2", code)
	}
}

func TestRunRejectsMissingEventLogFile(t *testing.T) {
	rout, wout, _ := os.Pipe()
	rerr, werr, _ := os.Pipe()
	defer rout.Close()
	defer rerr.Close()

	code := run([]string{filepath.Join(t.TempDir(), "missing.jsonl")}, wout, werr)
	wout.Close()
	werr.Close()

	if code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
}

// TestReplayDrivesMultiContextAndTag reproduces the maintainer review's
// comment that a record's ctx_id/tag must actually drive per-context and
// per-tag attribution (spec.md §5 NATIVE_THREAD, §1(a) tags) through the
// only entry point, rather than round-tripping through the event log
// unused while every event silently collides on context 0.
func TestReplayDrivesMultiContextAndTag(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "trace.jsonl")
	writeEventLog(t, logPath, []eventlog.Record{
		{Kind: "call", Tick: 0, Module: "m", Name: "a", Line: 1, CtxID: 11, Tag: 5},
		{Kind: "return", Tick: 3, CtxID: 11, Tag: 5},
		{Kind: "call", Tick: 0, Module: "m", Name: "b", Line: 2, CtxID: 22, Tag: 9},
		{Kind: "return", Tick: 7, CtxID: 22, Tag: 9},
	})

	reader, f, err := eventlog.OpenFile(logPath)
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	defer f.Close()

	prof := vprof.New(vprof.ClockWall, 0)
	clock := vclock.NewManual(1e9)
	prof.SetClock(clock)
	if err := prof.Start(false, true); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := replay(prof, clock, reader); err != nil {
		t.Fatalf("replay: %v", err)
	}
	prof.Stop()

	ctxs, err := prof.ContextStats("id", false)
	if err != nil {
		t.Fatalf("ContextStats: %v", err)
	}
	if len(ctxs) != 2 {
		t.Fatalf("len(ContextStats) = %d, want 2 (ctx 11 and ctx 22)", len(ctxs))
	}

	ctx11 := int64(11)
	entries, err := prof.FuncStats(stats.Filter{CtxID: &ctx11}, "name", false)
	if err != nil {
		t.Fatalf("FuncStats(ctx=11): %v", err)
	}
	if len(entries) != 1 || entries[0].TTot != 3 {
		t.Fatalf("FuncStats(ctx=11) = %+v, want one entry with ttot=3", entries)
	}

	tag9 := int64(9)
	entries, err = prof.FuncStats(stats.Filter{Tag: &tag9}, "name", false)
	if err != nil {
		t.Fatalf("FuncStats(tag=9): %v", err)
	}
	if len(entries) != 1 || entries[0].TTot != 7 {
		t.Fatalf("FuncStats(tag=9) = %+v, want one entry with ttot=7", entries)
	}
}

func TestRunCallgrindFormatToStdout(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "trace.jsonl")
	writeEventLog(t, logPath, []eventlog.Record{
		{Kind: "call", Tick: 0, Module: "m", Name: "a", Line: 1},
		{Kind: "return", Tick: 5},
	})

	rout, wout, _ := os.Pipe()
	rerr, werr, _ := os.Pipe()
	defer rerr.Close()

	code := run([]string{"-f", "callgrind", logPath}, wout, werr)
	wout.Close()
	werr.Close()

	buf := make([]byte, 4096)
	n, _ := rout.Read(buf)
	rout.Close()

	if code != 0 {
		t.Fatalf("run() = %d", code)
	}
	if !strings.Contains(string(buf[:n]), "events:") {
		t.Fatalf("expected callgrind header in output, got %q", string(buf[:n]))
	}
}
