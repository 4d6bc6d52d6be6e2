package hooks_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Skryldev/image-compressor/core"
	apperrors "github.com/Skryldev/image-compressor/errors"
	"github.com/Skryldev/image-compressor/hooks"
)

// recordingLogger keeps every message for inspection.
type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) add(level, msg string, fields []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, fmt.Sprintf("%s %s %v", level, msg, fields))
}

func (l *recordingLogger) Debug(msg string, f ...interface{}) { l.add("debug", msg, f) }
func (l *recordingLogger) Info(msg string, f ...interface{})  { l.add("info", msg, f) }
func (l *recordingLogger) Warn(msg string, f ...interface{})  { l.add("warn", msg, f) }
func (l *recordingLogger) Error(msg string, f ...interface{}) { l.add("error", msg, f) }

func TestLoggingHook(t *testing.T) {
	log := &recordingLogger{}
	h := hooks.NewLoggingHook(log)
	img := &core.ImageData{
		SourceFormat: core.FormatPNG,
		Surface:      core.NewSurface(4, 3),
		Output:       core.Modern,
		Candidate:    &core.Candidate{Bytes: make([]byte, 10), Quality: 70},
	}

	h.BeforeStep(context.Background(), "encode", img)
	h.AfterStep(context.Background(), "encode", img, time.Millisecond, nil)
	h.AfterStep(context.Background(), "decode", nil, time.Millisecond,
		apperrors.New(apperrors.CategoryDecode, "decode", apperrors.ErrUnsupportedFormat))

	if len(log.msgs) != 3 {
		t.Fatalf("got %d log lines, want 3: %v", len(log.msgs), log.msgs)
	}
	if !strings.Contains(log.msgs[1], "4x3 modern q70 10B") {
		t.Errorf("done line: %s", log.msgs[1])
	}
	if !strings.HasPrefix(log.msgs[2], "error pipeline.step.error") || !strings.Contains(log.msgs[2], "decode") {
		t.Errorf("error line: %s", log.msgs[2])
	}
}

func TestZapLogger(t *testing.T) {
	obs, logs := observer.New(zap.DebugLevel)
	l := hooks.NewZapLogger(zap.New(obs))
	l.Info("engine.bringup.ready", "attempt", 1)
	l.Warn("job.failed", "job_id", "j1")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Message != "engine.bringup.ready" || entries[0].ContextMap()["attempt"] != int64(1) {
		t.Errorf("first entry: %+v", entries[0])
	}
	if entries[1].ContextMap()["job_id"] != "j1" {
		t.Errorf("second entry: %+v", entries[1])
	}
}

func TestNewProductionZapLogger_BadLevel(t *testing.T) {
	if _, err := hooks.NewProductionZapLogger("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

// ── Metrics ───────────────────────────────────────────────────────────────────

func TestMetricsHook_InMemory(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	h := hooks.NewMetricsHook(m)

	h.AfterStep(context.Background(), "decode", nil, 20*time.Millisecond, nil)
	h.AfterStep(context.Background(), "encode", nil, 5*time.Millisecond, errors.New("plain"))
	m.RecordOutput(core.Baseline, 1000, 3)
	m.RecordOutput(core.Modern, 500, 1)

	snap := m.Snapshot()
	if snap.StepCalls["decode"] != 1 || snap.StepDurationsMs["decode"] != 20 {
		t.Errorf("decode timing: calls=%d ms=%d", snap.StepCalls["decode"], snap.StepDurationsMs["decode"])
	}
	if snap.StepErrors["encode"] != 1 {
		t.Errorf("encode errors: %d", snap.StepErrors["encode"])
	}
	if snap.Outputs["baseline"] != 1 || snap.Outputs["modern"] != 1 || snap.OutputBytes != 1500 || snap.EncodeAttempts != 4 {
		t.Errorf("outputs: %+v", snap)
	}

	// Snapshots are copies.
	snap.StepCalls["decode"] = 99
	if m.Snapshot().StepCalls["decode"] != 1 {
		t.Error("snapshot aliases collector state")
	}
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := hooks.NewPrometheusMetrics(reg, "test")
	h := hooks.NewMetricsHook(m)

	h.AfterStep(context.Background(), "encode", nil, time.Millisecond,
		&apperrors.BudgetUnreachableError{Budget: 1, SmallestSize: 2, Quality: 40, Format: "jpeg", Attempts: 5})
	h.AfterStep(context.Background(), "decode", nil, time.Millisecond, errors.New("plain"))
	m.RecordOutput(core.Modern, 64*1024, 2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	got := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range metric.GetLabel() {
				key += "," + lp.GetName() + "=" + lp.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				got[key] = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				got[key] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}

	want := map[string]float64{
		"test_step_errors_total,category=budget,step=encode":   1,
		"test_step_errors_total,category=pipeline,step=decode": 1,
		"test_step_duration_seconds,step=encode":               1,
		"test_outputs_total,format=modern":                     1,
		"test_output_bytes,format=modern":                      1,
		"test_encode_attempts,format=modern":                   1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}
