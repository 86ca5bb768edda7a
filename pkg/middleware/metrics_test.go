package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vango-dev/ion/pkg/pipeline"
	"github.com/vango-dev/ion/pkg/protocol"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
			return false
		}
	}
	return true
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	f, ok := gather(t, reg)[name]
	if !ok {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if labelsMatch(m, labels) {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func invoke(t *testing.T, ic pipeline.Interceptor, terminal pipeline.Next) pipeline.Result {
	t.Helper()
	call := pipeline.NewCall(pipeline.SideServer, pipeline.KindUnary, "Calculator", "Add")
	return pipeline.New(ic).Invoke(context.Background(), call, terminal)
}

func TestPrometheusRecordsCalls(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := Prometheus(WithRegistry(reg))

	invoke(t, m, func(context.Context, *pipeline.Call) pipeline.Result { return pipeline.OK() })
	invoke(t, m, func(context.Context, *pipeline.Call) pipeline.Result {
		return pipeline.Fail(protocol.NewError("DIVIDE_BY_ZERO", "no"))
	})
	invoke(t, m, func(context.Context, *pipeline.Call) pipeline.Result {
		return pipeline.Canceled(context.Canceled)
	})

	ok := map[string]string{"interface": "Calculator", "method": "Add", "status": "ok"}
	if got := counterValue(t, reg, "ion_calls_total", ok); got != 1 {
		t.Errorf("ok calls = %v, want 1", got)
	}
	failed := map[string]string{"status": "failed"}
	if got := counterValue(t, reg, "ion_calls_total", failed); got != 1 {
		t.Errorf("failed calls = %v, want 1", got)
	}
	if got := counterValue(t, reg, "ion_call_errors_total", map[string]string{"code": "DIVIDE_BY_ZERO"}); got != 1 {
		t.Errorf("DIVIDE_BY_ZERO errors = %v, want 1", got)
	}
	if got := counterValue(t, reg, "ion_call_errors_total", map[string]string{"code": protocol.CodeDeadlineExceeded}); got != 1 {
		t.Errorf("DEADLINE_EXCEEDED errors = %v, want 1", got)
	}

	f := gather(t, reg)["ion_call_duration_seconds"]
	if f == nil || len(f.GetMetric()) != 1 {
		t.Fatalf("duration family = %v", f)
	}
	if n := f.GetMetric()[0].GetHistogram().GetSampleCount(); n != 3 {
		t.Errorf("duration samples = %d, want 3", n)
	}
}

func TestPrometheusFramesAndReconnects(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := Prometheus(WithRegistry(reg), WithNamespace("test"))

	for i := 0; i < 3; i++ {
		m.RecordFrame(DirectionOut, protocol.OpData)
	}
	m.RecordFrame(DirectionOut, protocol.OpEnd)
	m.RecordReconnect()

	if got := counterValue(t, reg, "test_stream_frames_total", map[string]string{"direction": "out", "opcode": "DATA"}); got != 3 {
		t.Errorf("DATA frames = %v, want 3", got)
	}
	if got := counterValue(t, reg, "test_stream_frames_total", map[string]string{"opcode": "END"}); got != 1 {
		t.Errorf("END frames = %v, want 1", got)
	}
	if got := counterValue(t, reg, "test_reconnects_total", nil); got != 1 {
		t.Errorf("reconnects = %v, want 1", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordFrame(DirectionIn, protocol.OpData)
	m.RecordReconnect()
}

func TestPrometheusDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Prometheus(WithRegistry(reg))
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
		err, ok := r.(error)
		var are prometheus.AlreadyRegisteredError
		if !ok || !errors.As(err, &are) {
			t.Fatalf("panic = %v, want AlreadyRegisteredError", r)
		}
	}()
	Prometheus(WithRegistry(reg))
}
