package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue finds a counter sample whose labels include want
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.Operation("like_pin", "success", 2*time.Second)
	r.Operation("like_pin", "success", time.Second)
	r.Operation("delete_pin", "unconfirmed", 3*time.Second)
	r.Login("already_authenticated")
	r.Fallback("repin", "default_board")
	r.Download("saved")

	assert.Equal(t, 2.0, counterValue(t, reg, "pinrunner_operations_total", map[string]string{"operation": "like_pin", "status": "success"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "pinrunner_operations_total", map[string]string{"operation": "delete_pin", "status": "unconfirmed"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "pinrunner_logins_total", map[string]string{"state": "already_authenticated"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "pinrunner_fallback_paths_total", map[string]string{"path": "default_board"}))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["pinrunner_operation_duration_seconds"])
	assert.True(t, names["pinrunner_downloads_total"])
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Operation("x", "failed", time.Second)
		r.Login("failed")
		r.Fallback("x", "y")
		r.Download("failed")
	})
}
