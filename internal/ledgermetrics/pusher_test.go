package ledgermetrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/carbonvault/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

func TestBuildRemoteWriteSeriesSortsLabelsAndSkipsHistograms(t *testing.T) {
	families := []*dto.MetricFamily{
		{
			Name: proto.String("carbonvault_ledger_assets"),
			Type: dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{
				Label: []*dto.LabelPair{{Name: proto.String("status"), Value: proto.String("retired")}},
				Gauge: &dto.Gauge{Value: proto.Float64(3)},
			}},
		},
		{
			Name: proto.String("latency"),
			Type: dto.MetricType_HISTOGRAM.Enum(),
			Metric: []*dto.Metric{{
				Histogram: &dto.Histogram{SampleCount: proto.Uint64(1)},
			}},
		},
	}

	series := buildRemoteWriteSeries(families, map[string]string{"environment": "prod", "status": "ignored"}, 1700)
	require.Len(t, series, 1)
	assert.Equal(t, []prompb.Label{
		{Name: "__name__", Value: "carbonvault_ledger_assets"},
		{Name: "environment", Value: "prod"},
		{Name: "status", Value: "retired"},
	}, series[0].Labels)
	assert.Equal(t, []prompb.Sample{{Value: 3, Timestamp: 1700}}, series[0].Samples)
}

func TestRemoteWritePusherSendsSnappyProtobuf(t *testing.T) {
	var (
		headers http.Header
		written prompb.WriteRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		raw, err := snappy.Decode(nil, body)
		if err == nil {
			err = written.Unmarshal(raw)
		}
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	summary := NewSummary()
	summary.retiredTonnes.Set(12.5)

	pusher := NewRemoteWritePusher(srv.URL, " secret ", nil)
	pusher.now = func() time.Time { return time.UnixMilli(42) }
	require.NoError(t, pusher.Push(context.Background(), summary.Registry()))

	assert.Equal(t, "snappy", headers.Get("Content-Encoding"))
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))

	var found bool
	for _, ts := range written.Timeseries {
		for _, label := range ts.Labels {
			if label.Name == "__name__" && label.Value == "carbonvault_ledger_retired_tonnes" {
				found = true
				require.Len(t, ts.Samples, 1)
				assert.Equal(t, 12.5, ts.Samples[0].Value)
				assert.Equal(t, int64(42), ts.Samples[0].Timestamp)
			}
		}
	}
	assert.True(t, found)
}

func TestRemoteWritePusherReportsRejectedWrites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewRemoteWritePusher(srv.URL, "", nil).Push(context.Background(), NewSummary().Registry())
	assert.Error(t, err)
}

func TestPushgatewayPusherPutsGroupedJob(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "carbonvault_test_gauge"})
	reg.MustRegister(gauge)

	pusher := NewPushgatewayPusher(srv.URL, "carbonvault", map[string]string{"environment": "test", "instance": ""})
	require.NoError(t, pusher.Push(context.Background(), reg))
	assert.Equal(t, "/metrics/job/carbonvault/environment/test", path)
}

func TestNewPusherFromConfig(t *testing.T) {
	log := zap.NewNop()

	assert.Nil(t, NewPusher(config.Config{}, log))
	assert.Nil(t, NewPusher(config.Config{MetricsPushExporter: exporterPrometheusRemoteWrite}, log))
	assert.Nil(t, NewPusher(config.Config{MetricsPushExporter: "statsd", MetricsPushEndpoint: "http://x"}, log))
	assert.Nil(t, NewPusher(config.Config{MetricsPushExporter: exporterPrometheusRemoteWrite, MetricsPushEndpoint: "not a url"}, log))

	assert.IsType(t, &RemoteWritePusher{}, NewPusher(config.Config{
		MetricsPushExporter: exporterPrometheusRemoteWrite,
		MetricsPushEndpoint: "http://prometheus:9090/api/v1/write",
	}, log))
	assert.IsType(t, &PushgatewayPusher{}, NewPusher(config.Config{
		AppName:             "carbonvault",
		MetricsPushExporter: exporterPrometheusPushgateway,
		MetricsPushEndpoint: "http://pushgateway:9091",
	}, log))
}
