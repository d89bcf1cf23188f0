package ledgermetrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
)

var trackedStatuses = []assetdomain.Status{
	assetdomain.StatusAvailable,
	assetdomain.StatusOwned,
	assetdomain.StatusPendingRetirement,
	assetdomain.StatusRetired,
}

// Summary holds the ledger gauges pushed to the metrics sink. It owns a
// private registry so HTTP and runtime collectors never leave the process.
type Summary struct {
	registry      *prometheus.Registry
	assets        *prometheus.GaugeVec
	tonnes        *prometheus.GaugeVec
	totalTonnes   prometheus.Gauge
	retiredTonnes prometheus.Gauge
}

func NewSummary() *Summary {
	s := &Summary{
		registry: prometheus.NewRegistry(),
		assets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "carbonvault_ledger_assets",
			Help: "Assets in the ledger by lifecycle status.",
		}, []string{"status"}),
		tonnes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "carbonvault_ledger_tonnes",
			Help: "Tonnes of CO2e in the ledger by lifecycle status.",
		}, []string{"status"}),
		totalTonnes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carbonvault_ledger_tonnes_total",
			Help: "Tonnes of CO2e ever minted.",
		}),
		retiredTonnes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carbonvault_ledger_retired_tonnes",
			Help: "Tonnes of CO2e permanently retired.",
		}),
	}
	s.registry.MustRegister(s.assets, s.tonnes, s.totalTonnes, s.retiredTonnes)
	return s
}

func (s *Summary) Registry() *prometheus.Registry {
	return s.registry
}

// Set replaces every gauge with the figures of summary. Statuses missing
// from summary are reported as zero.
func (s *Summary) Set(summary *assetdomain.Summary) {
	if s == nil || summary == nil {
		return
	}
	for _, status := range trackedStatuses {
		total := summary.ByStatus[status]
		tonnes, _ := total.Tonnes.Float64()
		s.assets.WithLabelValues(string(status)).Set(float64(total.Count))
		s.tonnes.WithLabelValues(string(status)).Set(tonnes)
	}
	total, _ := summary.TotalTonnes.Float64()
	retired, _ := summary.RetiredTonnes.Float64()
	s.totalTonnes.Set(total)
	s.retiredTonnes.Set(retired)
}

// Refresh reads the ledger summary into the gauges.
func (s *Summary) Refresh(ctx context.Context, assets assetdomain.Service) error {
	summary, err := assets.Summary(ctx)
	if err != nil {
		return err
	}
	s.Set(summary)
	return nil
}
