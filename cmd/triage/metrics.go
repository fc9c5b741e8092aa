package main

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// writeMetrics gathers registry and writes it to path in Prometheus text exposition format, for a
// sidecar scraper or a cron-driven `cat`-into-pushgateway setup -- a one-shot CLI has no server to
// scrape live, so the exposition is a file instead of an HTTP handler.
func writeMetrics(registry *prometheus.Registry, path string) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
