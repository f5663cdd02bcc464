// Package catalog assembles the default provider factory table. It lives in
// its own package so that the provider core stays free of adapter imports.
package catalog

import (
	"github.com/moolen/inquest/internal/provider"
	"github.com/moolen/inquest/internal/provider/github"
	"github.com/moolen/inquest/internal/provider/grafana"
	"github.com/moolen/inquest/internal/provider/jaeger"
	"github.com/moolen/inquest/internal/provider/kuberuntime"
	"github.com/moolen/inquest/internal/provider/loki"
	"github.com/moolen/inquest/internal/provider/prometheus"
)

// DefaultTable returns the factory table with every built-in provider type
// registered. Registration only fails on duplicate (category, type) pairs,
// which is a programming error here.
func DefaultTable() (*provider.Table, error) {
	table := provider.NewTable()
	for _, register := range []func(*provider.Table) error{
		loki.Register,
		prometheus.Register,
		jaeger.Register,
		github.Register,
		kuberuntime.Register,
		grafana.Register,
	} {
		if err := register(table); err != nil {
			return nil, err
		}
	}
	return table, nil
}
