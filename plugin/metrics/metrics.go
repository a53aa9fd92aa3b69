// Package metrics counts mantle mutations and failures with Prometheus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/mantle/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin          = (*Plugin)(nil)
	_ plugin.AfterSave       = (*Plugin)(nil)
	_ plugin.AfterRemove     = (*Plugin)(nil)
	_ plugin.AfterUpdate     = (*Plugin)(nil)
	_ plugin.OperationFailed = (*Plugin)(nil)
)

// Plugin records committed mutations per type and failed operations per
// type and operation.
type Plugin struct {
	saves    *prometheus.CounterVec
	removes  *prometheus.CounterVec
	updates  *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) (*Plugin, error) {
	p := &Plugin{
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mantle",
			Name:      "saves_total",
			Help:      "Documents inserted, by type.",
		}, []string{"type"}),
		removes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mantle",
			Name:      "removes_total",
			Help:      "Instances removed, by type.",
		}, []string{"type"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mantle",
			Name:      "instance_updates_total",
			Help:      "Instances updated and refreshed, by type.",
		}, []string{"type"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mantle",
			Name:      "operation_failures_total",
			Help:      "Failed operations, by type and operation.",
		}, []string{"type", "op"}),
	}
	if reg == nil {
		return p, nil
	}
	for _, c := range []prometheus.Collector{p.saves, p.removes, p.updates, p.failures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Plugin) Name() string { return "metrics" }

func (p *Plugin) OnAfterSave(_ context.Context, typeName string, _ any) error {
	p.saves.WithLabelValues(typeName).Inc()
	return nil
}

func (p *Plugin) OnAfterRemove(_ context.Context, typeName string, _ any) error {
	p.removes.WithLabelValues(typeName).Inc()
	return nil
}

func (p *Plugin) OnAfterUpdate(_ context.Context, typeName string, _ any) error {
	p.updates.WithLabelValues(typeName).Inc()
	return nil
}

func (p *Plugin) OnOperationFailed(_ context.Context, typeName, op string, _ error) error {
	p.failures.WithLabelValues(typeName, op).Inc()
	return nil
}

// Saves returns the save counter for direct inspection.
func (p *Plugin) Saves() *prometheus.CounterVec { return p.saves }

// Removes returns the remove counter.
func (p *Plugin) Removes() *prometheus.CounterVec { return p.removes }

// Updates returns the instance update counter.
func (p *Plugin) Updates() *prometheus.CounterVec { return p.updates }

// Failures returns the failure counter.
func (p *Plugin) Failures() *prometheus.CounterVec { return p.failures }
