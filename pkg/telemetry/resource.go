package telemetry

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/playground-engine/jobsystem/pkg/hardware"
)

// HostInfo is the CPU description attached to every exported span.
type HostInfo struct {
	CPUs     int
	Source   string
	Summary  hardware.Summary
	Features hardware.Features
}

// DescribeHost collects HostInfo from an initialised topology.
func DescribeHost(topo hardware.Topology) HostInfo {
	info := HostInfo{
		CPUs:    topo.CPUCount(),
		Summary: hardware.Summarize(topo),
	}
	if d, ok := topo.(hardware.Describer); ok {
		info.Source = d.Source()
		info.Features = d.Features()
	}
	return info
}

func (h HostInfo) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("host.cpu.count", h.CPUs),
		attribute.Int("host.cpu.performance", h.Summary.Performance),
		attribute.Int("host.cpu.efficient", h.Summary.Efficient),
		attribute.String("host.cpu.topology_source", h.Source),
		attribute.String("host.cpu.model.name", h.Features.Brand),
		attribute.Bool("host.cpu.avx", h.Features.AVX),
		attribute.Bool("host.cpu.avx2", h.Features.AVX2),
	}
}

// buildResource merges service, host and user attributes into the default resource.
func buildResource(_ context.Context, cfg *Config, host HostInfo) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if name, err := os.Hostname(); err == nil && name != "" {
		attrs = append(attrs, semconv.HostName(name))
	}
	attrs = append(attrs, host.attributes()...)
	for k, v := range cfg.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}
