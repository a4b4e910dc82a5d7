package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce registers the collector with reg. If an identical collector is
// already registered it returns the existing one. Panics on any other error.
func registerOnce(reg prometheus.Registerer, collector prometheus.Collector) prometheus.Collector {
	if err := reg.Register(collector); err != nil {
		are := prometheus.AlreadyRegisteredError{}
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return collector
}
