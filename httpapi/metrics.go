package httpapi

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a prometheus registry with the Go and process
// collectors and the counters of dev.
func NewRegistry(dev Device) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := dev.Metrics()
	counters := []struct {
		name string
		help string
		v    *atomic.Uint64
	}{
		{"uhf_frames_sent_total", "Frames written to the reader.", &m.FrameSendCount},
		{"uhf_reads_total", "Transport reads that returned data.", &m.ReadCount},
		{"uhf_framing_errors_total", "Malformed frames discarded.", &m.FramingErrCount},
		{"uhf_reader_errors_total", "Error responses from the reader.", &m.AckErrCount},
		{"uhf_tag_reads_total", "Tag notifications, duplicates included.", &m.TagReadCount},
		{"uhf_unique_tags_total", "Distinct EPCs discovered by inventories.", &m.UniqueTagCount},
		{"uhf_epc_parse_errors_total", "EPCs that did not decode with the layout.", &m.ParseErrCount},
		{"uhf_tag_writes_total", "EPC writes confirmed by the reader.", &m.TagWriteCount},
		{"uhf_inventories_total", "Inventories started.", &m.ScanCount},
		{"uhf_transport_errors_total", "Failed transport reads or writes.", &m.TransportErrCount},
	}
	for _, c := range counters {
		v := c.v
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: c.name,
			Help: c.help,
		}, func() float64 { return float64(v.Load()) }))
	}

	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "uhf_inventory_running",
			Help: "1 while an inventory is running.",
		}, func() float64 {
			if dev.Stats().State.IsScanning() {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "uhf_inventory_queued",
			Help: "Discoveries waiting to be drained.",
		}, func() float64 { return float64(dev.Stats().Queued) }),
	)

	return reg
}

// Handler returns the prometheus HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
