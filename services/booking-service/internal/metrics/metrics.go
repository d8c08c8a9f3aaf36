package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters/histograms for slot resolution and booking writes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	slotRequests   *prometheus.CounterVec
	malformed      prometheus.Counter
	bookableStarts prometheus.Histogram
	bookingWrites  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		slotRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "slots",
			Name:      "requests_total",
			Help:      "Slot list resolutions by where the raw list came from",
		}, []string{"source"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "slots",
			Name:      "malformed_records_total",
			Help:      "Slot records skipped because they could not be parsed",
		}),
		bookableStarts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "salonbook",
			Subsystem: "slots",
			Name:      "bookable_starts",
			Help:      "Number of bookable start times returned per resolution",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		bookingWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "bookings",
			Name:      "writes_total",
			Help:      "Booking writes by operation and outcome",
		}, []string{"op", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotRequests, m.malformed, m.bookableStarts, m.bookingWrites)
	return m
}

func (m *Metrics) ObserveSlotRequest(source string) {
	if m == nil {
		return
	}
	m.slotRequests.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveMalformed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.malformed.Add(float64(n))
}

func (m *Metrics) ObserveBookableStarts(n int) {
	if m == nil {
		return
	}
	m.bookableStarts.Observe(float64(n))
}

func (m *Metrics) ObserveBookingWrite(op, outcome string) {
	if m == nil {
		return
	}
	m.bookingWrites.WithLabelValues(op, outcome).Inc()
}
