// Package metrics exposes Prometheus counters for the scheduling core.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics counts bookings, conflicts and referral protocol steps.
// All methods are nil-safe so wiring metrics stays optional in tests.
type SchedulingMetrics struct {
	appointmentsTotal *prometheus.CounterVec
	slotConflicts     *prometheus.CounterVec
	referralsTotal    *prometheus.CounterVec
	sweepDeleted      *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		appointmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalclinic",
			Subsystem: "scheduling",
			Name:      "appointments_total",
			Help:      "Appointment lifecycle transitions",
		}, []string{"action"}),
		slotConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalclinic",
			Subsystem: "scheduling",
			Name:      "slot_conflicts_total",
			Help:      "Write attempts rejected by the conflict check",
		}, []string{"operation"}),
		referralsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalclinic",
			Subsystem: "referrals",
			Name:      "events_total",
			Help:      "Referral protocol steps",
		}, []string{"step"}),
		sweepDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalclinic",
			Subsystem: "sweeper",
			Name:      "deleted_rows_total",
			Help:      "Rows removed by the status sweeper",
		}, []string{"table"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.appointmentsTotal, m.slotConflicts, m.referralsTotal, m.sweepDeleted)
	return m
}

func (m *SchedulingMetrics) ObserveAppointment(action string) {
	if m == nil {
		return
	}
	m.appointmentsTotal.WithLabelValues(action).Inc()
}

func (m *SchedulingMetrics) ObserveConflict(operation string) {
	if m == nil {
		return
	}
	m.slotConflicts.WithLabelValues(operation).Inc()
}

func (m *SchedulingMetrics) ObserveReferral(step string) {
	if m == nil {
		return
	}
	m.referralsTotal.WithLabelValues(step).Inc()
}

func (m *SchedulingMetrics) ObserveSweep(table string, deleted int64) {
	if m == nil || deleted <= 0 {
		return
	}
	m.sweepDeleted.WithLabelValues(table).Add(float64(deleted))
}
