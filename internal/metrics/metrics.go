package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the attendance core, exposed on /metrics.
var (
	TokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spot_qr_tokens_issued_total",
		Help: "QR tokens issued by teachers.",
	})
	AttendanceLogged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spot_attendance_logged_total",
		Help: "Attendance records created from token redemptions.",
	})
	AttendanceRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spot_attendance_rejected_total",
		Help: "Redemptions rejected, by reason.",
	}, []string{"reason"})
	TokensSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spot_qr_tokens_swept_total",
		Help: "Expired tokens deactivated by the sweeper.",
	})
)
