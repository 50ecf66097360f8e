package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics methods are safe on a nil receiver so callers can run without instrumentation.
type Metrics struct {
	registry      *prometheus.Registry
	httpReqCnt    *prometheus.CounterVec
	httpDur       *prometheus.HistogramVec
	logins        *prometheus.CounterVec
	registrations *prometheus.CounterVec
	otpIssued     *prometheus.CounterVec
	otpVerified   *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Buckets: prometheus.DefBuckets}, []string{"method", "route", "status"})
	r.MustRegister(httpReqCnt, httpDur)

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "auth_logins_total"}, []string{"result"})
	registrations := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "auth_registrations_total"}, []string{"path"})
	otpIssued := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "auth_otp_issued_total"}, []string{"purpose"})
	otpVerified := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "auth_otp_verifications_total"}, []string{"purpose", "result"})
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "auth_token_refreshes_total"}, []string{"result"})
	r.MustRegister(logins, registrations, otpIssued, otpVerified, refreshes)

	return &Metrics{
		registry:      r,
		httpReqCnt:    httpReqCnt,
		httpDur:       httpDur,
		logins:        logins,
		registrations: registrations,
		otpIssued:     otpIssued,
		otpVerified:   otpVerified,
		refreshes:     refreshes,
	}
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) Registration(path string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(path).Inc()
}

func (m *Metrics) OtpIssued(purpose string) {
	if m == nil {
		return
	}
	m.otpIssued.WithLabelValues(purpose).Inc()
}

func (m *Metrics) OtpVerified(purpose string, ok bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if ok {
		result = "ok"
	}
	m.otpVerified.WithLabelValues(purpose, result).Inc()
}

func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

// Middleware records per-route request counts and latencies.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			labels := []string{c.Request().Method, route, strconv.Itoa(status)}
			m.httpReqCnt.WithLabelValues(labels...).Inc()
			m.httpDur.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
