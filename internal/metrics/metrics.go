// Package metrics exposes session and installation state as Prometheus
// collectors.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/neasmart-core/internal/installation"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "neasmart"

// Session records session events and installation readings.
// It implements session.Metrics.
type Session struct {
	disconnects     prometheus.Counter
	publishes       *prometheus.CounterVec
	messages        *prometheus.CounterVec
	tokenRefreshes  *prometheus.CounterVec
	authentications *prometheus.CounterVec
	connected       prometheus.Gauge
	installations   prometheus.Gauge

	// readingsMu keeps Reset and refill of the reading gauges together.
	readingsMu      sync.Mutex
	zoneTemperature *prometheus.GaugeVec
	zoneTarget      *prometheus.GaugeVec
	zoneHumidity    *prometheus.GaugeVec
	pumpOn          *prometheus.GaugeVec
	outsideTemp     *prometheus.GaugeVec
}

// NewSession creates the collectors and registers them with reg.
func NewSession(reg prometheus.Registerer, namespace string) *Session {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Session{
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_disconnects_total",
			Help:      "Unexpected broker disconnects.",
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Broker publishes by result.",
		}, []string{"result"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound broker messages by kind and result.",
		}, []string{"kind", "result"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		authentications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authentications_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connected",
			Help:      "1 while the broker connection is up.",
		}),
		installations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "installations",
			Help:      "Installations in the model.",
		}),
		zoneTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zone_temperature_fahrenheit",
			Help:      "Current zone temperature in degree Fahrenheit.",
		}, []string{"installation", "zone", "name"}),
		zoneTarget: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zone_target_temperature_fahrenheit",
			Help:      "Zone setpoint in degree Fahrenheit.",
		}, []string{"installation", "zone", "name"}),
		zoneHumidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zone_humidity_percent",
			Help:      "Zone relative humidity in percent.",
		}, []string{"installation", "zone", "name"}),
		pumpOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pump_on",
			Help:      "1 while the circulation pump runs.",
		}, []string{"installation"}),
		outsideTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outside_temperature_fahrenheit",
			Help:      "Outside temperature in degree Fahrenheit.",
		}, []string{"installation"}),
	}

	reg.MustRegister(
		m.disconnects,
		m.publishes,
		m.messages,
		m.tokenRefreshes,
		m.authentications,
		m.connected,
		m.installations,
		m.zoneTemperature,
		m.zoneTarget,
		m.zoneHumidity,
		m.pumpOn,
		m.outsideTemp,
	)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// Disconnected counts an unexpected broker disconnect.
func (m *Session) Disconnected() {
	m.disconnects.Inc()
}

// Published records the outcome of one publish.
func (m *Session) Published(err error) {
	m.publishes.WithLabelValues(result(err)).Inc()
}

// MessageHandled records one inbound message.
func (m *Session) MessageHandled(kind string, err error) {
	m.messages.WithLabelValues(kind, result(err)).Inc()
}

// TokenRefreshed records a refresh attempt.
func (m *Session) TokenRefreshed(outcome string) {
	m.tokenRefreshes.WithLabelValues(outcome).Inc()
}

// Authenticated records a login attempt.
func (m *Session) Authenticated(outcome string) {
	m.authentications.WithLabelValues(outcome).Inc()
}

// SetConnected records the transport state.
func (m *Session) SetConnected(connected bool) {
	m.connected.Set(boolGauge(connected))
}

// SetInstallations records the number of installations.
func (m *Session) SetInstallations(n int) {
	m.installations.Set(float64(n))
}

// Observe replaces the reading gauges with values from installations.
// Zones that disappeared from the model are dropped.
func (m *Session) Observe(installations []installation.Installation) {
	m.readingsMu.Lock()
	defer m.readingsMu.Unlock()

	m.zoneTemperature.Reset()
	m.zoneTarget.Reset()
	m.zoneHumidity.Reset()
	m.pumpOn.Reset()
	m.outsideTemp.Reset()

	for _, in := range installations {
		m.pumpOn.WithLabelValues(in.Unique).Set(boolGauge(in.PumpOn))
		m.outsideTemp.WithLabelValues(in.Unique).Set(float64(in.OutsideTemp) / 10)

		for _, g := range in.Groups {
			for _, z := range g.Zones {
				if len(z.Channels) == 0 {
					continue
				}
				var current, target, humidity int
				for _, ch := range z.Channels {
					current += ch.CurrentTemperature
					target += ch.TargetTemperature
					humidity += ch.Humidity
				}
				n := float64(len(z.Channels))
				labels := []string{in.Unique, strconv.Itoa(z.Number), z.Name}
				m.zoneTemperature.WithLabelValues(labels...).Set(float64(current) / n / 10)
				m.zoneTarget.WithLabelValues(labels...).Set(float64(target) / n / 10)
				m.zoneHumidity.WithLabelValues(labels...).Set(float64(humidity) / n)
			}
		}
	}
}

// ObserveStore keeps the reading gauges in sync with store. The returned
// function stops observing.
func (m *Session) ObserveStore(store *installation.Store) (cancel func()) {
	m.Observe(store.Installations())
	return store.Subscribe(func() {
		m.Observe(store.Installations())
	})
}
