package metrics

import (
	"errors"
	"reflect"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/dep2p/go-federate/pkg/types"
)

// Namespace 指标命名空间
const Namespace = "federate"

// Metrics 运行时指标集合
type Metrics struct {
	callbacks     *prometheus.CounterVec
	discarded     *prometheus.CounterVec
	gateWait      *prometheus.HistogramVec
	gateFailures  *prometheus.CounterVec
	logicalTime   prometheus.Gauge
	grants        prometheus.Counter
	instances     *prometheus.GaugeVec
	eventsDropped prometheus.Counter
}

// New 创建指标并注册到 reg；reg 为 nil 时只创建不注册
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "callbacks_total",
			Help:      "RTI callbacks received, by kind",
		}, []string{"kind"}),

		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dispatch_discarded_total",
			Help:      "RTI callbacks discarded by the dispatcher, by reason",
		}, []string{"reason"}),

		gateWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "gate_wait_seconds",
			Help:      "Time the driving goroutine spent blocked on the rendezvous gate",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"cycle"}),

		gateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "gate_failures_total",
			Help:      "Gate waits that ended by interruption or timeout",
		}, []string{"cycle"}),

		logicalTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "logical_time_microseconds",
			Help:      "Current granted federation logical time",
		}),

		grants: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "time_advance_grants_total",
			Help:      "Time advance grants received",
		}),

		instances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "instances",
			Help:      "Object instances in the instance mapping, by origin",
		}, []string{"origin"}),

		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber buffer was full",
		}),
	}

	if reg == nil {
		return m, nil
	}

	var errs error
	m.callbacks = register(reg, m.callbacks, &errs)
	m.discarded = register(reg, m.discarded, &errs)
	m.gateWait = register(reg, m.gateWait, &errs)
	m.gateFailures = register(reg, m.gateFailures, &errs)
	m.logicalTime = register(reg, m.logicalTime, &errs)
	m.grants = register(reg, m.grants, &errs)
	m.instances = register(reg, m.instances, &errs)
	m.eventsDropped = register(reg, m.eventsDropped, &errs)
	if errs != nil {
		return nil, errs
	}
	return m, nil
}

// register 注册收集器；已注册时复用已存在的同名收集器
func register[C prometheus.Collector](reg prometheus.Registerer, c C, errs *error) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	*errs = multierr.Append(*errs, err)
	return c
}

// Callback 记录一次回调
func (m *Metrics) Callback(kind string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(kind).Inc()
}

// Discarded 记录一次丢弃
func (m *Metrics) Discarded(reason string) {
	if m == nil {
		return
	}
	m.discarded.WithLabelValues(reason).Inc()
}

// ObserveGate 记录一次闸门等待，签名与 gate.Observer 一致
func (m *Metrics) ObserveGate(cycle string, waited time.Duration, err error) {
	if m == nil {
		return
	}
	m.gateWait.WithLabelValues(cycle).Observe(waited.Seconds())
	if err != nil && !errors.Is(err, types.ErrGateArmed) {
		m.gateFailures.WithLabelValues(cycle).Inc()
	}
}

// LogicalTime 设置当前逻辑时间
func (m *Metrics) LogicalTime(t types.LogicalTime) {
	if m == nil {
		return
	}
	m.logicalTime.Set(float64(t))
}

// Grant 记录一次时间推进许可
func (m *Metrics) Grant() {
	if m == nil {
		return
	}
	m.grants.Inc()
}

// InstanceAdded 映射新增实例
func (m *Metrics) InstanceAdded(origin types.Origin) {
	if m == nil {
		return
	}
	m.instances.WithLabelValues(origin.String()).Inc()
}

// InstanceRemoved 映射移除实例
func (m *Metrics) InstanceRemoved(origin types.Origin) {
	if m == nil {
		return
	}
	m.instances.WithLabelValues(origin.String()).Dec()
}

// EventDropped 记录一次事件丢弃，签名可直接用作 eventbus.WithDropHook
func (m *Metrics) EventDropped(reflect.Type) {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}
