package metrics

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// 结果标签取值
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// 扩展握手方向标签取值
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// Recorder 指标记录器
type Recorder struct {
	registry *prometheus.Registry

	polls            prometheus.Counter
	peers            *prometheus.CounterVec
	sourceErrors     *prometheus.CounterVec
	dhtLookups       *prometheus.CounterVec
	dhtAnnounces     *prometheus.CounterVec
	extHandshakes    *prometheus.CounterVec
	duplicatesClosed prometheus.Counter

	discoveryRate *RateMeter
}

// NewRecorder 创建 Recorder 并注册到 reg
//
// reg 为 nil 时使用新建的私有 Registry。
func NewRecorder(reg *prometheus.Registry, clk clock.Clock) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		registry: reg,
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "btpeer_discovery_polls_total",
			Help: "Total number of peer registry polling cycles",
		}),
		peers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btpeer_discovery_peers_total",
			Help: "Peers accepted by the registry grouped by source",
		}, []string{"source"}),
		sourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btpeer_discovery_source_errors_total",
			Help: "Peer source query failures grouped by source",
		}, []string{"source"}),
		dhtLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btpeer_dht_lookups_total",
			Help: "DHT lookups grouped by result",
		}, []string{"result"}),
		dhtAnnounces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btpeer_dht_announces_total",
			Help: "DHT announces grouped by result",
		}, []string{"result"}),
		extHandshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btpeer_handshake_extended_total",
			Help: "Extended handshake messages grouped by direction",
		}, []string{"direction"}),
		duplicatesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "btpeer_connmgr_duplicates_closed_total",
			Help: "Duplicate connections closed by the connection pool",
		}),
		discoveryRate: NewRateMeter(clk),
	}

	reg.MustRegister(
		r.polls,
		r.peers,
		r.sourceErrors,
		r.dhtLookups,
		r.dhtAnnounces,
		r.extHandshakes,
		r.duplicatesClosed,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "btpeer_discovery_peers_per_second",
			Help: "Average accepted peers per second over the last minute",
		}, r.discoveryRate.Rate),
	)
	return r
}

// Registry 返回底层 Registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// IncPolls 记录一次轮询周期
func (r *Recorder) IncPolls() {
	if r == nil {
		return
	}
	r.polls.Inc()
}

// AddPeers 记录来自 source 的已接受节点数
func (r *Recorder) AddPeers(source string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.peers.WithLabelValues(source).Add(float64(n))
	r.discoveryRate.Add(int64(n))
}

// IncSourceError 记录一次发现源失败
func (r *Recorder) IncSourceError(source string) {
	if r == nil {
		return
	}
	r.sourceErrors.WithLabelValues(source).Inc()
}

// ObserveDHTLookup 记录一次 DHT 查询结果
func (r *Recorder) ObserveDHTLookup(err error) {
	if r == nil {
		return
	}
	r.dhtLookups.WithLabelValues(result(err)).Inc()
}

// ObserveDHTAnnounce 记录一次 DHT 公告结果
func (r *Recorder) ObserveDHTAnnounce(err error) {
	if r == nil {
		return
	}
	r.dhtAnnounces.WithLabelValues(result(err)).Inc()
}

// IncExtendedHandshake 记录一条扩展握手消息
func (r *Recorder) IncExtendedHandshake(direction string) {
	if r == nil {
		return
	}
	r.extHandshakes.WithLabelValues(direction).Inc()
}

// AddDuplicatesClosed 记录关闭的重复连接数
func (r *Recorder) AddDuplicatesClosed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.duplicatesClosed.Add(float64(n))
}

// DiscoveryRate 最近一分钟的平均发现速率
func (r *Recorder) DiscoveryRate() float64 {
	if r == nil {
		return 0
	}
	return r.discoveryRate.Rate()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
