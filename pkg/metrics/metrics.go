package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		MessageRoutedTotal, DeliveryFailTotal,
		DecisionFailTotal, DecisionFallbackTotal,
		NegotiationTotal, NegotiationRounds,
	)
}

// MessageRoutedTotal 总线路由消息数（按消息类型）
var MessageRoutedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "synapse_message_routed_total",
		Help: "总线路由消息数（按消息类型）",
	},
	[]string{"type"},
)

// DeliveryFailTotal 收件方未注册导致的投递失败数
var DeliveryFailTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "synapse_delivery_fail_total",
		Help: "收件方未注册导致的投递失败数",
	},
)

// DecisionFailTotal 决策提供方失败数（按 provider）
var DecisionFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "synapse_decision_fail_total",
		Help: "决策提供方失败数",
	},
	[]string{"provider"},
)

// DecisionFallbackTotal 决策失败后回落规则决策的次数
var DecisionFallbackTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "synapse_decision_fallback_total",
		Help: "决策失败后回落规则决策的次数",
	},
)

// NegotiationTotal 协商会话终态数（按状态）
var NegotiationTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "synapse_negotiation_total",
		Help: "协商会话终态数（按状态）",
	},
	[]string{"status"}, // completed | aborted
)

// NegotiationRounds 单次协商轮数分布
var NegotiationRounds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "synapse_negotiation_rounds",
		Help:    "单次协商的 PROPOSAL/REJECTION 轮数分布",
		Buckets: []float64{1, 2, 4, 6, 8, 10, 15, 20},
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
