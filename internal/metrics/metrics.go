// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "geomeet"

var (
	MembershipPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "membership_polls_total",
		Help:      "Membership fetches issued by the poller, by result.",
	}, []string{"result"})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_requests_total",
		Help:      "Requests sent to the remote room service, by operation and result.",
	}, []string{"op", "result"})

	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "User-initiated coordinator operations, by operation and result.",
	}, []string{"op", "result"})

	SharingMembers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sharing_members",
		Help:      "Members sharing a location in the latest snapshot of the active room.",
	})

	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_subscribers",
		Help:      "Open websocket update feeds.",
	})
)

// Result maps an error to a label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
