package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "duomatch", Name: "logins_total", Help: "Number of OAuth login completions by provider and outcome."},
		[]string{"provider", "outcome"},
	)
	TokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "duomatch", Name: "token_refreshes_total", Help: "Number of refresh grant attempts by outcome."},
		[]string{"outcome"},
	)
	SessionsSwept = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "duomatch", Name: "expired_rows_swept_total", Help: "Number of expired rows removed by the sweeper, by store."},
		[]string{"store"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "duomatch", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "duomatch", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(Logins)
	reg.MustRegister(TokenRefreshes)
	reg.MustRegister(SessionsSwept)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
