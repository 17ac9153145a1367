// Package metrics defines the custom Prometheus metrics for the learning
// platform API. HTTP request metrics come from the echoprometheus middleware;
// this package only carries auth outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vlp"

// AuthAttemptsTotal counts credential operations.
// Labels:
//   - operation: "login", "register", "refresh", "change_password"
//   - result: "success" or a machine error code (e.g. "INVALID_CREDENTIALS")
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of credential operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// TokenVerificationsTotal counts auth gate decisions.
// Labels:
//   - mode: "required" or "optional"
//   - result: "success" or a machine error code (e.g. "TOKEN_EXPIRED")
var TokenVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_verifications_total",
		Help:      "Total number of access token verifications, by mode and result.",
	},
	[]string{"mode", "result"},
)

// AuthorizationDenialsTotal counts requests refused by role or ownership rules.
// Label:
//   - rule: "role" or "ownership"
var AuthorizationDenialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_denials_total",
		Help:      "Total number of requests denied by the role authorizer.",
	},
	[]string{"rule"},
)

// LoginLockoutsTotal counts logins refused by the failed-login limiter.
var LoginLockoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_lockouts_total",
		Help:      "Total number of login attempts refused because of repeated failures.",
	},
)
