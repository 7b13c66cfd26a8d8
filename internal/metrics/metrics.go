// Package metrics exposes the Prometheus counters for the authentication
// surface. Counters are registered on the default registry and served by
// the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess           = "success"
	OutcomeInvalid           = "invalid"
	OutcomeTwoFactorRequired = "two_factor_required"
	OutcomeRateLimited       = "rate_limited"
	OutcomeError             = "error"
)

var (
	// Registrations counts registration attempts by outcome.
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homebase",
		Subsystem: "auth",
		Name:      "registrations_total",
		Help:      "Registration attempts by outcome.",
	}, []string{"outcome"})

	// Logins counts login attempts by outcome.
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homebase",
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})

	// Refreshes counts refresh rotations by outcome.
	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homebase",
		Subsystem: "auth",
		Name:      "refreshes_total",
		Help:      "Refresh token rotations by outcome.",
	}, []string{"outcome"})

	// Enrollments counts two-factor enrollment steps by stage and outcome.
	Enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homebase",
		Subsystem: "auth",
		Name:      "two_factor_enrollments_total",
		Help:      "Two-factor enrollment steps by stage and outcome.",
	}, []string{"stage", "outcome"})

	// BackupExports counts admin secrets exports.
	BackupExports = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "homebase",
		Subsystem: "auth",
		Name:      "backup_exports_total",
		Help:      "Admin secrets backup exports.",
	})
)
