// Package metrics defines the Prometheus instruments for the sign-in flow.
// A standalone package so HTTP, services and the reconcile machine can all
// record without import cycles.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SigninTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signin_total",
		Help: "Sign-in attempts by provider and outcome.",
	}, []string{"provider", "outcome"})

	ProviderMismatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signin_provider_mismatch_total",
		Help: "Sign-ins rejected by the provider lock, by required provider.",
	}, []string{"required"})

	DuplicateRaceRecovered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signin_duplicate_race_recovered_total",
		Help: "Unique-email races resolved by re-read during signup.",
	})

	BridgeIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_tokens_issued_total",
		Help: "Session bridge tokens minted.",
	})

	BridgeRedeemed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_redemptions_total",
		Help: "Session bridge redemption attempts by result.",
	}, []string{"result"})

	ExchangeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oauth_exchange_duration_seconds",
		Help:    "Authorization-code exchange latency by provider.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
)

// Register registers every instrument on reg (default registerer when nil).
// Already-registered collectors are tolerated so tests can call this twice.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		SigninTotal,
		ProviderMismatchTotal,
		DuplicateRaceRecovered,
		BridgeIssued,
		BridgeRedeemed,
		ExchangeDuration,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
