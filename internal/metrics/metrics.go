// Package metrics объявляет счётчики Prometheus для путей синхронизации
// даты выписки. Счётчики экспортируются обработчиком /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DischargeSaves количество сохранений даты выписки по путям
	// (checkout, account, admin).
	DischargeSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discharge_saves_total",
		Help: "Number of discharge date saves by path.",
	}, []string{"path"})

	// ExpirationSyncs количество прямых перезаписей даты окончания членства.
	ExpirationSyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discharge_expiration_syncs_total",
		Help: "Number of direct membership enddate writes.",
	})

	// BlockedCheckouts количество оформлений, остановленных валидацией даты.
	BlockedCheckouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discharge_blocked_checkouts_total",
		Help: "Number of checkouts stopped by discharge date validation.",
	})
)
