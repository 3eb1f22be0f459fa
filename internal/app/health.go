package app

import (
	"time"

	"github.com/rickgao/kospi-sync/internal/calendar"
	"github.com/rickgao/kospi-sync/internal/connection"
	"github.com/rickgao/kospi-sync/internal/model"
	"github.com/rickgao/kospi-sync/internal/poller"
	"github.com/rickgao/kospi-sync/internal/router"
	"github.com/rickgao/kospi-sync/internal/store"
)

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusIdle      = "idle"
	StatusUnhealthy = "unhealthy"
)

// GateStatus is the gate decision as reported by the health endpoint.
type GateStatus struct {
	Allow    bool             `json:"allow"`
	Session  calendar.Session `json:"session"`
	Bypassed bool             `json:"bypassed,omitempty"`
}

// Health summarizes the state of every component.
type Health struct {
	Status     string                  `json:"status"`
	Session    string                  `json:"session"`
	View       model.View              `json:"view"`
	Gate       GateStatus              `json:"gate"`
	Connection connection.ManagerStats `json:"connection"`
	Router     router.RouterStats      `json:"router"`
	Poller     *poller.Stats           `json:"poller,omitempty"`
	Quotes     store.QuoteStats        `json:"quotes"`
	Freshness  map[string]time.Time    `json:"freshness"`
}

// Health reports component status. The client is healthy when connected,
// unhealthy in the Error state and idle while the gate keeps it offline.
func (a *App) Health() Health {
	d := a.GateDecision()
	conn := a.conn.Stats()

	h := Health{
		Session:    a.session.ID(),
		View:       a.session.CurrentView(),
		Gate:       GateStatus{Allow: d.Allow, Session: d.Session, Bypassed: d.Bypassed},
		Connection: conn,
		Router:     a.router.Stats(),
		Quotes:     a.stores.Quotes.Stats(),
		Freshness: map[string]time.Time{
			"overview":     a.stores.Market.LastUpdate(),
			"option_chain": a.stores.Chain.LastUpdate(),
			"futures":      a.stores.Instruments.LastUpdate(model.KindFutures),
			"options":      a.stores.Instruments.LastUpdate(model.KindOptions),
			"system":       a.stores.System.LastUpdate(),
		},
	}
	if !a.cfg.Poller.Disabled {
		ps := a.poller.Stats()
		h.Poller = &ps
	}

	switch {
	case conn.State == connection.StateConnected:
		h.Status = StatusHealthy
	case conn.State == connection.StateError:
		h.Status = StatusUnhealthy
	case !d.Allow:
		h.Status = StatusIdle
	default:
		h.Status = StatusDegraded
	}
	return h
}
