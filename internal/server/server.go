// Package server Plutus
//
// The Plutus is a service which detects social trends and rewards their most eligible participants on-chain.
//
//     Schemes: https
//     BasePath: /v1
//     Version: 1.0.0
//
//     Produces:
//     - application/json
//     Consumes:
//     - application/json
//
// swagger:meta
package server

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/plutus/internal/ledger"
	mm "github.com/Decentr-net/plutus/internal/middleware"
	"github.com/Decentr-net/plutus/internal/service"
	"github.com/Decentr-net/plutus/internal/storage"
)

//go:generate swagger generate spec -t swagger -m -c . -o ../../static/swagger.json

const maxBodySize = 1024

const leaderboardCacheTTL = 30 * time.Second

var log = logrus.WithField("package", "server")

// Deps ...
type Deps struct {
	Pipeline    service.Pipeline
	Leaderboard storage.LeaderboardStore
	Cooldown    storage.CooldownStore
	Energy      storage.EnergyStore
	Ledger      ledger.Ledger
	// CampaignID is used for xp balance requests.
	CampaignID string
}

type server struct {
	p           service.Pipeline
	leaderboard storage.LeaderboardStore
	cooldown    storage.CooldownStore
	energy      storage.EnergyStore
	l           ledger.Ledger
	campaignID  string
}

// SetupRouter setups handlers to chi router.
func SetupRouter(d Deps, r chi.Router, timeout time.Duration) {
	r.Use(
		middleware.StripSlashes,
		cors.AllowAll().Handler,
		middleware.RequestID,
		mm.Logger,
		middleware.Recoverer,
		middleware.Timeout(timeout),
	)

	srv := server{
		p:           d.Pipeline,
		leaderboard: d.Leaderboard,
		cooldown:    d.Cooldown,
		energy:      d.Energy,
		l:           d.Ledger,
		campaignID:  d.CampaignID,
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/pipeline/run", srv.runPipeline)
		r.Get("/leaderboard", mm.Cached(leaderboardCacheTTL, srv.getLeaderboard))
		r.Get("/cooldown/{address}", srv.getCooldown)
		r.Get("/energy/{address}", srv.getEnergy)
		r.Post("/energy/{address}/consume", srv.consumeEnergy)
		r.Post("/energy/{address}/refill", srv.refillEnergy)
		r.Get("/xp/{address}", srv.getXP)
	})
}
