// Package reward is implementation of the reward dispatch stage.
package reward

import (
	"context"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/plutus/internal/entities"
	"github.com/Decentr-net/plutus/internal/ledger"
	"github.com/Decentr-net/plutus/internal/service"
)

var log = logrus.WithField("package", "reward")

// DefaultXPAmount ...
const DefaultXPAmount = 10

// Config ...
type Config struct {
	XPAmount int64
}

type dispatcher struct {
	l   ledger.Ledger
	cfg Config
}

// New returns new instance of service.RewardDispatcher.
func New(l ledger.Ledger, cfg Config) service.RewardDispatcher {
	if cfg.XPAmount <= 0 {
		cfg.XPAmount = DefaultXPAmount
	}

	return &dispatcher{
		l:   l,
		cfg: cfg,
	}
}

// Dispatch rewards the first recipient only.
func (d *dispatcher) Dispatch(ctx context.Context, r *entities.EligibilityResult) (out *entities.Dispatch) {
	out = &entities.Dispatch{
		Mode:       entities.DispatchNoop,
		Recipients: []string{},
		CampaignID: r.CampaignID,
	}

	if len(r.Recipients) == 0 {
		return out
	}

	recipient := r.Recipients[0]
	out.Recipients = []string{recipient}

	l := log.WithFields(logrus.Fields{
		"campaign":    r.CampaignID,
		"recipient":   recipient,
		"reward_type": r.Metadata.RewardType,
	})

	defer func() {
		if p := recover(); p != nil {
			l.WithField("panic", p).Error("reward dispatch panicked")
			out.Mode, out.TxHash, out.Error = entities.DispatchFailed, "", fmt.Sprintf("panic: %v", p)
		}
	}()

	var (
		hash string
		err  error
	)

	switch r.Metadata.RewardType {
	case entities.RewardXP:
		hash, err = d.l.AwardXP(ctx, r.CampaignID, recipient, big.NewInt(d.cfg.XPAmount))
		out.Mode = entities.DispatchXPAwarded
	default:
		hash, err = d.l.DispatchReward(ctx, r.CampaignID, recipient)
		out.Mode = entities.DispatchNFTMinted
	}

	if err != nil {
		l.WithError(err).Error("failed to dispatch reward")
		out.Mode, out.Error = entities.DispatchFailed, err.Error()
		return out
	}

	out.TxHash = hash
	l.WithField("tx", hash).Info("reward dispatched")

	return out
}
