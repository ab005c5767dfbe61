// Package postgres is implementation of storage interfaces.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/plutus/internal/entities"
	"github.com/Decentr-net/plutus/internal/storage"
)

var log = logrus.WithField("layer", "storage").WithField("package", "postgres")
var errBeginCalledWithinTx = errors.New("can not begin tx within tx")

const (
	leaderboardTable = "leaderboard"
	cooldownTable    = "cooldown"
	energyTable      = "energy"

	defaultLeaderboardSize = 100
	defaultCooldownWindow  = 24 * time.Hour
)

// Config ...
type Config struct {
	LeaderboardSize int
	CooldownWindow  time.Duration
	Energy          storage.EnergyPolicy
	// Now is used as a clock, time.Now is used when it is nil.
	Now func() time.Time
}

type pg struct {
	ext sqlx.ExtContext
	cfg Config
}

type entryDTO struct {
	Address    string    `db:"address"`
	Score      float64   `db:"score"`
	XP         int64     `db:"xp"`
	Username   string    `db:"username"`
	CampaignID string    `db:"campaign_id"`
	RewardType string    `db:"reward_type"`
	CreatedAt  time.Time `db:"created_at"`
}

type energyDTO struct {
	Address string `db:"address"`
	storage.EnergyRecord
}

// New creates new instance of pg.
func New(db *sql.DB, cfg Config) storage.Backend {
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = defaultLeaderboardSize
	}
	if cfg.CooldownWindow <= 0 {
		cfg.CooldownWindow = defaultCooldownWindow
	}
	if cfg.Energy.Max <= 0 {
		cfg.Energy = storage.DefaultEnergyPolicy()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return pg{
		ext: sqlx.NewDb(db, "postgres"),
		cfg: cfg,
	}
}

// inTx runs f in transaction which holds lock of tables.
// Lock is held by one store at a time, so writes to different stores do not block each other.
func (s pg) inTx(ctx context.Context, f func(s pg) error, tables ...string) error {
	db, ok := s.ext.(*sqlx.DB)
	if !ok {
		return errBeginCalledWithinTx
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to create tx: %w", err)
	}

	if err := func(s pg) error {
		// mutation should be blocking
		q := fmt.Sprintf(`LOCK TABLE %s IN SHARE ROW EXCLUSIVE MODE`, strings.Join(tables, ", "))
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to lock %s: %w", strings.Join(tables, ", "), err)
		}

		return f(s)
	}(pg{ext: tx, cfg: s.cfg}); err != nil {
		if err := tx.Rollback(); err != nil {
			log.WithError(err).Error("failed to rollback tx")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	return nil
}

func (s pg) Ping(ctx context.Context) error {
	db, ok := s.ext.(*sqlx.DB)
	if !ok {
		return nil
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	return nil
}

func (s pg) Record(ctx context.Context, e entities.LeaderboardEntry) error {
	return s.inTx(ctx, func(s pg) error {
		if err := s.insertEntry(ctx, e); err != nil {
			return err
		}

		return s.truncateLeaderboard(ctx)
	}, leaderboardTable)
}

func (s pg) insertEntry(ctx context.Context, e entities.LeaderboardEntry) error {
	if _, err := sqlx.NamedExecContext(ctx, s.ext,
		`
			INSERT INTO leaderboard(address, score, xp, username, campaign_id, reward_type, created_at)
			VALUES(:address, :score, :xp, :username, :campaign_id, :reward_type, :created_at)
		`, entryDTO{
			Address:    strings.ToLower(e.Address),
			Score:      e.Score,
			XP:         e.XP,
			Username:   e.Username,
			CampaignID: e.CampaignID,
			RewardType: string(e.RewardType),
			CreatedAt:  e.Timestamp.UTC(),
		},
	); err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	return nil
}

func (s pg) truncateLeaderboard(ctx context.Context) error {
	if _, err := s.ext.ExecContext(ctx,
		`
			DELETE FROM leaderboard WHERE id NOT IN (
				SELECT id FROM leaderboard ORDER BY score DESC, id ASC LIMIT $1
			)
		`, s.cfg.LeaderboardSize,
	); err != nil {
		return fmt.Errorf("failed to truncate leaderboard: %w", err)
	}

	return nil
}

func (s pg) Top(ctx context.Context, n int) ([]entities.LeaderboardEntry, error) {
	if n <= 0 {
		return []entities.LeaderboardEntry{}, nil
	}

	if n > s.cfg.LeaderboardSize {
		n = s.cfg.LeaderboardSize
	}

	var dto []entryDTO
	if err := sqlx.SelectContext(ctx, s.ext, &dto, `
			SELECT address, score, xp, username, campaign_id, reward_type, created_at
			FROM leaderboard
			ORDER BY score DESC, id ASC
			LIMIT $1
		`, n,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]entities.LeaderboardEntry, len(dto))
	for i, v := range dto {
		out[i] = entities.LeaderboardEntry{
			Address:    v.Address,
			Score:      v.Score,
			XP:         v.XP,
			Username:   v.Username,
			CampaignID: v.CampaignID,
			RewardType: entities.RewardType(v.RewardType),
			Timestamp:  v.CreatedAt.UTC(),
		}
	}

	return out, nil
}

func (s pg) Check(ctx context.Context, address string) (time.Duration, error) {
	var last int64
	if err := sqlx.GetContext(ctx, s.ext, &last,
		`SELECT last_claim FROM cooldown WHERE address = $1`, strings.ToLower(address),
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to query: %w", err)
	}

	return storage.CooldownLeft(s.cfg.CooldownWindow, last, s.cfg.Now()), nil
}

func (s pg) RecordClaim(ctx context.Context, address string) error {
	return s.inTx(ctx, func(s pg) error {
		return s.setClaim(ctx, address, s.cfg.Now().Unix())
	}, cooldownTable)
}

func (s pg) setClaim(ctx context.Context, address string, last int64) error {
	if _, err := s.ext.ExecContext(ctx,
		`
			INSERT INTO cooldown(address, last_claim) VALUES($1, $2)
			ON CONFLICT(address) DO UPDATE SET last_claim=excluded.last_claim
		`, strings.ToLower(address), last,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) Status(ctx context.Context, address string) (storage.EnergyStatus, error) {
	r, err := s.getEnergy(ctx, address)
	if err != nil {
		return storage.EnergyStatus{}, err
	}

	return s.cfg.Energy.Status(r, s.cfg.Now()), nil
}

func (s pg) Consume(ctx context.Context, address string) (storage.EnergyStatus, error) {
	var status storage.EnergyStatus

	err := s.inTx(ctx, func(s pg) error {
		now := s.cfg.Now()

		r, err := s.getEnergy(ctx, address)
		if err != nil {
			return err
		}

		next, err := s.cfg.Energy.Consume(r, now)
		if err != nil {
			status = s.cfg.Energy.Status(r, now)
			return err
		}

		if err := s.setEnergy(ctx, address, next); err != nil {
			return err
		}

		status = s.cfg.Energy.Status(next, now)
		return nil
	}, energyTable)

	return status, err
}

func (s pg) Refill(ctx context.Context, address string, amount int) (storage.EnergyStatus, error) {
	var status storage.EnergyStatus

	err := s.inTx(ctx, func(s pg) error {
		now := s.cfg.Now()

		r, err := s.getEnergy(ctx, address)
		if err != nil {
			return err
		}

		next := s.cfg.Energy.Refill(r, amount, now)
		if err := s.setEnergy(ctx, address, next); err != nil {
			return err
		}

		status = s.cfg.Energy.Status(next, now)
		return nil
	}, energyTable)

	return status, err
}

func (s pg) getEnergy(ctx context.Context, address string) (*storage.EnergyRecord, error) {
	var r storage.EnergyRecord
	if err := sqlx.GetContext(ctx, s.ext, &r,
		`SELECT last_consume, consumed FROM energy WHERE address = $1`, strings.ToLower(address),
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return &r, nil
}

// setEnergy stores r or removes the record when r is nil.
func (s pg) setEnergy(ctx context.Context, address string, r *storage.EnergyRecord) error {
	if r == nil {
		if _, err := s.ext.ExecContext(ctx, `DELETE FROM energy WHERE address = $1`, strings.ToLower(address)); err != nil {
			return fmt.Errorf("failed to exec: %w", err)
		}
		return nil
	}

	if _, err := sqlx.NamedExecContext(ctx, s.ext,
		`
			INSERT INTO energy(address, last_consume, consumed) VALUES(:address, :last_consume, :consumed)
			ON CONFLICT(address) DO UPDATE SET last_consume=excluded.last_consume, consumed=excluded.consumed
		`, energyDTO{Address: strings.ToLower(address), EnergyRecord: *r},
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) Import(ctx context.Context, snapshot storage.Snapshot) error {
	return s.inTx(ctx, func(s pg) error {
		for _, v := range snapshot.Leaderboard {
			if err := s.insertEntry(ctx, v); err != nil {
				return fmt.Errorf("failed to import leaderboard: %w", err)
			}
		}

		if err := s.truncateLeaderboard(ctx); err != nil {
			return err
		}

		for addr, last := range snapshot.Cooldown {
			if err := s.setClaim(ctx, addr, last); err != nil {
				return fmt.Errorf("failed to import cooldown: %w", err)
			}
		}

		for addr, r := range snapshot.Energy {
			r := r
			if r.Consumed <= 0 {
				continue
			}

			if err := s.setEnergy(ctx, addr, &r); err != nil {
				return fmt.Errorf("failed to import energy: %w", err)
			}
		}

		return nil
	}, leaderboardTable, cooldownTable, energyTable)
}
