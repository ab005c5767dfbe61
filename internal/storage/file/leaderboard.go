package file

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Decentr-net/plutus/internal/entities"
	"github.com/Decentr-net/plutus/internal/storage"
)

// DefaultLeaderboardSize ...
const DefaultLeaderboardSize = 100

type entryDTO struct {
	Address    string  `json:"address"`
	Score      float64 `json:"score"`
	XP         int64   `json:"xp"`
	Username   string  `json:"username"`
	CampaignID string  `json:"campaign_id"`
	RewardType string  `json:"reward_type"`
	Timestamp  int64   `json:"timestamp"`
}

type leaderboardFile struct {
	Version int        `json:"version"`
	Entries []entryDTO `json:"entries"`
}

func (f leaderboardFile) schema() int { return f.Version }

type leaderboard struct {
	doc  *document[leaderboardFile]
	size int
}

// NewLeaderboard returns new instance of storage.LeaderboardStore which keeps size best entries in path.
func NewLeaderboard(path string, size int) storage.LeaderboardStore {
	if size <= 0 {
		size = DefaultLeaderboardSize
	}

	return &leaderboard{
		doc:  newDocument[leaderboardFile](path),
		size: size,
	}
}

func (l *leaderboard) Record(_ context.Context, e entities.LeaderboardEntry) error {
	l.doc.mu.Lock()
	defer l.doc.mu.Unlock()

	f := l.doc.load()
	f.Version = storage.SchemaVersion
	f.Entries = append(f.Entries, toDTO(e))

	sort.SliceStable(f.Entries, func(i, j int) bool {
		return f.Entries[i].Score > f.Entries[j].Score
	})

	if len(f.Entries) > l.size {
		f.Entries = f.Entries[:l.size]
	}

	if err := l.doc.save(f); err != nil {
		return fmt.Errorf("failed to save leaderboard: %w", err)
	}

	return nil
}

func (l *leaderboard) Top(_ context.Context, n int) ([]entities.LeaderboardEntry, error) {
	if n <= 0 {
		return []entities.LeaderboardEntry{}, nil
	}

	l.doc.mu.Lock()
	f := l.doc.load()
	l.doc.mu.Unlock()

	if n > len(f.Entries) {
		n = len(f.Entries)
	}

	return toEntries(f.Entries[:n]), nil
}

func toDTO(e entities.LeaderboardEntry) entryDTO {
	return entryDTO{
		Address:    strings.ToLower(e.Address),
		Score:      e.Score,
		XP:         e.XP,
		Username:   e.Username,
		CampaignID: e.CampaignID,
		RewardType: string(e.RewardType),
		Timestamp:  e.Timestamp.Unix(),
	}
}

func toEntries(v []entryDTO) []entities.LeaderboardEntry {
	out := make([]entities.LeaderboardEntry, len(v))
	for i, e := range v {
		out[i] = entities.LeaderboardEntry{
			Address:    e.Address,
			Score:      e.Score,
			XP:         e.XP,
			Username:   e.Username,
			CampaignID: e.CampaignID,
			RewardType: entities.RewardType(e.RewardType),
			Timestamp:  time.Unix(e.Timestamp, 0).UTC(),
		}
	}
	return out
}
