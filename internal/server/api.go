package server

import (
	"time"

	"github.com/Decentr-net/plutus/internal/entities"
	"github.com/Decentr-net/plutus/internal/storage"
)

const maxLimit = 100
const defaultLimit = 10

// Error ...
// swagger:model
type Error struct {
	Error string `json:"error"`
}

// RunResponse ...
// swagger:model
type RunResponse struct {
	ThreadID    string `json:"thread_id"`
	Summary     string `json:"summary"`
	TxHash      string `json:"tx_hash,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`
	Mode        string `json:"mode"`
	Error       string `json:"error,omitempty"`

	Status         string  `json:"status"`
	TrendScore     float64 `json:"trend_score"`
	DetectedTrends []Trend `json:"detected_trends"`

	CampaignID string    `json:"campaign_id"`
	Eligible   bool      `json:"eligible"`
	Reason     string    `json:"reason,omitempty"`
	Recipients []string  `json:"recipients"`
	Rankings   []Ranking `json:"rankings"`
}

// Trend ...
type Trend struct {
	Hash      string   `json:"hash"`
	Author    string   `json:"author"`
	Text      string   `json:"text"`
	Score     float64  `json:"score"`
	Tags      []string `json:"tags"`
	Rationale string   `json:"rationale"`
	UsesAI    bool     `json:"uses_ai"`
}

// Ranking ...
type Ranking struct {
	FID        int64   `json:"fid"`
	Username   string  `json:"username"`
	Address    string  `json:"address"`
	Score      float64 `json:"score"`
	Trend      float64 `json:"trend"`
	Follower   float64 `json:"follower"`
	PowerBadge float64 `json:"power_badge"`
	Engagement float64 `json:"engagement"`
	GatePolicy string  `json:"gate_policy"`
}

// LeaderboardEntry ...
// swagger:model
type LeaderboardEntry struct {
	Address    string  `json:"address"`
	Score      float64 `json:"score"`
	XP         int64   `json:"xp"`
	Username   string  `json:"username,omitempty"`
	CampaignID string  `json:"campaign_id"`
	RewardType string  `json:"reward_type"`
	Timestamp  int64   `json:"timestamp"`
}

// CooldownResponse ...
// swagger:model
type CooldownResponse struct {
	Address          string `json:"address"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	Claimable        bool   `json:"claimable"`
}

// EnergyResponse ...
// swagger:model
type EnergyResponse struct {
	Address string `json:"address"`
	Current int    `json:"current"`
	Max     int    `json:"max"`
	// SecondsToNext is zero when energy is full.
	SecondsToNext int64 `json:"seconds_to_next"`
}

// RefillRequest ...
// swagger:model
type RefillRequest struct {
	Amount int `json:"amount"`
}

// XPResponse ...
// swagger:model
type XPResponse struct {
	Address    string `json:"address"`
	CampaignID string `json:"campaign_id"`
	XP         int64  `json:"xp"`
}

func toRunResponse(res *entities.RunResult) RunResponse {
	out := RunResponse{
		ThreadID:       res.ThreadID,
		Summary:        res.Summary,
		TxHash:         res.TxHash,
		ExplorerURL:    res.ExplorerURL,
		Mode:           string(res.Mode),
		DetectedTrends: []Trend{},
		Recipients:     []string{},
		Rankings:       []Ranking{},
	}

	if res.Dispatch != nil {
		out.Error = res.Dispatch.Error
	}

	if t := res.Trend; t != nil {
		out.Status = string(t.Status)
		out.TrendScore = t.TrendScore

		for _, v := range t.Trends {
			out.DetectedTrends = append(out.DetectedTrends, Trend{
				Hash:      v.Post.Hash,
				Author:    v.Post.Author,
				Text:      v.Post.Text,
				Score:     v.Score,
				Tags:      v.Tags,
				Rationale: v.Rationale,
				UsesAI:    v.UsesAI,
			})
		}
	}

	if e := res.Eligibility; e != nil {
		out.CampaignID = e.CampaignID
		out.Eligible = e.Eligible
		out.Reason = e.Reason
		out.Recipients = append(out.Recipients, e.Recipients...)

		for _, v := range e.Rankings {
			out.Rankings = append(out.Rankings, Ranking{
				FID:        v.Participant.FID,
				Username:   v.Participant.Username,
				Address:    v.Participant.Address,
				Score:      v.Score.Total,
				Trend:      v.Score.Trend,
				Follower:   v.Score.Follower,
				PowerBadge: v.Score.PowerBadge,
				Engagement: v.Score.Engagement,
				GatePolicy: string(v.GatePolicy),
			})
		}
	}

	return out
}

func toEnergyResponse(address string, s storage.EnergyStatus) EnergyResponse {
	return EnergyResponse{
		Address:       address,
		Current:       s.Current,
		Max:           s.Max,
		SecondsToNext: int64(s.NextIn / time.Second),
	}
}
