// Package entities contains main entities of service.
package entities

import (
	"strconv"
	"time"
)

// Post is a unit of social content with its engagement counters.
type Post struct {
	Hash      string
	AuthorFID int64
	Author    string
	Text      string
	Likes     uint32
	Recasts   uint32
	Replies   uint32
	Channel   string
	CreatedAt time.Time
}

// AuthorIdentity returns key used to deduplicate posts by author.
// It is the external id if known, else the username, else "unknown".
func (p Post) AuthorIdentity() string {
	if p.AuthorFID != 0 {
		return strconv.FormatInt(p.AuthorFID, 10)
	}

	if p.Author != "" {
		return p.Author
	}

	return "unknown"
}

// Participant is a candidate for a reward.
type Participant struct {
	FID           int64
	Username      string
	Address       string
	FollowerCount uint64
	PowerBadge    bool
	// Engagement is a weighted count of the participant's reactions to the trend post.
	Engagement float64
	Summary    string
}

// TrendStatus ...
type TrendStatus string

const (
	// TrendsFound means that at least one trend was detected.
	TrendsFound TrendStatus = "ok"
	// NoTrendsFound means that feed returned nothing usable.
	NoTrendsFound TrendStatus = "no_trends_found"
)

// Trend is a scored post with its rationale.
type Trend struct {
	Post      Post
	Score     float64
	Tags      []string
	Rationale string
	UsesAI    bool
}

// TrendContext is the output of trend detection.
type TrendContext struct {
	Status    TrendStatus
	FrameID   string
	ChannelID string

	// Fields below describe the top trend.
	PostHash   string
	Text       string
	TrendScore float64
	Tags       []string
	Rationale  string
	UsesAI     bool

	Trends []Trend

	TargetAddress string
	RewardType    RewardType
}

// GatePolicy describes how a claim-gate answer was obtained.
type GatePolicy string

const (
	// GateChecked means that the campaign answered the gate query.
	GateChecked GatePolicy = "checked"
	// GateFallbackCampaign means that the fallback campaign answered the gate query.
	GateFallbackCampaign GatePolicy = "fallback_campaign"
	// GateFailOpen means that the gate was unavailable and the candidate was let through.
	GateFailOpen GatePolicy = "fail_open"
)

// ScoreBreakdown ...
type ScoreBreakdown struct {
	Trend      float64
	Follower   float64
	PowerBadge float64
	Engagement float64
	Total      float64
}

// Ranking is a scored candidate.
type Ranking struct {
	Participant Participant
	Score       ScoreBreakdown
	GatePolicy  GatePolicy
}

// Ineligibility reasons.
const (
	ReasonNotInSocialGraph          = "user_not_in_social_graph"
	ReasonIdentityLookupUnavailable = "identity_lookup_unavailable"
	ReasonNoCandidates              = "no_candidates"
	ReasonNoClaimableCandidates     = "no_claimable_candidates"
)

// EligibilityMetadata carries trend details through the eligibility stage.
type EligibilityMetadata struct {
	ChannelID  string
	TrendScore float64
	Rationale  string
	Tags       []string
	PostHash   string
	RewardType RewardType
}

// EligibilityResult ...
type EligibilityResult struct {
	CampaignID string
	Eligible   bool
	Reason     string
	// Recipients is a subsequence of Rankings' addresses in ranked order.
	Recipients []string
	Rankings   []Ranking
	Metadata   EligibilityMetadata
}

// DispatchMode is an outcome of reward dispatch.
type DispatchMode string

const (
	// DispatchNoop means that there was nobody to reward.
	DispatchNoop DispatchMode = "noop"
	// DispatchNFTMinted means that a reward nft was minted.
	DispatchNFTMinted DispatchMode = "nft_minted"
	// DispatchXPAwarded means that on-chain xp was awarded.
	DispatchXPAwarded DispatchMode = "xp_awarded"
	// DispatchFailed means that the reward transaction failed.
	DispatchFailed DispatchMode = "failed"
)

// Dispatch is an outcome of the reward stage.
type Dispatch struct {
	Mode       DispatchMode
	TxHash     string
	Error      string
	Recipients []string
	CampaignID string
}

// RunResult is an outcome of a whole pipeline run.
type RunResult struct {
	ThreadID    string
	Summary     string
	TxHash      string
	ExplorerURL string
	Mode        DispatchMode

	Trend       *TrendContext
	Eligibility *EligibilityResult
	Dispatch    *Dispatch
}

// LeaderboardEntry ...
type LeaderboardEntry struct {
	Address    string
	Score      float64
	XP         int64
	Username   string
	CampaignID string
	RewardType RewardType
	Timestamp  time.Time
}
