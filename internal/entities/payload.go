package entities

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPayload is returned when pipeline input fails validation.
var ErrInvalidPayload = errors.New("invalid payload")

var addressRegexp = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// RewardType ...
type RewardType string

const (
	// RewardNFT mints a reward nft.
	RewardNFT RewardType = "nft"
	// RewardXP awards on-chain xp.
	RewardXP RewardType = "xp"
)

// IsValid ...
func (t RewardType) IsValid() bool {
	switch t {
	case RewardNFT, RewardXP:
		return true
	default:
		return false
	}
}

// Payload is a pipeline entry payload.
type Payload struct {
	FrameID        string     `json:"frame_id,omitempty"`
	ChannelID      string     `json:"channel_id"`
	TrendScoreHint *float64   `json:"trend_score_hint,omitempty"`
	ThreadID       string     `json:"thread_id,omitempty"`
	TargetAddress  string     `json:"target_address,omitempty"`
	RewardType     RewardType `json:"reward_type,omitempty"`
	NotifyTarget   string     `json:"notify_target,omitempty"`
}

// IsValidAddress checks that s is a 0x-prefixed 20 bytes hex string.
func IsValidAddress(s string) bool {
	return addressRegexp.MatchString(s)
}

// Validate checks payload and normalizes it in place.
func (p *Payload) Validate() error {
	p.ChannelID = strings.TrimSpace(p.ChannelID)
	if p.ChannelID == "" {
		return fmt.Errorf("%w: channel_id is required", ErrInvalidPayload)
	}

	if p.TargetAddress != "" {
		if !IsValidAddress(p.TargetAddress) {
			return fmt.Errorf("%w: malformed target_address", ErrInvalidPayload)
		}
		p.TargetAddress = strings.ToLower(p.TargetAddress)
	}

	if p.RewardType == "" {
		p.RewardType = RewardNFT
	}
	if !p.RewardType.IsValid() {
		return fmt.Errorf("%w: unknown reward_type %q", ErrInvalidPayload, p.RewardType)
	}

	if p.TrendScoreHint != nil && (*p.TrendScoreHint < 0 || *p.TrendScoreHint > 1) {
		return fmt.Errorf("%w: trend_score_hint must be within [0, 1]", ErrInvalidPayload)
	}

	return nil
}
