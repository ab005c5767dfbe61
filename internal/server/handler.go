package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"github.com/Decentr-net/plutus/internal/entities"
	"github.com/Decentr-net/plutus/internal/storage"
)

var errInvalidRequest = errors.New("invalid request")

func (s server) runPipeline(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /pipeline/run Pipeline RunPipeline
	//
	// Runs trend detection, eligibility ranking and reward dispatch.
	//
	// ---
	// consumes:
	// - application/json
	// produces:
	// - application/json
	// parameters:
	// - name: payload
	//   in: body
	//   required: true
	//   schema:
	//     type: object
	//     required: [channel_id]
	//     properties:
	//       channel_id:
	//         type: string
	//         example: base
	//       frame_id:
	//         type: string
	//       trend_score_hint:
	//         type: number
	//       thread_id:
	//         type: string
	//       target_address:
	//         type: string
	//         example: 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed
	//       reward_type:
	//         type: string
	//         enum: [nft, xp]
	//       notify_target:
	//         type: string
	// responses:
	//   '200':
	//     description: Run result
	//     schema:
	//       "$ref": "#/definitions/RunResponse"
	//   '400':
	//     description: bad request
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '500':
	//     description: internal server error
	//     schema:
	//       "$ref": "#/definitions/Error"

	var p entities.Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: invalid json", errInvalidRequest))
		return
	}

	res, err := s.p.Run(r.Context(), p)
	switch {
	case errors.Is(err, entities.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeInternalError(w, fmt.Sprintf("failed to run pipeline: %s", err))
		return
	}

	writeOK(w, http.StatusOK, toRunResponse(res))
}

func (s server) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /leaderboard Leaderboard GetLeaderboard
	//
	// Returns best rewarded participants.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: limit
	//   in: query
	//   required: false
	//   default: 10
	//   minimum: 1
	//   maximum: 100
	// responses:
	//   '200':
	//     schema:
	//       type: array
	//       items:
	//         "$ref": "#/definitions/LeaderboardEntry"
	//   '400':
	//     schema:
	//       "$ref": "#/definitions/Error"

	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: limit should be in [1; %d]", errInvalidRequest, maxLimit))
			return
		}
		limit = n
	}

	entries, err := s.leaderboard.Top(r.Context(), limit)
	if err != nil {
		writeInternalError(w, fmt.Sprintf("failed to get leaderboard: %s", err))
		return
	}

	out := make([]LeaderboardEntry, len(entries))
	for i, v := range entries {
		out[i] = LeaderboardEntry{
			Address:    v.Address,
			Score:      v.Score,
			XP:         v.XP,
			Username:   v.Username,
			CampaignID: v.CampaignID,
			RewardType: string(v.RewardType),
			Timestamp:  v.Timestamp.Unix(),
		}
	}

	writeOK(w, http.StatusOK, out)
}

func (s server) getCooldown(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}

	left, err := s.cooldown.Check(r.Context(), address)
	if err != nil {
		writeInternalError(w, fmt.Sprintf("failed to check cooldown: %s", err))
		return
	}

	writeOK(w, http.StatusOK, CooldownResponse{
		Address:          address,
		RemainingSeconds: int64((left + time.Second - 1) / time.Second),
		Claimable:        left <= 0,
	})
}

func (s server) getEnergy(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}

	st, err := s.energy.Status(r.Context(), address)
	if err != nil {
		writeInternalError(w, fmt.Sprintf("failed to get energy: %s", err))
		return
	}

	writeOK(w, http.StatusOK, toEnergyResponse(address, st))
}

func (s server) consumeEnergy(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}

	st, err := s.energy.Consume(r.Context(), address)
	switch {
	case errors.Is(err, storage.ErrNoEnergy):
		writeOK(w, http.StatusTooManyRequests, toEnergyResponse(address, st))
		return
	case err != nil:
		writeInternalError(w, fmt.Sprintf("failed to consume energy: %s", err))
		return
	}

	writeOK(w, http.StatusOK, toEnergyResponse(address, st))
}

func (s server) refillEnergy(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}

	var req RefillRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil || req.Amount < 1 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: amount should be positive", errInvalidRequest))
		return
	}

	st, err := s.energy.Refill(r.Context(), address, req.Amount)
	if err != nil {
		writeInternalError(w, fmt.Sprintf("failed to refill energy: %s", err))
		return
	}

	writeOK(w, http.StatusOK, toEnergyResponse(address, st))
}

func (s server) getXP(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}

	xp, err := s.l.GetBalance(r.Context(), s.campaignID, address)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to get xp balance: %s", err))
		return
	}

	writeOK(w, http.StatusOK, XPResponse{
		Address:    address,
		CampaignID: s.campaignID,
		XP:         xp,
	})
}

// addressParam returns lowercased address from url or writes 400.
func addressParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	address := chi.URLParam(r, "address")
	if !entities.IsValidAddress(address) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: invalid address", errInvalidRequest))
		return "", false
	}

	return strings.ToLower(address), true
}

func writeOK(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		writeInternalError(w, fmt.Sprintf("failed to marshal response: %s", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	data, _ := json.Marshal(Error{Error: message})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeInternalError(w http.ResponseWriter, message string) {
	log.Error(message)
	writeError(w, http.StatusInternalServerError, "internal error")
}
