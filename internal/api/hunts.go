package api

import (
	"net/http"
	"time"

	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/internal/service"
	"TH_treasure_hunt/pkg/auth"
	"TH_treasure_hunt/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type huntRoutes struct {
	lifecycle service.LifecycleServiceI
}

func NewHuntRoutes(handler *gin.RouterGroup, lifecycle service.LifecycleServiceI, a *auth.TelegramAuth) {
	r := &huntRoutes{lifecycle: lifecycle}
	h := handler.Group("/hunts")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("", r.ListHunts)
		h.GET("/:hunt_id", r.GetHunt)
		h.POST("/:hunt_id/register", r.Register)
		h.POST("/:hunt_id/start", r.Start)
		h.POST("/:hunt_id/claim", r.Claim)
	}
}

type HuntResponse struct {
	HuntID           int64      `json:"hunt_id"`
	ChainID          int64      `json:"chain_id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	StartsAt         time.Time  `json:"starts_at"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
	DurationSecs     int64      `json:"duration_seconds"`
	ClueCount        int        `json:"clue_count"`
	Reward           string     `json:"reward"`
	Difficulty       string     `json:"difficulty,omitempty"`
	Category         string     `json:"category,omitempty"`
	TeamsEnabled     bool       `json:"teams_enabled"`
	MaxTeamSize      int        `json:"max_team_size,omitempty"`
	Theme            string     `json:"theme,omitempty"`
	NFTMetadataURI   string     `json:"nft_metadata_uri,omitempty"`
	ParticipantCount int        `json:"participant_count"`
	Winners          []string   `json:"winners"`
}

type HuntListingResponse struct {
	HuntResponse
	Status     model.HuntStatus `json:"status"`
	Registered bool             `json:"registered"`
	Completed  bool             `json:"completed"`
	NextClue   int              `json:"next_clue"`
}

func newHuntResponse(h *model.Hunt) HuntResponse {
	winners := h.Winners
	if winners == nil {
		winners = []string{}
	}
	var endsAt *time.Time
	if end := h.EndsAt(); !end.IsZero() {
		endsAt = &end
	}
	return HuntResponse{
		HuntID:           h.HuntID,
		ChainID:          h.ChainID,
		Name:             h.Name,
		Description:      h.Description,
		StartsAt:         h.StartsAt,
		EndsAt:           endsAt,
		DurationSecs:     int64(h.Duration / time.Second),
		ClueCount:        h.ClueCount,
		Reward:           h.Reward,
		Difficulty:       h.Difficulty,
		Category:         h.Category,
		TeamsEnabled:     h.TeamsEnabled,
		MaxTeamSize:      h.MaxTeamSize,
		Theme:            h.Theme,
		NFTMetadataURI:   h.NFTMetadataURI,
		ParticipantCount: h.ParticipantCount,
		Winners:          winners,
	}
}

func newHuntListingResponse(l *model.HuntListing) HuntListingResponse {
	return HuntListingResponse{
		HuntResponse: newHuntResponse(l.Hunt),
		Status:       l.Status,
		Registered:   l.Registered,
		Completed:    l.Completed,
		NextClue:     l.NextClue,
	}
}

func (r *huntRoutes) ListHunts(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}

	listings, err := r.lifecycle.ListHunts(c.Request.Context(), pid)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]HuntListingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, newHuntListingResponse(l))
	}

	c.JSON(http.StatusOK, out)
}

func (r *huntRoutes) GetHunt(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	huntID, ok := huntIDParam(c)
	if !ok {
		return
	}

	listing, err := r.lifecycle.GetHunt(c.Request.Context(), huntID, pid)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newHuntListingResponse(listing))
}

type RegisterRequest struct {
	Address string `json:"address" binding:"required"`
}

type RegisterResponse struct {
	HuntID       int64     `json:"hunt_id"`
	Address      string    `json:"address"`
	Token        string    `json:"token,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (r *huntRoutes) Register(c *gin.Context) {
	log := logger.Logger()

	pid, ok := participantID(c)
	if !ok {
		return
	}
	huntID, ok := huntIDParam(c)
	if !ok {
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Info("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	reg, err := r.lifecycle.Register(c.Request.Context(), huntID, pid, req.Address)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		HuntID:       reg.HuntID,
		Address:      reg.Address,
		Token:        reg.Token,
		RegisteredAt: reg.RegisteredAt,
	})
}

func (r *huntRoutes) Start(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	huntID, ok := huntIDParam(c)
	if !ok {
		return
	}

	next, err := r.lifecycle.Start(c.Request.Context(), huntID, pid)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hunt_id":    huntID,
		"next_index": next,
	})
}

type ClaimResponse struct {
	ClaimID   string            `json:"claim_id"`
	HuntID    int64             `json:"hunt_id"`
	Address   string            `json:"address"`
	Status    model.ClaimStatus `json:"status"`
	ClaimedAt time.Time         `json:"claimed_at"`
}

func (r *huntRoutes) Claim(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	huntID, ok := huntIDParam(c)
	if !ok {
		return
	}

	claim, err := r.lifecycle.Claim(c.Request.Context(), huntID, pid)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ClaimResponse{
		ClaimID:   claim.ClaimID.String(),
		HuntID:    claim.HuntID,
		Address:   claim.Address,
		Status:    claim.Status,
		ClaimedAt: claim.ClaimedAt,
	})
}
