package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/astromatch/astromatch/internal/astro"
	"github.com/astromatch/astromatch/internal/errors"
	"github.com/astromatch/astromatch/internal/middleware"
	"github.com/astromatch/astromatch/internal/questionnaire"
	"github.com/astromatch/astromatch/internal/services"
)

func (s *Server) handleGetUser(c *gin.Context) {
	user, err := s.users.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleGetCandidates(c *gin.Context) {
	filters := services.Filters{
		ZodiacSign:   c.Query("zodiac_sign"),
		ActivityType: c.Query("activity_type"),
	}
	filters.MinAge, _ = strconv.Atoi(c.Query("min_age"))
	filters.MaxAge, _ = strconv.Atoi(c.Query("max_age"))
	filters.MaxDistanceKm, _ = strconv.ParseFloat(c.Query("max_distance_km"), 64)

	page := services.Page{}
	page.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	page.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	// Discovery never errors; internal failures come back as an empty page.
	candidates := s.discovery.GetCandidates(c.Request.Context(), c.Param("id"), filters, page)

	nextOffset := page.Offset + len(candidates)
	c.JSON(http.StatusOK, gin.H{
		"candidates":  candidates,
		"next_offset": nextOffset,
	})
}

func (s *Server) handleComputeCompatibility(c *gin.Context) {
	userA := c.Param("userA")
	userB := c.Param("userB")
	if userA == userB {
		middleware.AbortWithError(c, errors.NewValidationError("user_id", "cannot score a user against themselves"))
		return
	}

	score := s.scorer.Score(c.Request.Context(), userA, userB)
	c.JSON(http.StatusOK, score)
}

type createMatchRequestBody struct {
	RequesterID string `json:"requester_id" binding:"required"`
	TargetID    string `json:"target_id" binding:"required"`
}

func (s *Server) handleCreateMatchRequest(c *gin.Context) {
	var body createMatchRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, errors.NewValidationError("body", err.Error()))
		return
	}

	ctx := c.Request.Context()

	// Creating a request spends one daily invite.
	invite, err := s.invites.Consume(ctx, body.RequesterID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if !invite.Allowed {
		middleware.AbortWithError(c, errors.NewRateLimitError("match_request", invite.RemainingToday))
		return
	}

	result, err := s.requests.Create(ctx, body.RequesterID, body.TargetID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	if result.AutoMatched {
		c.JSON(http.StatusCreated, gin.H{
			"auto_matched":    true,
			"match_id":        result.Match.ID,
			"conversation_id": result.Match.ConversationID,
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request_id": result.Request.ID})
}

type respondBody struct {
	ResponderID string `json:"responder_id" binding:"required"`
	Decision    string `json:"decision" binding:"required"`
}

func (s *Server) handleRespondToMatchRequest(c *gin.Context) {
	var body respondBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, errors.NewValidationError("body", err.Error()))
		return
	}

	match, err := s.requests.Respond(c.Request.Context(), c.Param("id"), body.ResponderID, body.Decision)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	resp := gin.H{}
	if match != nil {
		resp["match_id"] = match.ID
		resp["conversation_id"] = match.ConversationID
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteMatchRequest(c *gin.Context) {
	requesterID := c.Query("requester_id")
	if requesterID == "" {
		middleware.AbortWithError(c, errors.NewValidationError("requester_id", "requester_id is required"))
		return
	}

	if err := s.requests.Delete(c.Request.Context(), c.Param("id"), requesterID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type consumeInviteBody struct {
	UserID string `json:"user_id" binding:"required"`
}

func (s *Server) handleConsumeInvite(c *gin.Context) {
	var body consumeInviteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, errors.NewValidationError("body", err.Error()))
		return
	}

	result, err := s.invites.Consume(c.Request.Context(), body.UserID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type unmatchBody struct {
	UserID      string `json:"user_id" binding:"required"`
	OtherUserID string `json:"other_user_id" binding:"required"`
	Reason      string `json:"reason"`
}

func (s *Server) handleUnmatch(c *gin.Context) {
	var body unmatchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, errors.NewValidationError("body", err.Error()))
		return
	}

	if err := s.matches.Unmatch(c.Request.Context(), body.UserID, body.OtherUserID, body.Reason); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleListMatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	summaries, err := s.matches.ListMatches(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": summaries})
}

type swipeBody struct {
	SwiperID string `json:"swiper_id" binding:"required"`
	SwipedID string `json:"swiped_id" binding:"required"`
	Type     string `json:"type" binding:"required"`
}

func (s *Server) handleRecordSwipe(c *gin.Context) {
	var body swipeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, errors.NewValidationError("body", err.Error()))
		return
	}

	if err := s.edges.RecordSwipe(c.Request.Context(), body.SwiperID, body.SwipedID, body.Type); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

type blockBody struct {
	BlockerID string `json:"blocker_id" binding:"required"`
	BlockedID string `json:"blocked_id" binding:"required"`
}

func (s *Server) handleRecordBlock(c *gin.Context) {
	var body blockBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, errors.NewValidationError("body", err.Error()))
		return
	}

	if err := s.edges.RecordBlock(c.Request.Context(), body.BlockerID, body.BlockedID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) handleSaveChart(c *gin.Context) {
	var chart astro.Chart
	if err := c.ShouldBindJSON(&chart); err != nil {
		middleware.AbortWithError(c, errors.NewValidationError("body", err.Error()))
		return
	}

	if err := s.users.SaveNatalChart(c.Request.Context(), c.Param("id"), chart); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSaveQuestionnaire(c *gin.Context) {
	var answers questionnaire.Answers
	if err := c.ShouldBindJSON(&answers); err != nil {
		middleware.AbortWithError(c, errors.NewValidationError("body", err.Error()))
		return
	}

	if err := s.users.SaveQuestionnaire(c.Request.Context(), c.Param("id"), answers); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
