package handler

import (
	"net/http"

	"github.com/bytedance/sonic"
	dbTypes "github.com/bumpring/bumpring/internal/database/types"
	"github.com/bumpring/bumpring/internal/engage"
	restTypes "github.com/bumpring/bumpring/internal/rest/types"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// EngagementHandler handles the reaction and comment mutation endpoints.
type EngagementHandler struct {
	engage *engage.Service
	logger *zap.Logger
}

// NewEngagementHandler creates a new engagement handler.
func NewEngagementHandler(service *engage.Service, logger *zap.Logger) *EngagementHandler {
	return &EngagementHandler{
		engage: service,
		logger: logger.Named("rest_engagement"),
	}
}

// SetReaction sets or replaces the user's reaction on a post or one of its
// comments. The response carries the authoritative summary and warmth score
// with the client's reference echoed back.
func (h *EngagementHandler) SetReaction(w http.ResponseWriter, req bunrouter.Request) error {
	user, ok := userID(w, req)
	if !ok {
		return nil
	}

	var body restTypes.ReactionBody
	if err := sonic.ConfigDefault.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return nil
	}

	result, err := h.engage.React(req.Context(), engage.ReactionRequest{
		PostID:    req.Param("id"),
		TargetID:  body.TargetID,
		UserID:    user,
		Type:      dbTypes.ReactionType(body.Type),
		Intensity: body.Intensity,
		Milestone: body.Milestone,
		ClientRef: body.ClientRef,
	})
	if err != nil {
		h.logger.Debug("Reaction rejected", zap.String("postID", req.Param("id")), zap.Error(err))
		handleServiceError(w, err)

		return nil
	}

	return bunrouter.JSON(w, result)
}

// ClearReaction removes the user's reaction from a post or comment.
func (h *EngagementHandler) ClearReaction(w http.ResponseWriter, req bunrouter.Request) error {
	user, ok := userID(w, req)
	if !ok {
		return nil
	}

	query := req.URL.Query()

	result, err := h.engage.Unreact(req.Context(), engage.ReactionRequest{
		PostID:    req.Param("id"),
		TargetID:  query.Get("target"),
		UserID:    user,
		ClientRef: query.Get("clientRef"),
	})
	if err != nil {
		h.logger.Debug("Reaction clear rejected", zap.String("postID", req.Param("id")), zap.Error(err))
		handleServiceError(w, err)

		return nil
	}

	return bunrouter.JSON(w, result)
}

// AddComment creates a comment on a post, optionally nested under a parent.
func (h *EngagementHandler) AddComment(w http.ResponseWriter, req bunrouter.Request) error {
	user, ok := userID(w, req)
	if !ok {
		return nil
	}

	var body restTypes.CommentBody
	if err := sonic.ConfigDefault.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return nil
	}

	result, err := h.engage.Comment(req.Context(), engage.CommentRequest{
		PostID:    req.Param("id"),
		ParentID:  body.ParentID,
		AuthorID:  user,
		Body:      body.Body,
		ClientRef: body.ClientRef,
	})
	if err != nil {
		h.logger.Debug("Comment rejected", zap.String("postID", req.Param("id")), zap.Error(err))
		handleServiceError(w, err)

		return nil
	}

	w.WriteHeader(http.StatusCreated)

	return bunrouter.JSON(w, result)
}

// EditComment replaces a comment's body. Only the author may edit.
func (h *EngagementHandler) EditComment(w http.ResponseWriter, req bunrouter.Request) error {
	user, ok := userID(w, req)
	if !ok {
		return nil
	}

	var body restTypes.EditCommentBody
	if err := sonic.ConfigDefault.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return nil
	}

	result, err := h.engage.EditComment(req.Context(), req.Param("id"), user, body.Body, body.ClientRef)
	if err != nil {
		h.logger.Debug("Comment edit rejected", zap.String("commentID", req.Param("id")), zap.Error(err))
		handleServiceError(w, err)

		return nil
	}

	return bunrouter.JSON(w, result)
}

// DeleteComment removes a comment, tombstoning it when replies exist so the
// thread structure survives.
func (h *EngagementHandler) DeleteComment(w http.ResponseWriter, req bunrouter.Request) error {
	user, ok := userID(w, req)
	if !ok {
		return nil
	}

	result, err := h.engage.DeleteComment(req.Context(), req.Param("id"), user,
		req.URL.Query().Get("clientRef"))
	if err != nil {
		h.logger.Debug("Comment delete rejected", zap.String("commentID", req.Param("id")), zap.Error(err))
		handleServiceError(w, err)

		return nil
	}

	return bunrouter.JSON(w, result)
}
