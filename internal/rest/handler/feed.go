package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/bumpring/bumpring/internal/cache"
	"github.com/bumpring/bumpring/internal/engage"
	restTypes "github.com/bumpring/bumpring/internal/rest/types"
	"github.com/bumpring/bumpring/internal/setup/config"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// Feed paging bounds.
const (
	defaultFeedLimit = 20
	maxFeedLimit     = 50
)

// Thread view bounds.
const (
	defaultThreadDepth = 3
	defaultThreadPage  = 50
)

// FeedHandler handles the cached read endpoints: group feeds, post
// summaries and comment threads.
type FeedHandler struct {
	engage  *engage.Service
	cache   *cache.Cache
	feedTTL time.Duration
	postTTL time.Duration
	logger  *zap.Logger
}

// NewFeedHandler creates a new feed handler.
func NewFeedHandler(service *engage.Service, readCache *cache.Cache, cfg *config.Cache, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		engage:  service,
		cache:   readCache,
		feedTTL: time.Duration(cfg.FeedTTL) * time.Second,
		postTTL: time.Duration(cfg.PostTTL) * time.Second,
		logger:  logger.Named("rest_feed"),
	}
}

// GetFeed serves one page of a group's posts. Responses come from the
// read-model cache on the serve-stale-then-refresh path and carry the
// content version as an ETag; a matching If-None-Match short-circuits to
// 304 without a body.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, req bunrouter.Request) error {
	user, ok := userID(w, req)
	if !ok {
		return nil
	}

	groupID := req.Param("id")

	// Membership is checked before the cache so hits never leak across
	// families.
	member, err := h.engage.Member(req.Context(), user, groupID)
	if err != nil {
		h.logger.Error("Failed to check group membership", zap.Error(err))
		handleServiceError(w, err)

		return nil
	}

	if !member {
		writeError(w, http.StatusForbidden, engage.ErrNotAllowed.Error())
		return nil
	}

	limit := queryInt(req, "limit", defaultFeedLimit)
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	offset := queryInt(req, "offset", 0)

	key := cache.FeedKey(groupID, limit, offset)

	value, version, err := h.cache.GetStale(req.Context(), key, h.feedTTL,
		func(ctx context.Context) ([]byte, error) {
			posts, err := h.engage.Feed(ctx, user, groupID, limit, offset)
			if err != nil {
				return nil, err
			}

			return sonic.Marshal(restTypes.GetFeedResponse{GroupID: groupID, Posts: posts})
		})
	if err != nil {
		h.logger.Error("Failed to load feed", zap.String("groupID", groupID), zap.Error(err))
		handleServiceError(w, err)

		return nil
	}

	return writeVersioned(w, req, value, version)
}

// GetPost serves a post's engagement state with the requesting user's own
// reaction. This is the fresh read a client issues right after a mutation,
// so it bypasses the cache entirely.
func (h *FeedHandler) GetPost(w http.ResponseWriter, req bunrouter.Request) error {
	user, ok := userID(w, req)
	if !ok {
		return nil
	}

	post, own, err := h.engage.Post(req.Context(), user, req.Param("id"))
	if err != nil {
		h.logger.Debug("Post read rejected", zap.String("postID", req.Param("id")), zap.Error(err))
		handleServiceError(w, err)

		return nil
	}

	return bunrouter.JSON(w, restTypes.GetPostResponse{Post: post, OwnReaction: own})
}

// GetThread serves a post's bounded-depth comment tree from the read-model
// cache.
func (h *FeedHandler) GetThread(w http.ResponseWriter, req bunrouter.Request) error {
	user, ok := userID(w, req)
	if !ok {
		return nil
	}

	postID := req.Param("id")

	// Visibility is checked before the cache so hits never leak across
	// families.
	allowed, err := h.engage.CanView(req.Context(), user, postID)
	if err != nil {
		h.logger.Debug("Thread visibility check failed", zap.String("postID", postID), zap.Error(err))
		handleServiceError(w, err)

		return nil
	}

	if !allowed {
		writeError(w, http.StatusForbidden, engage.ErrNotAllowed.Error())
		return nil
	}

	maxDepth := queryInt(req, "depth", defaultThreadDepth)
	pageSize := queryInt(req, "page", defaultThreadPage)

	key := cache.ThreadKey(postID, maxDepth, pageSize)

	value, version, err := h.cache.GetStale(req.Context(), key, h.postTTL,
		func(ctx context.Context) ([]byte, error) {
			tree, err := h.engage.Thread(ctx, user, postID, maxDepth, pageSize)
			if err != nil {
				return nil, err
			}

			return sonic.Marshal(restTypes.GetThreadResponse{Thread: tree})
		})
	if err != nil {
		h.logger.Debug("Thread read rejected", zap.String("postID", postID), zap.Error(err))
		handleServiceError(w, err)

		return nil
	}

	return writeVersioned(w, req, value, version)
}

// writeVersioned writes a cached JSON payload with its version as the ETag,
// answering a matching If-None-Match with 304.
func writeVersioned(w http.ResponseWriter, req bunrouter.Request, value []byte, version string) error {
	etag := `"` + version + `"`

	if req.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag)
	_, err := w.Write(value)

	return err
}
