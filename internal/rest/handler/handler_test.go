package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bumpring/bumpring/internal/cache"
	dbTypes "github.com/bumpring/bumpring/internal/database/types"
	"github.com/bumpring/bumpring/internal/engage"
	"github.com/bumpring/bumpring/internal/engage/reaction"
	"github.com/bumpring/bumpring/internal/engage/thread"
	"github.com/bumpring/bumpring/internal/engage/warmth"
	"github.com/bumpring/bumpring/internal/hub"
	"github.com/bumpring/bumpring/internal/ratelimit"
	"github.com/bumpring/bumpring/internal/rest/handler"
	"github.com/bumpring/bumpring/internal/setup/config"
	"github.com/bumpring/bumpring/internal/storage/memory"
	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

func setupTest(t *testing.T, limits *config.RateLimit) (*bunrouter.Router, *memory.Store) {
	t.Helper()

	if limits == nil {
		limits = &config.RateLimit{
			Reactions: config.OperationLimit{PerMinute: 600, Burst: 100},
			Comments:  config.OperationLimit{PerMinute: 600, Burst: 100},
		}
	}

	store := memory.New()
	store.AddPost(&dbTypes.Post{ID: "post-1", GroupID: "group-1", AuthorID: "mom"})
	store.AddMember(&dbTypes.GroupMember{GroupID: "group-1", UserID: "mom", DisplayName: "Sarah"})
	store.AddMember(&dbTypes.GroupMember{GroupID: "group-1", UserID: "grandma", DisplayName: "Linda"})

	logger := zap.NewNop()
	aggregator := reaction.New(store, 0, logger)
	threads := thread.NewManager(store, logger)
	scorer := warmth.NewScorer(store, aggregator, threads, warmth.DefaultConfig(), logger)
	limiter := ratelimit.New(limits, logger)

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	readCache := cache.New(client, logger)
	liveHub := hub.New(logger)

	service := engage.NewService(store, engage.NewGroupVisibility(store), limiter,
		aggregator, threads, scorer, readCache, liveHub, cache.MutationPatterns, logger)

	engagement := handler.NewEngagementHandler(service, logger)
	feed := handler.NewFeedHandler(service, readCache, &config.Cache{FeedTTL: 60, PostTTL: 300}, logger)

	router := bunrouter.New()
	router.WithGroup("/v1", func(g *bunrouter.Group) {
		g.PUT("/posts/:id/reactions", engagement.SetReaction)
		g.DELETE("/posts/:id/reactions", engagement.ClearReaction)
		g.POST("/posts/:id/comments", engagement.AddComment)
		g.PATCH("/comments/:id", engagement.EditComment)
		g.DELETE("/comments/:id", engagement.DeleteComment)
		g.GET("/posts/:id", feed.GetPost)
		g.GET("/posts/:id/thread", feed.GetThread)
		g.GET("/groups/:id/feed", feed.GetFeed)
	})

	return router, store
}

func doRequest(t *testing.T, router *bunrouter.Router, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func TestSetReaction(t *testing.T) {
	t.Parallel()

	router, _ := setupTest(t, nil)

	w := doRequest(t, router, http.MethodPut, "/v1/posts/post-1/reactions", "grandma",
		`{"type":"love","intensity":2,"clientRef":"tmp-1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result engage.ReactionResult
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "tmp-1", result.ClientRef)
	assert.Equal(t, 1, result.Summary.Total)
	require.NotNil(t, result.Warmth)
	assert.Greater(t, result.Warmth.Overall, 0.0)
}

func TestSetReactionRequiresIdentity(t *testing.T) {
	t.Parallel()

	router, _ := setupTest(t, nil)

	w := doRequest(t, router, http.MethodPut, "/v1/posts/post-1/reactions", "",
		`{"type":"love","intensity":1}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetReactionInvalidType(t *testing.T) {
	t.Parallel()

	router, _ := setupTest(t, nil)

	w := doRequest(t, router, http.MethodPut, "/v1/posts/post-1/reactions", "grandma",
		`{"type":"sparkle","intensity":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSetReactionForbiddenOutsideGroup(t *testing.T) {
	t.Parallel()

	router, _ := setupTest(t, nil)

	w := doRequest(t, router, http.MethodPut, "/v1/posts/post-1/reactions", "stranger",
		`{"type":"love","intensity":1}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSetReactionUnknownPost(t *testing.T) {
	t.Parallel()

	router, _ := setupTest(t, nil)

	w := doRequest(t, router, http.MethodPut, "/v1/posts/missing/reactions", "grandma",
		`{"type":"love","intensity":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimitResponse(t *testing.T) {
	t.Parallel()

	router, _ := setupTest(t, &config.RateLimit{
		Reactions: config.OperationLimit{PerMinute: 6, Burst: 1},
		Comments:  config.OperationLimit{PerMinute: 600, Burst: 100},
	})

	w := doRequest(t, router, http.MethodPut, "/v1/posts/post-1/reactions", "grandma",
		`{"type":"love","intensity":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodPut, "/v1/posts/post-1/reactions", "grandma",
		`{"type":"pray","intensity":1}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestCommentLifecycle(t *testing.T) {
	t.Parallel()

	router, _ := setupTest(t, nil)

	w := doRequest(t, router, http.MethodPost, "/v1/posts/post-1/comments", "grandma",
		`{"body":"So happy for you @Sarah!","clientRef":"tmp-2"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created engage.CommentResult
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "tmp-2", created.ClientRef)
	assert.Equal(t, 1, created.CommentCount)
	assert.Equal(t, []string{"mom"}, created.Comment.Mentions)

	// Only the author may edit
	w = doRequest(t, router, http.MethodPatch, "/v1/comments/"+created.Comment.ID, "mom",
		`{"body":"hijacked"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, router, http.MethodPatch, "/v1/comments/"+created.Comment.ID, "grandma",
		`{"body":"edited"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodDelete, "/v1/comments/"+created.Comment.ID, "grandma", "")
	require.Equal(t, http.StatusOK, w.Code)

	var deleted engage.CommentResult
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &deleted))
	assert.True(t, deleted.Removed)
}

func TestGetPostFresh(t *testing.T) {
	t.Parallel()

	router, _ := setupTest(t, nil)

	w := doRequest(t, router, http.MethodPut, "/v1/posts/post-1/reactions", "grandma",
		`{"type":"support","intensity":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	// The read right after the mutation reflects it
	w = doRequest(t, router, http.MethodGet, "/v1/posts/post-1", "grandma", "")
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Post        *dbTypes.Post     `json:"post"`
		OwnReaction *dbTypes.Reaction `json:"ownReaction"`
	}

	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Post.ReactionSummary.Total)
	require.NotNil(t, response.OwnReaction)
	assert.Equal(t, dbTypes.ReactionSupport, response.OwnReaction.Type)
}

func TestFeedEtag(t *testing.T) {
	t.Parallel()

	router, _ := setupTest(t, nil)

	w := doRequest(t, router, http.MethodGet, "/v1/groups/group-1/feed", "grandma", "")
	require.Equal(t, http.StatusOK, w.Code)

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	// A conditional request with the current version short-circuits
	req := httptest.NewRequest(http.MethodGet, "/v1/groups/group-1/feed", nil)
	req.Header.Set("X-User-ID", "grandma")
	req.Header.Set("If-None-Match", etag)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusNotModified, recorder.Code)
	assert.Empty(t, recorder.Body.Bytes())
}

func TestFeedForbiddenOutsideGroup(t *testing.T) {
	t.Parallel()

	router, _ := setupTest(t, nil)

	w := doRequest(t, router, http.MethodGet, "/v1/groups/group-1/feed", "stranger", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetThread(t *testing.T) {
	t.Parallel()

	router, _ := setupTest(t, nil)

	w := doRequest(t, router, http.MethodPost, "/v1/posts/post-1/comments", "grandma",
		`{"body":"first"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, router, http.MethodGet, "/v1/posts/post-1/thread", "mom", "")
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Thread *thread.Thread `json:"thread"`
	}

	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Thread.Total)
	require.Len(t, response.Thread.Roots, 1)
	assert.Equal(t, "first", response.Thread.Roots[0].Comment.Body)
}

func TestMalformedBody(t *testing.T) {
	t.Parallel()

	router, _ := setupTest(t, nil)

	w := doRequest(t, router, http.MethodPut, "/v1/posts/post-1/reactions", "grandma",
		`{"type":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
