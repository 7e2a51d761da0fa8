package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"myMarketplace/business/activity"
	"myMarketplace/domain"
	"myMarketplace/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	got []activity.TrackInput
	err error
}

func (f *fakeTracker) TrackActivity(ctx context.Context, in activity.TrackInput) error {
	f.got = append(f.got, in)
	return f.err
}

type fakeRecommender struct {
	got   domain.RecommendationRequest
	batch domain.RecommendationBatch
	err   error
}

func (f *fakeRecommender) GetRecommendations(ctx context.Context, req domain.RecommendationRequest) (domain.RecommendationBatch, error) {
	f.got = req
	return f.batch, f.err
}

type fakeBundles struct {
	got   domain.BundleRequest
	batch domain.BundleBatch
	err   error
}

func (f *fakeBundles) GetBundles(ctx context.Context, req domain.BundleRequest) (domain.BundleBatch, error) {
	f.got = req
	return f.batch, f.err
}

type fakeRecorder struct {
	caller      *uint
	logID       string
	interaction domain.InteractionType
	amount      int64
	revenue     float64
	counters    domain.FeedbackCounters
	err         error
}

func (f *fakeRecorder) IncrementAs(ctx context.Context, caller *uint, logID string, interaction domain.InteractionType, amount int64, revenue float64) (domain.FeedbackCounters, error) {
	f.caller, f.logID, f.interaction, f.amount, f.revenue = caller, logID, interaction, amount, revenue
	return f.counters, f.err
}

func (f *fakeRecorder) GetCounters(ctx context.Context, caller *uint, logID string) (domain.FeedbackCounters, error) {
	f.caller, f.logID = caller, logID
	return f.counters, f.err
}

type fakeAnalytics struct {
	got uint
	out *domain.UserAnalytics
	err error
}

func (f *fakeAnalytics) GetUserAnalytics(ctx context.Context, userID uint) (*domain.UserAnalytics, error) {
	f.got = userID
	return f.out, f.err
}

type fakeResetter struct {
	got uint
	err error
}

func (f *fakeResetter) ResetProfile(ctx context.Context, userID uint) error {
	f.got = userID
	return f.err
}

type fixture struct {
	e         *echo.Echo
	tracker   *fakeTracker
	reco      *fakeRecommender
	bundles   *fakeBundles
	recorder  *fakeRecorder
	analytics *fakeAnalytics
	resetter  *fakeResetter
}

const testLogID = "6f1c2a43-2f7d-4b8e-9a51-0c1d2e3f4a5b"

// asUser stands in for the auth middleware.
func asUser(c echo.Context) {
	if v := c.Request().Header.Get("X-Test-User"); v != "" {
		var id uint
		_, _ = fmt.Sscanf(v, "%d", &id)
		c.Set("user_id", id)
	}
}

func newFixture() *fixture {
	f := &fixture{
		e:         echo.New(),
		tracker:   &fakeTracker{},
		reco:      &fakeRecommender{},
		bundles:   &fakeBundles{},
		recorder:  &fakeRecorder{},
		analytics: &fakeAnalytics{},
		resetter:  &fakeResetter{},
	}
	f.e.HTTPErrorHandler = middleware.ErrorHandler
	f.e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			asUser(c)
			return next(c)
		}
	})

	h := NewPersonalizationHandler(f.tracker, f.reco, f.bundles, f.recorder, f.analytics, f.resetter, time.Second)
	f.e.POST("/activities", h.TrackActivity)
	f.e.GET("/recommendations", h.GetRecommendations)
	f.e.GET("/bundles", h.GetBundles)
	f.e.GET("/feedback/:log_id", h.GetFeedbackCounters)
	f.e.POST("/feedback/:log_id/interactions", h.RecordInteraction)
	f.e.GET("/users/:id/analytics", h.GetUserAnalytics)
	f.e.DELETE("/users/:id/profile", h.ResetUserProfile)
	return f
}

func (f *fixture) do(method, target, body string, userID uint) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if userID != 0 {
		req.Header.Set("X-Test-User", fmt.Sprintf("%d", userID))
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestTrackActivity(t *testing.T) {
	t.Run("accepted with user", func(t *testing.T) {
		f := newFixture()
		body := `{"session_id":"s-1","activity_type":"product_view","data":{"product_id":42,"category":"shoes"},"context":{"platform":"web"}}`

		rec := f.do(http.MethodPost, "/activities", body, 9)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"acknowledged":true}`, rec.Body.String())
		require.Len(t, f.tracker.got, 1)
		in := f.tracker.got[0]
		require.NotNil(t, in.UserID)
		assert.Equal(t, uint(9), *in.UserID)
		assert.Equal(t, "product_view", in.ActivityType)
		require.NotNil(t, in.Data.ProductID)
		assert.Equal(t, uint64(42), *in.Data.ProductID)
		assert.Equal(t, "web", in.Context.Platform)
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture()
		rec := f.do(http.MethodPost, "/activities", `{"session_id":"s-1","activity_type":"page_view"}`, 0)

		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, f.tracker.got, 1)
		assert.Nil(t, f.tracker.got[0].UserID)
	})

	t.Run("unknown data field", func(t *testing.T) {
		f := newFixture()
		rec := f.do(http.MethodPost, "/activities", `{"session_id":"s-1","activity_type":"page_view","data":{"colour":"red"}}`, 0)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.tracker.got)
	})

	t.Run("missing session", func(t *testing.T) {
		f := newFixture()
		rec := f.do(http.MethodPost, "/activities", `{"activity_type":"page_view"}`, 0)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.tracker.got)
	})

	t.Run("service validation error", func(t *testing.T) {
		f := newFixture()
		f.tracker.err = fmt.Errorf("%w: unknown activity type", domain.ErrValidation)
		rec := f.do(http.MethodPost, "/activities", `{"session_id":"s-1","activity_type":"teleport"}`, 0)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetRecommendations(t *testing.T) {
	t.Run("forwards query", func(t *testing.T) {
		f := newFixture()
		f.reco.batch = domain.RecommendationBatch{
			LogID: testLogID,
			Items: []domain.ScoredItem{{ProductID: 3, Score: 0.8}},
		}

		rec := f.do(http.MethodGet, "/recommendations?session_id=s-1&limit=5&type=trending", "", 4)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), testLogID)
		assert.Equal(t, "s-1", f.reco.got.SessionID)
		assert.Equal(t, 5, f.reco.got.Limit)
		assert.Equal(t, domain.RecommendationTrending, f.reco.got.Type)
		require.NotNil(t, f.reco.got.UserID)
		assert.Equal(t, uint(4), *f.reco.got.UserID)
	})

	t.Run("bad limit", func(t *testing.T) {
		f := newFixture()
		rec := f.do(http.MethodGet, "/recommendations?session_id=s-1&limit=ten", "", 0)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation from service", func(t *testing.T) {
		f := newFixture()
		f.reco.err = fmt.Errorf("%w: session id is required", domain.ErrValidation)
		rec := f.do(http.MethodGet, "/recommendations", "", 0)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty list is ok", func(t *testing.T) {
		f := newFixture()
		f.reco.batch = domain.RecommendationBatch{Items: []domain.ScoredItem{}}
		rec := f.do(http.MethodGet, "/recommendations?session_id=s-1", "", 0)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, f.reco.got.UserID)
	})
}

func TestGetBundles(t *testing.T) {
	f := newFixture()
	f.bundles.batch = domain.BundleBatch{LogID: testLogID, Bundles: []domain.BundleCandidate{}}

	rec := f.do(http.MethodGet, "/bundles?session_id=s-2&limit=3&cart_items=4,%205,6", "", 0)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), testLogID)
	assert.Equal(t, []uint64{4, 5, 6}, f.bundles.got.CartItems)
	assert.Equal(t, 3, f.bundles.got.Limit)

	rec = f.do(http.MethodGet, "/bundles?session_id=s-2&cart_items=4,x", "", 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordInteraction(t *testing.T) {
	t.Run("default amount", func(t *testing.T) {
		f := newFixture()
		f.recorder.counters = domain.FeedbackCounters{LogID: testLogID, Impressions: 1}

		rec := f.do(http.MethodPost, "/feedback/"+testLogID+"/interactions", `{"interaction_type":"view"}`, 0)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, f.recorder.caller)
		assert.Equal(t, testLogID, f.recorder.logID)
		assert.Equal(t, domain.InteractionView, f.recorder.interaction)
		assert.Equal(t, int64(1), f.recorder.amount)
		assert.Contains(t, rec.Body.String(), `"impressions":1`)
	})

	t.Run("conversion with revenue", func(t *testing.T) {
		f := newFixture()
		rec := f.do(http.MethodPost, "/feedback/"+testLogID+"/interactions", `{"interaction_type":"conversion","amount":2,"revenue":49.5}`, 0)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.InteractionConversion, f.recorder.interaction)
		assert.Equal(t, int64(2), f.recorder.amount)
		assert.InDelta(t, 49.5, f.recorder.revenue, 1e-9)
	})

	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"unknown type", `{"interaction_type":"share"}`, nil, http.StatusBadRequest},
		{"zero amount", `{"interaction_type":"view","amount":0}`, nil, http.StatusBadRequest},
		{"negative revenue", `{"interaction_type":"conversion","revenue":-1}`, nil, http.StatusBadRequest},
		{"log not found", `{"interaction_type":"view"}`, domain.ErrNotFound, http.StatusNotFound},
		{"invariant", `{"interaction_type":"click"}`, domain.ErrCounterInvariant, http.StatusConflict},
		{"another user's batch", `{"interaction_type":"view"}`, domain.ErrForbidden, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.recorder.err = tc.err
			rec := f.do(http.MethodPost, "/feedback/"+testLogID+"/interactions", tc.body, 0)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRecordInteraction_PassesAuthenticatedCaller(t *testing.T) {
	f := newFixture()
	f.recorder.err = domain.ErrForbidden

	rec := f.do(http.MethodPost, "/feedback/"+testLogID+"/interactions", `{"interaction_type":"view"}`, 12)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")
	require.NotNil(t, f.recorder.caller)
	assert.Equal(t, uint(12), *f.recorder.caller)
}

func TestGetFeedbackCounters(t *testing.T) {
	f := newFixture()
	f.recorder.counters = domain.FeedbackCounters{LogID: testLogID, Impressions: 4, Clicks: 1}

	rec := f.do(http.MethodGet, "/feedback/"+testLogID, "", 3)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testLogID, f.recorder.logID)
	require.NotNil(t, f.recorder.caller)
	assert.Equal(t, uint(3), *f.recorder.caller)
	assert.Contains(t, rec.Body.String(), `"impressions":4`)
	assert.Contains(t, rec.Body.String(), `"clicks":1`)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"malformed id", domain.ErrValidation, http.StatusBadRequest},
		{"another user's batch", domain.ErrForbidden, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.recorder.err = tc.err
			rec := f.do(http.MethodGet, "/feedback/"+testLogID, "", 0)
			assert.Equal(t, tc.status, rec.Code)
			assert.Nil(t, f.recorder.caller)
		})
	}
}

func TestResetUserProfile(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodDelete, "/users/8/profile", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint(8), f.resetter.got)
	assert.Contains(t, rec.Body.String(), "profile reset")

	rec = f.do(http.MethodDelete, "/users/0/profile", "", 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.resetter.err = domain.ErrNotFound
	rec = f.do(http.MethodDelete, "/users/9/profile", "", 1)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetUserAnalytics(t *testing.T) {
	f := newFixture()
	f.analytics.out = &domain.UserAnalytics{UserID: 8, ActivityCount: 3, WindowDays: 30}

	rec := f.do(http.MethodGet, "/users/8/analytics", "", 8)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint(8), f.analytics.got)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, rec.Body.String(), `"activity_count":3`)

	rec = f.do(http.MethodGet, "/users/zero/analytics", "", 8)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseIDList(t *testing.T) {
	ids, err := parseIDList("")
	require.NoError(t, err)
	assert.Nil(t, ids)

	ids, err = parseIDList("1, 2,,3")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, ids)

	_, err = parseIDList("1,0")
	assert.Error(t, err)
}
