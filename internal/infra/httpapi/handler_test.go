package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"terratrack_notifier/internal/app"
	"terratrack_notifier/internal/domain/notification"
	"terratrack_notifier/internal/domain/planting"
	"terratrack_notifier/internal/domain/user"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	summary     *notification.Summary
	err         error
	previewBody string
	previewDay  time.Time

	runs        int
	runDeadline time.Time
	runCtxErr   error
}

func (f *fakeDispatcher) Run(ctx context.Context) (*notification.Summary, error) {
	f.runs++
	f.runDeadline, _ = ctx.Deadline()
	f.runCtxErr = ctx.Err()
	return f.summary, f.err
}

func (f *fakeDispatcher) Preview(_ context.Context, userID string, today time.Time) (string, error) {
	f.previewDay = today
	if userID == "ghost" {
		return "", user.ErrNotFound
	}
	return f.previewBody, nil
}

type fakePlantings struct {
	added    app.NewPlanting
	overview *app.Overview
	err      error
	enabled  *bool
}

func (f *fakePlantings) AddPlanting(_ context.Context, ownerID string, in app.NewPlanting) (*planting.Planting, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.added = in
	return &planting.Planting{
		ID: "p1", OwnerID: ownerID, CropName: in.CropName, PlantingDate: in.PlantingDate, BatchID: "batch-20240301",
		Plan: []planting.PlanStep{{DueDate: in.PlantingDate, Task: "Plant seeds"}},
	}, nil
}

func (f *fakePlantings) ReplacePlanting(_ context.Context, _, _ string, _ app.NewPlanting) (*planting.Planting, error) {
	return nil, f.err
}

func (f *fakePlantings) DeletePlanting(context.Context, string, string) error {
	return f.err
}

func (f *fakePlantings) Overview(context.Context, string, time.Time) (*app.Overview, error) {
	return f.overview, f.err
}

func (f *fakePlantings) SetNotifications(_ context.Context, _ string, enabled bool) error {
	f.enabled = &enabled
	return f.err
}

func newTestHandler(d *fakeDispatcher, p *fakePlantings, pingers map[string]Pinger, opts Options) *Handler {
	gin.SetMode(gin.TestMode)
	l := logrus.New()
	l.SetOutput(io.Discard)
	h := NewHandler(d, p, pingers, opts, logrus.NewEntry(l))
	h.now = func() time.Time { return time.Date(2024, 5, 25, 14, 0, 0, 0, time.UTC) }
	return h
}

func newTestRouter(d *fakeDispatcher, p *fakePlantings, pingers map[string]Pinger) *gin.Engine {
	return NewRouter(newTestHandler(d, p, pingers, Options{}))
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doWithToken(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&fakeDispatcher{}, &fakePlantings{}, map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
	})
	w := do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok"}}`, w.Body.String())

	r = newTestRouter(&fakeDispatcher{}, &fakePlantings{}, map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
	})
	w = do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDispatch(t *testing.T) {
	d := &fakeDispatcher{summary: &notification.Summary{TotalUsers: 5, Sent: 3, Skipped: 1, Failed: 1}}
	w := do(newTestRouter(d, &fakePlantings{}, nil), http.MethodPost, "/dispatch", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_users":5,"sent":3,"skipped":1,"failed":1}`, w.Body.String())

	d = &fakeDispatcher{err: app.ErrChannelTargetMissing}
	w = do(newTestRouter(d, &fakePlantings{}, nil), http.MethodPost, "/dispatch", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDispatch_RequiresAdminToken(t *testing.T) {
	d := &fakeDispatcher{summary: &notification.Summary{}}
	r := NewRouter(newTestHandler(d, &fakePlantings{}, nil, Options{AdminToken: "s3cret"}))

	w := doWithToken(r, http.MethodPost, "/dispatch", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doWithToken(r, http.MethodPost, "/dispatch", "guess")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, d.runs)

	w = doWithToken(r, http.MethodPost, "/dispatch", "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, d.runs)

	// The token only guards the dispatch trigger.
	w = doWithToken(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDispatch_RunOutlivesRequestButHasDeadline(t *testing.T) {
	d := &fakeDispatcher{summary: &notification.Summary{}}
	r := NewRouter(newTestHandler(d, &fakePlantings{}, nil, Options{RunTimeout: time.Minute}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/dispatch", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	before := time.Now()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, d.runCtxErr)
	require.False(t, d.runDeadline.IsZero())
	assert.WithinDuration(t, before.Add(time.Minute), d.runDeadline, 5*time.Second)
}

func TestNewHandler_DefaultRunTimeout(t *testing.T) {
	h := NewHandler(&fakeDispatcher{}, &fakePlantings{}, nil, Options{}, logrus.NewEntry(logrus.New()))
	assert.Equal(t, DefaultRunTimeout, h.runTimeout)
	assert.Empty(t, h.adminToken)
}

func TestNewHandler_TodayFollowsLocation(t *testing.T) {
	zone := time.FixedZone("UTC+14", 14*3600)
	h := NewHandler(&fakeDispatcher{}, &fakePlantings{}, nil, Options{Location: zone}, logrus.NewEntry(logrus.New()))
	assert.Equal(t, zone, h.now().Location())
}

func TestCreatePlanting(t *testing.T) {
	p := &fakePlantings{}
	r := newTestRouter(&fakeDispatcher{}, p, nil)

	w := do(r, http.MethodPost, "/users/u1/plantings", `{"crop_name":"Tomatoes","planting_date":"2024-03-01"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Tomatoes", p.added.CropName)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), p.added.PlantingDate)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "p1", resp["planting_id"])
	assert.Equal(t, "2024-03-01", resp["planting_date"])

	w = do(r, http.MethodPost, "/users/u1/plantings", `{"crop_name":"Tomatoes","planting_date":"March 1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePlanting_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{err: app.ErrPlanNotFound, code: http.StatusUnprocessableEntity},
		{err: app.ErrInvalidPlanting, code: http.StatusUnprocessableEntity},
		{err: app.ErrRepositoryUnavailable, code: http.StatusBadGateway},
	}
	for _, tt := range tests {
		r := newTestRouter(&fakeDispatcher{}, &fakePlantings{err: tt.err}, nil)
		w := do(r, http.MethodPost, "/users/u1/plantings", `{"crop_name":"Kale","planting_date":"2024-03-01"}`)
		assert.Equal(t, tt.code, w.Code, tt.err.Error())
	}
}

func TestUpdateAndDeletePlanting_ErrorMapping(t *testing.T) {
	r := newTestRouter(&fakeDispatcher{}, &fakePlantings{err: app.ErrNotPlantingOwner}, nil)
	w := do(r, http.MethodPut, "/users/u2/plantings/p1", `{"crop_name":"Kale","planting_date":"2024-03-01"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	r = newTestRouter(&fakeDispatcher{}, &fakePlantings{err: planting.ErrNotFound}, nil)
	w = do(r, http.MethodDelete, "/users/u1/plantings/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	r = newTestRouter(&fakeDispatcher{}, &fakePlantings{}, nil)
	w = do(r, http.MethodDelete, "/users/u1/plantings/p1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestListPlantings(t *testing.T) {
	harvest := time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC)
	days := 5
	p := &fakePlantings{overview: &app.Overview{
		Upcoming: []app.PlantingView{{
			Planting:    &planting.Planting{ID: "p1", OwnerID: "u1", CropName: "Tomatoes", PlantingDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
			HarvestDate: &harvest,
			DaysLeft:    &days,
			Category:    planting.CategoryUpcoming,
		}},
		Ongoing: []app.PlantingView{{
			Planting: &planting.Planting{ID: "p2", OwnerID: "u1", CropName: "Dragonfruit", PlantingDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
			Category: planting.CategoryOngoing,
		}},
	}}
	w := do(newTestRouter(&fakeDispatcher{}, p, nil), http.MethodGet, "/users/u1/plantings", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Past     []map[string]any `json:"past"`
		Upcoming []map[string]any `json:"upcoming"`
		Ongoing  []map[string]any `json:"ongoing"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Past)
	require.Len(t, resp.Upcoming, 1)
	assert.Equal(t, "2024-05-30", resp.Upcoming[0]["harvest_date"])
	assert.Equal(t, float64(5), resp.Upcoming[0]["days_left"])
	assert.Equal(t, "UPCOMING", resp.Upcoming[0]["category"])
	require.Len(t, resp.Ongoing, 1)
	assert.Nil(t, resp.Ongoing[0]["harvest_date"])
}

func TestSetNotifications(t *testing.T) {
	p := &fakePlantings{}
	r := newTestRouter(&fakeDispatcher{}, p, nil)

	w := do(r, http.MethodPut, "/users/u1/notifications", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, p.enabled)
	assert.True(t, *p.enabled)

	w = do(r, http.MethodPut, "/users/u1/notifications", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = newTestRouter(&fakeDispatcher{}, &fakePlantings{err: user.ErrNotFound}, nil)
	w = do(r, http.MethodPut, "/users/ghost/notifications", `{"enabled":false}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreviewDigest(t *testing.T) {
	d := &fakeDispatcher{previewBody: "Hello Ann,\n"}
	r := newTestRouter(d, &fakePlantings{}, nil)

	w := do(r, http.MethodGet, "/users/u1/digest?today=2024-06-01", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), d.previewDay)
	assert.JSONEq(t, `{"user_id":"u1","date":"2024-06-01","empty":false,"body":"Hello Ann,\n"}`, w.Body.String())

	w = do(r, http.MethodGet, "/users/u1/digest", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 5, 25, 0, 0, 0, 0, time.UTC), d.previewDay)

	w = do(r, http.MethodGet, "/users/u1/digest?today=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/users/ghost/digest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
