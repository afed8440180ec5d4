package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing_spider/internal/logger"
	"listing_spider/internal/scheduler"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeJobs []scheduler.Entry

func (f fakeJobs) Entries() []scheduler.Entry { return f }

func (f fakeJobs) RunNow(_ context.Context, name string) error {
	for _, e := range f {
		if e.Name == name {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", scheduler.ErrUnknownJob, name)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		want   string
	}{
		{name: "store reachable", status: http.StatusOK, want: "ok"},
		{name: "store down", err: errors.New("no primary"), status: http.StatusServiceUnavailable, want: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newRouter(fakePinger{err: tt.err}, nil, fakeJobs{}, logger.NewNop())

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body["status"])
		})
	}
}

func TestJobsListing(t *testing.T) {
	t.Parallel()
	next := time.Date(2025, 11, 27, 8, 0, 0, 0, time.UTC)
	h := newRouter(fakePinger{}, nil, fakeJobs{{Name: JobMailboxPoll, Spec: "0 8 * * *", Next: next}}, logger.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "mailbox-poll", body[0]["name"])
	assert.Equal(t, "2025-11-27T08:00:00Z", body[0]["nextRun"])
}

func TestMailboxRoutesOnlyWhenEnabled(t *testing.T) {
	t.Parallel()
	h := newRouter(fakePinger{}, nil, fakeJobs{}, logger.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gmailAuth", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunJobNow(t *testing.T) {
	t.Parallel()

	sched := scheduler.New(time.UTC, logger.NewNop())
	runs := 0
	require.NoError(t, sched.Register(scheduler.Job{Name: JobSearchDrain, Spec: "0 4 * * *", Run: func(context.Context) error {
		runs++
		return nil
	}}))
	require.NoError(t, sched.Register(scheduler.Job{Name: JobMailboxPoll, Spec: "0 8 * * *", Run: func(context.Context) error {
		return errors.New("token revoked")
	}}))
	h := newRouter(fakePinger{}, nil, sched, logger.NewNop())

	tests := []struct {
		name   string
		path   string
		status int
		want   string
	}{
		{name: "registered job", path: "/api/jobs/search-drain/run", status: http.StatusOK, want: "done"},
		{name: "failing job", path: "/api/jobs/mailbox-poll/run", status: http.StatusInternalServerError, want: "failed"},
		{name: "unknown job", path: "/api/jobs/nope/run", status: http.StatusNotFound, want: "unknown job"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, nil))

		assert.Equal(t, tt.status, rec.Code, tt.name)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.want, body["status"], tt.name)
	}
	assert.Equal(t, 1, runs)
}

func TestRunJobNowRequiresPost(t *testing.T) {
	t.Parallel()
	h := newRouter(fakePinger{}, nil, fakeJobs{{Name: JobSearchDrain}}, logger.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/search-drain/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
