package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
)

func TestSubmitEvent_Accepted(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodPost, "/api/v1/events", `{
		"id": "ev-1",
		"camera_id": "front-door",
		"labels": ["person"],
		"confidence": 82
	}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Len(t, f.submitter.submitted, 1)
	assert.Equal(t, "ev-1", f.submitter.submitted[0].ID)
	assert.Equal(t, []string{"person"}, f.submitter.submitted[0].Labels)
}

func TestSubmitEvent_GeneratesID(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodPost, "/api/v1/events", `{"camera_id": "cam", "confidence": 50}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	resp := decodeJSON[map[string]string](t, rec.Body.Bytes())
	assert.NotEmpty(t, resp["event_id"])
}

func TestSubmitEvent_Rejections(t *testing.T) {
	f := newAPIFixture(t)

	assert.Equal(t, http.StatusBadRequest,
		f.request(http.MethodPost, "/api/v1/events", `{"labels": ["person"]}`).Code,
		"camera_id is required")
	assert.Equal(t, http.StatusBadRequest,
		f.request(http.MethodPost, "/api/v1/events", `{broken`).Code)
}

func TestSubmitEvent_QueueRejection(t *testing.T) {
	f := newAPIFixture(t)
	f.submitter.reject = true

	rec := f.request(http.MethodPost, "/api/v1/events", `{"camera_id": "cam"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestListEvents(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEvent(t, "ev-1")
	f.seedEvent(t, "ev-2")

	rec := f.request(http.MethodGet, "/api/v1/events?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeJSON[struct {
		Events []entities.CameraEvent `json:"events"`
		Count  int                    `json:"count"`
	}](t, rec.Body.Bytes())
	assert.Equal(t, 2, resp.Count)

	assert.Equal(t, http.StatusBadRequest, f.request(http.MethodGet, "/api/v1/events?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.request(http.MethodGet, "/api/v1/events?limit=9999", "").Code)
}

func TestGetEvent(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEvent(t, "ev-1")

	rec := f.request(http.MethodGet, "/api/v1/events/ev-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[entities.CameraEvent](t, rec.Body.Bytes())
	assert.Equal(t, "front-door", got.CameraID)

	assert.Equal(t, http.StatusNotFound, f.request(http.MethodGet, "/api/v1/events/missing", "").Code)
}
