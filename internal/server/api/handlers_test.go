package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/devicekeeper/internal/common"
	"github.com/dmitrijs2005/devicekeeper/internal/logging"
	"github.com/dmitrijs2005/devicekeeper/internal/server/models"
	"github.com/dmitrijs2005/devicekeeper/internal/server/repositories/devices"
)

func newRouter(t *testing.T) (http.Handler, *devices.MemoryRepository) {
	t.Helper()
	repo := devices.NewMemoryRepository()
	return NewHandlers(repo, nil).Router(), repo
}

func do(t *testing.T, h http.Handler, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestCreateAndList(t *testing.T) {
	h, _ := newRouter(t)

	rec := do(t, h, http.MethodPost, "/devices", url.Values{
		"device": {"Pixel"}, "os": {"Android"}, "manufacturer": {"Google"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	created := decode(t, rec)
	assert.EqualValues(t, 1, created["id"])
	assert.Equal(t, false, created["isCheckedOut"])

	rec = do(t, h, http.MethodGet, "/devices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"device":"Pixel","os":"Android","manufacturer":"Google","isCheckedOut":false}]`, rec.Body.String())
}

func TestListEmptyIsArray(t *testing.T) {
	h, _ := newRouter(t)
	rec := do(t, h, http.MethodGet, "/devices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreate_MissingField(t *testing.T) {
	h, _ := newRouter(t)
	rec := do(t, h, http.MethodPost, "/devices", url.Values{"device": {"Pixel"}, "os": {" "}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "required")
}

func TestCheckOutAndIn(t *testing.T) {
	h, repo := newRouter(t)
	_, err := repo.Create(context.Background(), &models.Device{Name: "Pixel", OS: "Android", Manufacturer: "Google"})
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/devices/1", url.Values{
		"isCheckedOut":       {"true"},
		"lastCheckedOutBy":   {"Ann"},
		"lastCheckedOutDate": {"2017-07-03T10:00:00+02:00"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, true, got["isCheckedOut"])
	assert.Equal(t, "Ann", got["lastCheckedOutBy"])
	assert.Equal(t, "2017-07-03T10:00:00+02:00", got["lastCheckedOutDate"])

	rec = do(t, h, http.MethodPost, "/devices/1", url.Values{"isCheckedOut": {"false"}})
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode(t, rec)
	assert.Equal(t, false, got["isCheckedOut"])
	assert.Equal(t, "Ann", got["lastCheckedOutBy"])
}

func TestUpdate_BadRequests(t *testing.T) {
	h, repo := newRouter(t)
	_, err := repo.Create(context.Background(), &models.Device{Name: "Pixel", OS: "Android", Manufacturer: "Google"})
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		form url.Values
		code int
	}{
		{"bad id", "/devices/abc", url.Values{"isCheckedOut": {"false"}}, http.StatusBadRequest},
		{"zero id", "/devices/0", url.Values{"isCheckedOut": {"false"}}, http.StatusBadRequest},
		{"missing flag", "/devices/1", url.Values{}, http.StatusBadRequest},
		{"missing name", "/devices/1", url.Values{"isCheckedOut": {"true"}, "lastCheckedOutDate": {"2017-07-03T10:00:00+02:00"}}, http.StatusBadRequest},
		{"bad date", "/devices/1", url.Values{"isCheckedOut": {"true"}, "lastCheckedOutBy": {"Ann"}, "lastCheckedOutDate": {"yesterday"}}, http.StatusBadRequest},
		{"unknown id", "/devices/77", url.Values{"isCheckedOut": {"false"}}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.form)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestDelete(t *testing.T) {
	h, repo := newRouter(t)
	_, err := repo.Create(context.Background(), &models.Device{Name: "Pixel", OS: "Android", Manufacturer: "Google"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/devices/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/devices/1", nil).Code)
}

type brokenRepo struct{ devices.Repository }

func (brokenRepo) List(context.Context) ([]*models.Device, error) {
	return nil, errors.Join(common.ErrStorage, errors.New("db down"))
}

func (brokenRepo) Delete(context.Context, int64) error {
	panic("unexpected")
}

func TestStorageFailureIs500(t *testing.T) {
	h := NewHandlers(brokenRepo{}, nil).Router()

	rec := do(t, h, http.MethodGet, "/devices", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")

	rec = do(t, h, http.MethodDelete, "/devices/1", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "panics are recovered")
}

func TestAccessLogCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandlers(devices.NewMemoryRepository(), logging.New(&buf, "text", "info")).Router()

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), "request_id=abc-123")
	assert.Contains(t, buf.String(), "status=200")
}
