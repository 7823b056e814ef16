package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemMediaType(t *testing.T) {
	rec := httptest.NewRecorder()
	Problem(rec, http.StatusConflict, "conflict", "slug already in use")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "conflict", body.Title)
	assert.Equal(t, http.StatusConflict, body.Status)
}

func TestDecodeJSONRejectsOversizedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"name": "`+strings.Repeat("a", maxBodyBytes+1)+`"}`))

	var target struct {
		Name string `json:"name"`
	}
	assert.Error(t, DecodeJSON(req, &target))
}
