package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func respond(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	RespondError(rec, err)
	return rec
}

func TestRespondErrorMapsWrappedSentinels(t *testing.T) {
	rec := respond(t, fmt.Errorf("%w: quotation 42", ErrNotFound))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = respond(t, fmt.Errorf("%w: one DP invoice per job", ErrDuplicate))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRespondErrorTransientConflictCarriesRetryHint(t *testing.T) {
	rec := respond(t, fmt.Errorf("%w: sequence allocation", ErrConflict))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Conflict", body.Title)
}

func TestRespondErrorDefaultsToInternal(t *testing.T) {
	rec := respond(t, fmt.Errorf("connection reset"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, rec.Header().Get("Retry-After"))
}
