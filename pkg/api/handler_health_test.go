package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/workbench/pkg/version"
)

func TestHealth(t *testing.T) {
	f := newTestAPI(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, healthStatusHealthy, resp.Status)
	assert.Equal(t, version.GitCommit, resp.Version)
	assert.Equal(t, healthStatusHealthy, resp.Checks["store"].Status)
	assert.Equal(t, healthStatusHealthy, resp.Checks["websocket"].Status)
	assert.Zero(t, resp.Sessions)
	assert.Zero(t, resp.Connections)
}

func TestHealth_CountsPersistedSessions(t *testing.T) {
	f := newTestAPI(t)

	// Sessions count what the store has on disk; an empty session that
	// never recorded anything is not included.
	session := f.runtime.Sessions().Create("work")
	rec := f.do(t, http.MethodGet, "/health", nil)
	var resp HealthResponse
	decodeJSON(t, rec, &resp)
	assert.Zero(t, resp.Sessions)

	postTestMessage(t, f, session.ID, "hello")
	rec = f.do(t, http.MethodGet, "/health", nil)
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 1, resp.Sessions)
}
