package ctlserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, string, *bool) {
	t.Helper()
	cancelled := false
	srv, secret, err := New(
		func() Status {
			return Status{RunID: "r1", Nodes: 42, RootLabel: "UNLABELED"}
		},
		func() { cancelled = true },
		nil,
	)
	require.NoError(t, err)
	return srv, secret, &cancelled
}

func Test_Status_isOpen(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "r1", st.RunID)
	assert.Equal(t, 42, st.Nodes)
}

func Test_Cancel_requiresToken(t *testing.T) {
	srv, secret, cancelled := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	post := func(auth string) int {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, ts.URL+"/cancel", nil)
		require.NoError(t, err)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, post(""))
	assert.False(t, *cancelled)

	assert.Equal(t, http.StatusUnauthorized, post("Bearer not-a-jwt"))
	assert.False(t, *cancelled)

	wrong, err := Token("someone-elses-secret")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, post("Bearer "+wrong))
	assert.False(t, *cancelled)

	good, err := Token(secret)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, post("Bearer "+good))
	assert.True(t, *cancelled)
}
