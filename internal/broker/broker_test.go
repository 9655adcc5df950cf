package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
)

// fakeRemote simulates the remote service's legacy and REST surfaces.
type fakeRemote struct {
	mu sync.Mutex
	// pollsUntilReady counts tenant-config calls answered with an anonymous
	// user before the session becomes ready.
	pollsUntilReady int
	tenantCalls     int
	lastAuth        string
	lastCSRF        string
	createdPayload  map[string]any
	srv             *httptest.Server
}

func newFakeRemote(pollsUntilReady int) *fakeRemote {
	f := &fakeRemote{pollsUntilReady: pollsUntilReady}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeRemote) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.lastAuth = r.Header.Get("Authorization")
	f.mu.Unlock()

	if r.URL.Path == "/documents/web" {
		f.handleIDC(w, r)
		return
	}
	if r.URL.Path == "/content/management/api/v1.1/items" && r.Method == http.MethodPost {
		f.mu.Lock()
		f.lastCSRF = r.Header.Get("X-CSRF-Token")
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		f.createdPayload = payload
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "created-1"}) //nolint:errcheck
		return
	}
	if r.URL.Path == "/documents/folder/doc-1" {
		w.Header().Set("x-custom-header", "remote-value")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
		return
	}
	http.NotFound(w, r)
}

func (f *fakeRemote) handleIDC(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("IdcService") {
	case "SCS_GET_TENANT_CONFIG":
		f.mu.Lock()
		f.tenantCalls++
		ready := f.tenantCalls > f.pollsUntilReady
		f.mu.Unlock()
		local := map[string]string{"StatusCode": "0", "dUser": "anonymous", "idcToken": ""}
		if ready {
			local = map[string]string{"StatusCode": "0", "dUser": "sitetool", "idcToken": "idc-token-1"}
		}
		json.NewEncoder(w).Encode(map[string]any{"LocalData": local}) //nolint:errcheck
	case "CSRF_TOKEN":
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"LocalData": map[string]string{"StatusCode": "0"},
			"csrfToken": "csrf-token-1",
		})
	default:
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"LocalData": map[string]string{"StatusCode": "-1", "StatusMessage": "unexpected service"},
		})
	}
}

func startTestBroker(t *testing.T, remote *fakeRemote) *Broker {
	t.Helper()
	b, err := Start(context.Background(), Config{
		RemoteURL:       remote.srv.URL,
		Username:        "admin",
		Password:        "secret",
		SessionInterval: 5 * time.Millisecond,
		SessionAttempts: 10,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func TestStart_EstablishesSessionAfterPolling(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(2)
	defer remote.srv.Close()

	b := startTestBroker(t, remote)
	require.NotEmpty(t, b.RunID())
	require.Equal(t, "sitetool", b.session.user)
	require.Equal(t, "idc-token-1", b.session.writeToken)
	require.Equal(t, "csrf-token-1", b.session.csrfToken)

	remote.mu.Lock()
	calls := remote.tenantCalls
	remote.mu.Unlock()
	require.Equal(t, 3, calls)
}

func TestStart_SessionBudgetExhaustedMapsToTimeout(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(100)
	defer remote.srv.Close()

	_, err := Start(context.Background(), Config{
		RemoteURL:       remote.srv.URL,
		Token:           "bearer-1",
		SessionInterval: time.Millisecond,
		SessionAttempts: 3,
	}, nil)
	require.ErrorIs(t, err, cms.ErrSessionTimeout)
}

func TestStart_RequiresRemoteURL(t *testing.T) {
	t.Parallel()

	_, err := Start(context.Background(), Config{}, nil)
	require.Error(t, err)
}

func TestForward_InjectsAuthAndRewritesHeaders(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(0)
	defer remote.srv.Close()

	b := startTestBroker(t, remote)

	resp, err := http.Get(b.Addr() + "/documents/folder/doc-1")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "remote-value", resp.Header.Get("X-Custom-Header"))
	require.Contains(t, resp.Header.Get("X-Request-ID"), b.RunID())

	remote.mu.Lock()
	auth := remote.lastAuth
	remote.mu.Unlock()
	require.Contains(t, auth, "Basic ")
}

func TestCreateItem_UsesStagedPayloadAndCSRFToken(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(0)
	defer remote.srv.Close()

	b := startTestBroker(t, remote)
	b.Stage(cms.StagedRun{
		Repository:  "repo-1",
		ContentType: "PageIndex",
		Language:    "en-US",
		Creates: []cms.PageIndexRecord{{
			Site: "Blog", PageID: "7", PageName: "Home",
			PageTitle: " ", PageDescription: " ",
		}},
	})

	resp, err := http.Post(b.Addr()+"/rpc/create-item", "application/json",
		jsonBody(t, map[string]int{"index": 0}))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		ID     string              `json:"id"`
		Record cms.PageIndexRecord `json:"record"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "created-1", out.ID)
	require.Equal(t, "7", out.Record.PageID)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	require.Equal(t, "csrf-token-1", remote.lastCSRF)
	require.Equal(t, "PageIndex", remote.createdPayload["type"])
	require.Equal(t, "repo-1", remote.createdPayload["repositoryId"])
	fields, ok := remote.createdPayload["fields"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Blog", fields["site"])
	// Absent keywords serialize as an empty list, never null.
	require.Equal(t, []any{}, fields["keywords"])
}

func TestCreateItem_UnstagedIndexRejected(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(0)
	defer remote.srv.Close()

	b := startTestBroker(t, remote)
	resp, err := http.Post(b.Addr()+"/rpc/create-item", "application/json",
		jsonBody(t, map[string]int{"index": 5}))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRPC_MissingIndexRejected(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(0)
	defer remote.srv.Close()

	b := startTestBroker(t, remote)
	resp, err := http.Post(b.Addr()+"/rpc/update-item", "application/json",
		jsonBody(t, map[string]string{}))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint_Serves(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(0)
	defer remote.srv.Close()

	b := startTestBroker(t, remote)
	resp, err := http.Get(b.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func jsonBody(t *testing.T, payload any) io.Reader {
	t.Helper()
	buf, err := json.Marshal(payload)
	require.NoError(t, err)
	return bytes.NewReader(buf)
}
