package icloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSession points both service endpoints at one test server.
type testSession struct {
	baseURL string
}

func (s *testSession) Attach(req *http.Request) {
	req.AddCookie(&http.Cookie{Name: "X-APPLE-WEBAUTH-TOKEN", Value: "tok"})

	q := req.URL.Query()
	q.Set("dsid", "12345")
	req.URL.RawQuery = q.Encode()
}

func (s *testSession) DriveURL() string { return s.baseURL }
func (s *testSession) DocsURL() string  { return s.baseURL }

type countingReauth struct {
	calls atomic.Int32
	fail  error
}

func (r *countingReauth) Reauthorize(context.Context) error {
	r.calls.Add(1)
	return r.fail
}

func newTestClient(t *testing.T, handler http.HandlerFunc, reauth Reauthorizer) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(srv.Client(), &testSession{baseURL: srv.URL}, reauth, nil)
}

func TestClient_AttachesSessionAndClientID(t *testing.T) {
	var seen *http.Request

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(r.Context())
		_, _ = w.Write([]byte("[]"))
	}, nil)

	_, err := client.RetrieveItemDetailsInFolders(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, seen, "empty id list must not hit the network")

	_, err = client.RetrieveItemDetailsInFolders(context.Background(), []string{RootID})
	require.Error(t, err) // 1 requested, 0 returned
	require.NotNil(t, seen)

	cookie, err := seen.Cookie("X-APPLE-WEBAUTH-TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "tok", cookie.Value)

	q := seen.URL.Query()
	assert.Equal(t, "12345", q.Get("dsid"))
	assert.Equal(t, client.ClientID(), q.Get("clientId"))
}

func TestClient_ReauthorizesOnceOnExpiry(t *testing.T) {
	var requests atomic.Int32
	reauth := &countingReauth{}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(statusMisdirected)
			return
		}

		var reqs []FolderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqs))

		items := make([]DriveItem, 0, len(reqs))
		for _, req := range reqs {
			items = append(items, DriveItem{Drivewsid: req.Drivewsid, Type: TypeFolder, Status: StatusOK})
		}

		require.NoError(t, json.NewEncoder(w).Encode(items))
	}, reauth)

	items, err := client.RetrieveItemDetailsInFolders(context.Background(), []string{RootID})
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, RootID, items[0].Drivewsid)
	assert.Equal(t, int32(1), reauth.calls.Load())
	assert.Equal(t, int32(2), requests.Load())
}

func TestClient_SecondExpiryIsTerminal(t *testing.T) {
	var requests atomic.Int32
	reauth := &countingReauth{}

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(statusMisdirected)
	}, reauth)

	_, err := client.RetrieveItemDetailsInFolders(context.Background(), []string{RootID})
	require.ErrorIs(t, err, ErrSessionExpired)

	assert.Equal(t, int32(1), reauth.calls.Load(), "exactly one reauthorization, no retry loop")
	assert.Equal(t, int32(2), requests.Load())
}

func TestClient_NilReauthorizerFailsFast(t *testing.T) {
	var requests atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(statusMisdirected)
	}, nil)

	_, err := client.RetrieveItemDetailsInFolders(context.Background(), []string{RootID})
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(1), requests.Load())
}

func TestClient_ReauthorizationFailure(t *testing.T) {
	reauth := &countingReauth{fail: assert.AnError}

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(statusMisdirected)
	}, reauth)

	_, err := client.RetrieveItemDetailsInFolders(context.Background(), []string{RootID})
	require.ErrorIs(t, err, assert.AnError)
}

func TestClient_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{statusMisdirected, ErrSessionExpired},
		{http.StatusTooManyRequests, ErrThrottled},
		{http.StatusInternalServerError, ErrServerError},
		{http.StatusBadGateway, ErrServerError},
	}

	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte("nope"))
		}, nil)

		_, err := client.RetrieveItemDetailsInFolders(context.Background(), []string{RootID})
		require.ErrorIs(t, err, tc.want, "status %d", tc.status)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, tc.status, apiErr.StatusCode)
		assert.Equal(t, "nope", apiErr.Message)
	}
}

func TestRetrieveItemDetailsInFolders_LengthMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"drivewsid":"only-one","name":"a","type":"FOLDER"}]`))
	}, nil)

	_, err := client.RetrieveItemDetailsInFolders(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requested 2")
}

func TestFetchDownloadURLs_PerItemTokens(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/ws/com.apple.CloudDocs/download/batch")

		_, _ = w.Write([]byte(`[
			{"document_id":"doc-a","data_token":{"url":"https://cvws.example/a"}},
			{"document_id":"doc-b","package_token":{"url":"https://cvws.example/b"}},
			{"document_id":"doc-c","status":"NOT_FOUND"}
		]`))
	}, nil)

	urls, err := client.FetchDownloadURLs(context.Background(), "com.apple.CloudDocs", []string{"doc-a", "doc-b", "doc-c"})
	require.NoError(t, err)

	require.Len(t, urls, 3)
	assert.Equal(t, "https://cvws.example/a", urls[0].URL)
	assert.Equal(t, "https://cvws.example/b", urls[1].URL)
	assert.Error(t, urls[2].Err, "a missing token is a per-item error, not a batch error")
}

func TestCreateFolders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DestinationDrivewsID string         `json:"destinationDrivewsId"`
			Folders              []FolderCreate `json:"folders"`
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, RootID, req.DestinationDrivewsID)
		require.Len(t, req.Folders, 1)
		assert.Equal(t, "reports", req.Folders[0].Name)
		assert.NotEmpty(t, req.Folders[0].ClientID)

		_, _ = w.Write([]byte(`{"folders":[{"drivewsid":"F::new","name":"reports","type":"FOLDER"}]}`))
	}, nil)

	folders, err := client.CreateFolders(context.Background(), RootID, []string{"reports"})
	require.NoError(t, err)

	require.Len(t, folders, 1)
	assert.Equal(t, "F::new", folders[0].Drivewsid)
}
