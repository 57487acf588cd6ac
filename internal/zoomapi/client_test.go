package zoomapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amelidiaz19/zoom-api/internal/domain"
)

func newTestServer(t *testing.T, meetings http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "account_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "acc-1", r.Form.Get("account_id"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "cid", user)
		assert.Equal(t, "secret", pass)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`))
	})
	if meetings != nil {
		mux.HandleFunc("/v2/users/", meetings)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		AccountID:    "acc-1",
		ClientID:     "cid",
		ClientSecret: "secret",
		BaseURL:      srv.URL + "/v2",
		AuthURL:      srv.URL + "/oauth/token",
	}, nil)
}

func TestToken(t *testing.T) {
	srv := newTestServer(t, nil)
	tok, err := testClient(srv).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok)
}

func TestCreateMeeting(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/users/host@example.com/meetings", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		var req CreateMeetingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, MeetingTypeScheduled, req.Type)
		assert.Equal(t, "cloud", req.Settings.AutoRecording)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":85746065432,"host_email":"host@example.com","topic":"Clase","agenda":"POPP_MODULO_5_G31","duration":60,"join_url":"https://zoom.us/j/1","start_url":"https://zoom.us/s/1","password":"abc"}`))
	})

	meeting, err := testClient(srv).CreateMeeting(context.Background(), "host@example.com", &CreateMeetingRequest{
		Topic:    "Clase",
		Type:     MeetingTypeScheduled,
		Agenda:   "POPP_MODULO_5_G31",
		Settings: &MeetingSettings{AutoRecording: "cloud"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(85746065432), meeting.ID)
	assert.Equal(t, "POPP_MODULO_5_G31", meeting.Agenda)
}

func TestCreateMeetingAPIError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":1001,"message":"User does not exist"}`))
	})

	_, err := testClient(srv).CreateMeeting(context.Background(), "nobody@example.com", &CreateMeetingRequest{Topic: "x"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeExternal, domain.GetErrorType(err))
	assert.Contains(t, err.Error(), "User does not exist")
}

func TestDownloadAppendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dl-token", r.URL.Query().Get("access_token"))
		_, _ = w.Write([]byte("mp4-bytes"))
	}))
	defer srv.Close()

	data, err := NewClient(Config{}, nil).Download(context.Background(), srv.URL+"/rec/download/abc", "dl-token")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4-bytes"), data)
}

func TestDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(Config{}, nil).Download(context.Background(), srv.URL+"/rec", "bad")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeExternal, domain.GetErrorType(err))
}
