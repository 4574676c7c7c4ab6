package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsentry/airsentry/internal/notify"
)

func TestSendNotConfigured(t *testing.T) {
	client := New(Config{})

	_, err := client.Send(context.Background(), "+14155550100", "AQI 160")
	assert.ErrorIs(t, err, notify.ErrNotConfigured)
}

func TestSendPostsMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+14155550100", r.PostForm.Get("To"))
		assert.Equal(t, "+14155550001", r.PostForm.Get("From"))
		assert.Equal(t, "AQI 160", r.PostForm.Get("Body"))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM42"}`)) //nolint:errcheck
	}))
	defer server.Close()

	client := New(Config{
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+14155550001",
		BaseURL:    server.URL,
	})

	detail, err := client.Send(context.Background(), "+14155550100", "AQI 160")
	require.NoError(t, err)
	assert.Equal(t, "sid=SM42", detail)
}

func TestSendSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message":"queue full"}`)) //nolint:errcheck
	}))
	defer server.Close()

	client := New(Config{
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+14155550001",
		BaseURL:    server.URL,
	})

	_, err := client.Send(context.Background(), "+14155550100", "AQI 160")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
