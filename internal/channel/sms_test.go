package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPSMSSender_SendSMS(t *testing.T) {
	var got struct {
		method      string
		contentType string
		apiKey      string
		mobile      string
		msg         string
		senderID    string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got.method = r.Method
		got.contentType = r.Header.Get("Content-Type")
		got.apiKey = r.Header.Get("apikey")
		got.mobile = r.PostForm.Get("mobile")
		got.msg = r.PostForm.Get("msg")
		got.senderID = r.PostForm.Get("senderid")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	s := NewHTTPSMSSender(srv.URL, "key-123", "ISPCARE", time.Second, zap.NewNop())
	require.NoError(t, s.SendSMS(context.Background(), "+15550100", "Alert: hello & bye"))

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "application/x-www-form-urlencoded", got.contentType)
	assert.Equal(t, "key-123", got.apiKey)
	assert.Equal(t, "+15550100", got.mobile)
	assert.Equal(t, "Alert: hello & bye", got.msg)
	assert.Equal(t, "ISPCARE", got.senderID)
}

func TestHTTPSMSSender_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewHTTPSMSSender(srv.URL, "bad", "ISPCARE", time.Second, zap.NewNop())
	err := s.SendSMS(context.Background(), "+15550100", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestHTTPSMSSender_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	s := NewHTTPSMSSender(url, "", "ISPCARE", time.Second, zap.NewNop())
	assert.Error(t, s.SendSMS(context.Background(), "+15550100", "hi"))
}

func TestLogSMSSender(t *testing.T) {
	s := NewLogSMSSender(zap.NewNop())
	assert.NoError(t, s.SendSMS(context.Background(), "+15550100", "hi"))
}
