package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gift-notify/internal/domain/entity"
)

func newTestSMSClient(baseURL string) *SMSClient {
	return NewSMSClient(SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		SenderID:   "GIFTS",
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
		RetryDelay: 10 * time.Millisecond,
	})
}

// smsServer answers with the given status codes in order, repeating the last one.
func smsServer(t *testing.T, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 200 && status < 300 {
			_, _ = w.Write([]byte(`{"sid":"SM0001","status":"queued"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":20500,"message":"Internal Server Error"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestSMSClient_SendSMS_Retry(t *testing.T) {
	t.Run("TC-1: 503 then 200 should retry once and succeed", func(t *testing.T) {
		// Arrange
		srv, calls := smsServer(t, http.StatusServiceUnavailable, http.StatusCreated)
		client := newTestSMSClient(srv.URL)

		// Act
		res := client.SendSMS(context.Background(), "+14155550100", "hello", DefaultSMSOptions())

		// Assert
		if !res.Success {
			t.Fatalf("expected success, got %+v", res)
		}
		if got := atomic.LoadInt32(calls); got != 2 {
			t.Errorf("expected 2 requests, got %d", got)
		}
		if res.SID != "SM0001" || res.Status != "queued" || res.Channel != entity.ChannelSMS {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("TC-2: 503 twice should retry once and fail", func(t *testing.T) {
		// Arrange
		srv, calls := smsServer(t, http.StatusServiceUnavailable)
		client := newTestSMSClient(srv.URL)

		// Act
		res := client.SendSMS(context.Background(), "+14155550100", "hello", DefaultSMSOptions())

		// Assert
		if res.Success {
			t.Fatal("expected failure")
		}
		if got := atomic.LoadInt32(calls); got != 2 {
			t.Errorf("expected exactly 2 requests, got %d", got)
		}
		if res.ErrorCode != entity.ErrCodeProvider || res.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("unexpected failure %+v", res)
		}
		if res.Status != "20500" {
			t.Errorf("expected provider code 20500, got %q", res.Status)
		}
	})

	t.Run("TC-3: RetryOnce disabled should not retry", func(t *testing.T) {
		// Arrange
		srv, calls := smsServer(t, http.StatusBadGateway)
		client := newTestSMSClient(srv.URL)

		// Act
		res := client.SendSMS(context.Background(), "+14155550100", "hello", SMSOptions{})

		// Assert
		if res.Success {
			t.Fatal("expected failure")
		}
		if got := atomic.LoadInt32(calls); got != 1 {
			t.Errorf("expected 1 request, got %d", got)
		}
	})

	t.Run("TC-4: 400 and 429 should not be retried", func(t *testing.T) {
		for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests} {
			// Arrange
			srv, calls := smsServer(t, status)
			client := newTestSMSClient(srv.URL)

			// Act
			res := client.SendSMS(context.Background(), "+14155550100", "hello", DefaultSMSOptions())

			// Assert
			if res.Success || res.StatusCode != status {
				t.Errorf("status %d: unexpected result %+v", status, res)
			}
			if got := atomic.LoadInt32(calls); got != 1 {
				t.Errorf("status %d: expected 1 request, got %d", status, got)
			}
		}
	})

	t.Run("TC-5: network failure should retry once and report NETWORK_ERROR", func(t *testing.T) {
		// Arrange
		srv := httptest.NewServer(http.NotFoundHandler())
		baseURL := srv.URL
		srv.Close()
		client := newTestSMSClient(baseURL)

		// Act
		res := client.SendSMS(context.Background(), "+14155550100", "hello", DefaultSMSOptions())

		// Assert
		if res.Success {
			t.Fatal("expected failure")
		}
		if res.ErrorCode != entity.ErrCodeNetwork {
			t.Errorf("expected NETWORK_ERROR, got %q", res.ErrorCode)
		}
	})
}

func TestSMSClient_SendSMS_Request(t *testing.T) {
	t.Run("TC-1: should post form with basic auth and truncated body", func(t *testing.T) {
		// Arrange
		var (
			gotPath, gotTo, gotFrom, gotBody, gotUser, gotPass, gotContentType string
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotContentType = r.Header.Get("Content-Type")
			gotUser, gotPass, _ = r.BasicAuth()
			_ = r.ParseForm()
			gotTo, gotFrom, gotBody = r.PostForm.Get("To"), r.PostForm.Get("From"), r.PostForm.Get("Body")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"sid":"SM0002","status":"accepted"}`))
		}))
		defer srv.Close()
		client := newTestSMSClient(srv.URL)

		// Act
		res := client.SendSMS(context.Background(), "(415) 555-0100", strings.Repeat("a", 200), DefaultSMSOptions())

		// Assert
		if !res.Success {
			t.Fatalf("expected success, got %+v", res)
		}
		if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %q", gotPath)
		}
		if gotContentType != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", gotContentType)
		}
		if gotUser != "AC123" || gotPass != "secret" {
			t.Errorf("unexpected basic auth %q:%q", gotUser, gotPass)
		}
		// 10 digits starting with 4 are treated as a Mexican local number.
		if gotTo != "+524155550100" {
			t.Errorf("unexpected To %q", gotTo)
		}
		if gotFrom != "GIFTS" {
			t.Errorf("unexpected From %q", gotFrom)
		}
		if len(gotBody) != 160 || !strings.HasSuffix(gotBody, "...") {
			t.Errorf("expected 160 char truncated body, got %d chars", len(gotBody))
		}
	})

	t.Run("TC-2: should keep the body when truncation is off", func(t *testing.T) {
		// Arrange
		var gotBody string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			gotBody = r.PostForm.Get("Body")
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()
		client := newTestSMSClient(srv.URL)

		// Act
		res := client.SendSMS(context.Background(), "+14155550100", strings.Repeat("b", 200), SMSOptions{})

		// Assert
		if !res.Success {
			t.Fatalf("expected success, got %+v", res)
		}
		if len(gotBody) != 200 {
			t.Errorf("expected untouched body, got %d chars", len(gotBody))
		}
		if res.Status != "201" {
			t.Errorf("expected status from HTTP code when body is empty, got %q", res.Status)
		}
	})
}

func TestSMSClient_SendSMS_ShortCircuit(t *testing.T) {
	t.Run("TC-1: missing credentials should not call the provider", func(t *testing.T) {
		// Arrange
		srv, calls := smsServer(t, http.StatusCreated)
		client := NewSMSClient(SMSConfig{AccountSID: "AC123", BaseURL: srv.URL})

		// Act
		res := client.SendSMS(context.Background(), "+14155550100", "hello", DefaultSMSOptions())

		// Assert
		if res.ErrorCode != entity.ErrCodeCredentialsMissing {
			t.Errorf("expected CREDENTIALS_MISSING, got %q", res.ErrorCode)
		}
		if client.Enabled() {
			t.Error("expected client to be disabled")
		}
		if got := atomic.LoadInt32(calls); got != 0 {
			t.Errorf("expected no requests, got %d", got)
		}
	})

	t.Run("TC-2: short number should be rejected", func(t *testing.T) {
		// Arrange
		srv, calls := smsServer(t, http.StatusCreated)
		client := newTestSMSClient(srv.URL)

		// Act
		res := client.SendSMS(context.Background(), "12345", "hello", DefaultSMSOptions())

		// Assert
		if res.ErrorCode != entity.ErrCodeInvalidPhoneNumber {
			t.Errorf("expected INVALID_PHONE_NUMBER, got %q", res.ErrorCode)
		}
		if got := atomic.LoadInt32(calls); got != 0 {
			t.Errorf("expected no requests, got %d", got)
		}
	})
}
