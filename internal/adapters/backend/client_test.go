package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spsc-fieldsync/internal/config"
	"spsc-fieldsync/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.BackendConfig{
		BaseURL:        baseURL,
		AgentToken:     "token-123",
		RequestTimeout: 2 * time.Second,
	})
}

func paymentData() *domain.PaymentData {
	return &domain.PaymentData{
		Amount:  decimal.NewFromInt(1000),
		Date:    time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Mode:    "CASH",
		AgentID: "AGT7",
		Notes:   "collected at shop",
	}
}

func TestSubmitPaymentSendsIdempotentRequest(t *testing.T) {
	var gotPath, gotHeader, gotAuth string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Get("X-Client-Ref")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"transactionId": "T1",
			"loan": {"id": "BL-9", "outstandingAmount": "4000", "dpd": 0, "bucket": "Current"},
			"allocation": [{"installmentNo": 1, "amount": "1000"}]
		}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).SubmitPayment(context.Background(), "LN001", paymentData(), "ref-abc")
	require.NoError(t, err)

	assert.Equal(t, "/collections/LN001/payment", gotPath)
	assert.Equal(t, "ref-abc", gotHeader)
	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, "ref-abc", gotBody["clientRef"])
	assert.Equal(t, "2026-08-20", gotBody["date"])
	assert.Equal(t, "CASH", gotBody["mode"])

	assert.Equal(t, "T1", res.BackendRef)
	require.NotNil(t, res.Loan)
	assert.Equal(t, "BL-9", res.Loan.BackendID)
	assert.True(t, res.Loan.OutstandingAmount.Equal(decimal.NewFromInt(4000)))
	require.Len(t, res.Allocation, 1)
	assert.Equal(t, 1, res.Allocation[0].InstallmentNo)
	assert.True(t, res.Allocation[0].Amount.Equal(decimal.NewFromInt(1000)))
}

func TestSubmitPTPAndNoteReturnAckID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "ACK-7"}`))
	}))
	defer srv.Close()
	client := newTestClient(srv.URL)

	res, err := client.SubmitPTP(context.Background(), "LN001", &domain.PTPData{
		PromiseDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(1500),
		AgentID:     "AGT7",
	}, "ref-ptp")
	require.NoError(t, err)
	assert.Equal(t, "ACK-7", res.BackendRef)
	assert.Nil(t, res.Loan)

	res, err = client.SubmitNote(context.Background(), "LN001", &domain.NoteData{
		Text:    "not home",
		AgentID: "AGT7",
	}, "ref-note")
	require.NoError(t, err)
	assert.Equal(t, "ACK-7", res.BackendRef)
}

func TestServerErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"internal error", 500, true},
		{"bad gateway", 502, true},
		{"throttled", 429, true},
		{"bad request", 400, false},
		{"unauthorized", 401, false},
		{"conflict", 409, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).SubmitPayment(context.Background(), "LN001", paymentData(), "ref-1")
			require.Error(t, err)

			var serverErr *domain.ServerError
			require.ErrorAs(t, err, &serverErr)
			assert.Equal(t, tt.status, serverErr.StatusCode)
			assert.Contains(t, serverErr.Body, "nope")
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))
		})
	}
}

func TestUnreachableBackendIsTransportError(t *testing.T) {
	// A closed server guarantees a connection failure
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).SubmitPayment(context.Background(), "LN001", paymentData(), "ref-1")
	require.Error(t, err)

	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, domain.IsRetryable(err))
}

func TestMalformedSuccessBodyIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactionId": `))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SubmitPayment(context.Background(), "LN001", paymentData(), "ref-1")
	require.Error(t, err)

	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, domain.IsRetryable(err))
}

func TestRequestTimeoutIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(config.BackendConfig{
		BaseURL:        srv.URL,
		RequestTimeout: 50 * time.Millisecond,
	})

	_, err := client.SubmitPayment(context.Background(), "LN001", paymentData(), "ref-1")
	require.Error(t, err)

	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, domain.IsRetryable(err))
}

func TestNoAuthorizationHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id": "ACK-1"}`))
	}))
	defer srv.Close()

	client := NewClient(config.BackendConfig{BaseURL: srv.URL, RequestTimeout: time.Second})
	_, err := client.SubmitNote(context.Background(), "LN001", &domain.NoteData{Text: "x", AgentID: "A"}, "ref-1")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}
