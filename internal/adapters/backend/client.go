package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"spsc-fieldsync/internal/config"
	"spsc-fieldsync/internal/core/domain"
	"spsc-fieldsync/internal/core/services"

	"github.com/shopspring/decimal"
)

// maxErrorBody caps how much of a failed response is kept as error metadata
const maxErrorBody = 2048

// Client submits collection events to the backend over JSON/HTTPS. Every
// request carries the event's clientRef (body and header) so the backend
// can deduplicate repeated deliveries. The fixed request timeout bounds
// each dispatch, so one stalled request cannot stall a concurrent batch
// beyond that bound.
type Client struct {
	baseURL    string
	agentToken string
	http       *http.Client
}

// NewClient creates a collections backend client
func NewClient(cfg config.BackendConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		agentToken: cfg.AgentToken,
		http:       &http.Client{Timeout: timeout},
	}
}

// paymentRequest is the wire shape of POST /collections/{loanId}/payment
type paymentRequest struct {
	ClientRef  string          `json:"clientRef"`
	Amount     decimal.Decimal `json:"amount"`
	Date       string          `json:"date"`
	Mode       string          `json:"mode"`
	AgentID    string          `json:"agentId"`
	Notes      string          `json:"notes,omitempty"`
	Attachment string          `json:"attachment,omitempty"`
}

// paymentResponse mirrors the backend's canonical payment result
type paymentResponse struct {
	TransactionID string                    `json:"transactionId"`
	Loan          *services.LoanState       `json:"loan"`
	Allocation    []services.AllocationEntry `json:"allocation"`
}

type ptpRequest struct {
	ClientRef   string          `json:"clientRef"`
	PromiseDate string          `json:"promiseDate"`
	Amount      decimal.Decimal `json:"amount"`
	Note        string          `json:"note,omitempty"`
	AgentID     string          `json:"agentId"`
}

type noteRequest struct {
	ClientRef string `json:"clientRef"`
	Text      string `json:"text"`
	AgentID   string `json:"agentId"`
}

type ackResponse struct {
	ID string `json:"id"`
}

// SubmitPayment delivers a payment event and returns the authoritative
// post-write loan state with its installment allocation
func (c *Client) SubmitPayment(ctx context.Context, loanID string, data *domain.PaymentData, clientRef string) (*services.SubmitResult, error) {
	req := paymentRequest{
		ClientRef:  clientRef,
		Amount:     data.Amount,
		Date:       data.Date.Format("2006-01-02"),
		Mode:       data.Mode,
		AgentID:    data.AgentID,
		Notes:      data.Notes,
		Attachment: data.Attachment,
	}

	var res paymentResponse
	if err := c.post(ctx, fmt.Sprintf("/collections/%s/payment", url.PathEscape(loanID)), clientRef, req, &res); err != nil {
		return nil, err
	}

	return &services.SubmitResult{
		BackendRef: res.TransactionID,
		Loan:       res.Loan,
		Allocation: res.Allocation,
	}, nil
}

// SubmitPTP delivers a promise-to-pay event
func (c *Client) SubmitPTP(ctx context.Context, loanID string, data *domain.PTPData, clientRef string) (*services.SubmitResult, error) {
	req := ptpRequest{
		ClientRef:   clientRef,
		PromiseDate: data.PromiseDate.Format("2006-01-02"),
		Amount:      data.Amount,
		Note:        data.Note,
		AgentID:     data.AgentID,
	}

	var res ackResponse
	if err := c.post(ctx, fmt.Sprintf("/collections/%s/ptp", url.PathEscape(loanID)), clientRef, req, &res); err != nil {
		return nil, err
	}

	return &services.SubmitResult{BackendRef: res.ID}, nil
}

// SubmitNote delivers a note event
func (c *Client) SubmitNote(ctx context.Context, loanID string, data *domain.NoteData, clientRef string) (*services.SubmitResult, error) {
	req := noteRequest{
		ClientRef: clientRef,
		Text:      data.Text,
		AgentID:   data.AgentID,
	}

	var res ackResponse
	if err := c.post(ctx, fmt.Sprintf("/collections/%s/note", url.PathEscape(loanID)), clientRef, req, &res); err != nil {
		return nil, err
	}

	return &services.SubmitResult{BackendRef: res.ID}, nil
}

// post executes one idempotent JSON submission
func (c *Client) post(ctx context.Context, path, clientRef string, body, target interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Ref", clientRef)
	if c.agentToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.agentToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.ServerError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &domain.TransportError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
