package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"habit-ai-billing/internal/domain"
	"habit-ai-billing/internal/domain/model"
	"habit-ai-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.PaymentGateway = (*PortOneGateway)(nil)

// Config carries credentials for both API generations.
type Config struct {
	V1BaseURL string
	V1Key     string
	V1Secret  string
	V2BaseURL string
	V2Secret  string
}

// PortOneGateway implements adapter.PaymentGateway against the PortOne
// V1 "classic" API (token exchange, lowercase statuses) and the V2 API
// (static bearer secret, uppercase statuses).
//
// Outbound calls intentionally carry no client-side timeout beyond the
// request context: a hung gateway hangs the invocation, which is treated as
// an upstream reliability concern rather than handled here.
type PortOneGateway struct {
	cfg    Config
	client *http.Client
	log    *zerolog.Logger
}

func NewPortOneGateway(cfg Config, logger *zerolog.Logger) *PortOneGateway {
	return &PortOneGateway{cfg: cfg, client: &http.Client{}, log: logger}
}

func (g *PortOneGateway) Name() string { return "portone" }

// --- V1 wire types ---

// v1Envelope wraps every V1 response; code 0 means success.
type v1Envelope struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response"`
}

type v1Token struct {
	AccessToken string `json:"access_token"`
}

// --- V2 wire types ---

// v2Error is the V2 API's structured error body.
type v2Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Verify implements adapter.PaymentGateway.Verify.
func (g *PortOneGateway) Verify(ctx context.Context, ref model.TransactionRef) (adapter.GatewayPayload, error) {
	switch ref.Kind {
	case model.RefKindV2:
		return g.verifyV2(ctx, ref.ID)
	default:
		return g.verifyV1(ctx, ref.ID)
	}
}

func (g *PortOneGateway) verifyV1(ctx context.Context, impUID string) (adapter.GatewayPayload, error) {
	token, err := g.v1AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.V1BaseURL+"/payments/"+impUID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", token)

	var env v1Envelope
	if err := g.doJSON(req, &env); err != nil {
		return nil, err
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("%w: v1 payment lookup failed: code %d, message: %s", domain.ErrGateway, env.Code, env.Message)
	}

	payload := adapter.GatewayPayload{}
	if err := json.Unmarshal(env.Response, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal v1 payment: %w", err)
	}

	// V1 reports lowercase statuses; anything but the exact literal "paid"
	// is a verification failure.
	if status, _ := payload["status"].(string); status != "paid" {
		return nil, fmt.Errorf("%w: payment status is %q, expected \"paid\"", domain.ErrGateway, payload["status"])
	}
	return payload, nil
}

func (g *PortOneGateway) verifyV2(ctx context.Context, paymentID string) (adapter.GatewayPayload, error) {
	if g.cfg.V2Secret == "" {
		return nil, fmt.Errorf("%w: Server Configuration Error: V2 API secret is not set", domain.ErrConfiguration)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.V2BaseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "PortOne "+g.cfg.V2Secret)

	body, status, err := g.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, v2ErrorFromBody(body, status, "v2 payment lookup failed")
	}

	payload := adapter.GatewayPayload{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal v2 payment: %w", err)
	}

	// V2 reports uppercase statuses; the exact literal "PAID" is required.
	if st, _ := payload["status"].(string); st != "PAID" {
		return nil, fmt.Errorf("%w: payment status is %q, expected \"PAID\"", domain.ErrGateway, payload["status"])
	}
	return payload, nil
}

// Cancel implements adapter.PaymentGateway.Cancel.
func (g *PortOneGateway) Cancel(ctx context.Context, ref model.TransactionRef, opts adapter.CancelOptions) (adapter.CancelResult, error) {
	switch ref.Kind {
	case model.RefKindV2:
		return g.cancelV2(ctx, ref.ID, opts)
	default:
		return g.cancelV1(ctx, ref.ID, opts)
	}
}

func (g *PortOneGateway) cancelV2(ctx context.Context, paymentID string, opts adapter.CancelOptions) (adapter.CancelResult, error) {
	if g.cfg.V2Secret == "" {
		return adapter.CancelResult{}, fmt.Errorf("%w: Server Configuration Error: V2 API secret is not set", domain.ErrConfiguration)
	}

	reqBody := map[string]any{"reason": opts.Reason}
	if opts.Amount > 0 {
		reqBody["amount"] = opts.Amount
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return adapter.CancelResult{}, fmt.Errorf("failed to marshal cancel request: %w", err)
	}

	url := g.cfg.V2BaseURL + "/payments/" + paymentID + "/cancel"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return adapter.CancelResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "PortOne "+g.cfg.V2Secret)
	req.Header.Set("Content-Type", "application/json")

	body, status, err := g.do(req)
	if err != nil {
		return adapter.CancelResult{}, err
	}
	if status < 200 || status >= 300 {
		var e v2Error
		_ = json.Unmarshal(body, &e)
		// The provider rejects a second cancel of the same payment; for our
		// callers that outcome IS the desired state, so treat it as success.
		if strings.Contains(e.Type, "ALREADY_CANCELLED") {
			g.log.Info().Str("payment_id", paymentID).Msg("gateway reports payment already cancelled; treating as success")
			return adapter.CancelResult{Payload: adapter.GatewayPayload{
				"status":  "CANCELLED",
				"message": "payment was already cancelled",
			}}, nil
		}
		return adapter.CancelResult{}, v2ErrorFromBody(body, status, "v2 cancel failed")
	}

	payload := adapter.GatewayPayload{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return adapter.CancelResult{}, fmt.Errorf("failed to unmarshal v2 cancel response: %w", err)
	}
	return adapter.CancelResult{Payload: payload}, nil
}

func (g *PortOneGateway) cancelV1(ctx context.Context, impUID string, opts adapter.CancelOptions) (adapter.CancelResult, error) {
	token, err := g.v1AccessToken(ctx)
	if err != nil {
		return adapter.CancelResult{}, err
	}

	// V1 cancel accepts whichever identifiers the caller has.
	reqBody := map[string]any{"reason": opts.Reason}
	if impUID != "" {
		reqBody["imp_uid"] = impUID
	}
	if opts.MerchantUID != "" {
		reqBody["merchant_uid"] = opts.MerchantUID
	}
	if opts.Amount > 0 {
		reqBody["amount"] = opts.Amount
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return adapter.CancelResult{}, fmt.Errorf("failed to marshal cancel request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.V1BaseURL+"/payments/cancel", bytes.NewBuffer(jsonData))
	if err != nil {
		return adapter.CancelResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	var env v1Envelope
	if err := g.doJSON(req, &env); err != nil {
		return adapter.CancelResult{}, err
	}
	if env.Code != 0 {
		return adapter.CancelResult{}, fmt.Errorf("%w: v1 cancel failed: code %d, message: %s", domain.ErrGateway, env.Code, env.Message)
	}

	payload := adapter.GatewayPayload{}
	if len(env.Response) > 0 {
		if err := json.Unmarshal(env.Response, &payload); err != nil {
			return adapter.CancelResult{}, fmt.Errorf("failed to unmarshal v1 cancel response: %w", err)
		}
	}
	return adapter.CancelResult{Payload: payload}, nil
}

// v1AccessToken exchanges the static key/secret for a short-lived token.
func (g *PortOneGateway) v1AccessToken(ctx context.Context) (string, error) {
	if g.cfg.V1Key == "" || g.cfg.V1Secret == "" {
		return "", fmt.Errorf("%w: Server Configuration Error: V1 gateway credentials are not set", domain.ErrConfiguration)
	}

	jsonData, err := json.Marshal(map[string]string{
		"imp_key":    g.cfg.V1Key,
		"imp_secret": g.cfg.V1Secret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.V1BaseURL+"/users/getToken", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var env v1Envelope
	if err := g.doJSON(req, &env); err != nil {
		return "", err
	}
	if env.Code != 0 {
		return "", fmt.Errorf("%w: v1 token exchange failed: code %d, message: %s", domain.ErrGateway, env.Code, env.Message)
	}

	var tok v1Token
	if err := json.Unmarshal(env.Response, &tok); err != nil {
		return "", fmt.Errorf("failed to unmarshal token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: v1 token exchange returned empty token", domain.ErrGateway)
	}
	return tok.AccessToken, nil
}

func (g *PortOneGateway) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to reach gateway: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (g *PortOneGateway) doJSON(req *http.Request, out any) error {
	body, _, err := g.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	return nil
}

func v2ErrorFromBody(body []byte, status int, op string) error {
	var e v2Error
	if err := json.Unmarshal(body, &e); err != nil || e.Type == "" {
		return fmt.Errorf("%w: %s: http %d, body: %s", domain.ErrGateway, op, status, string(body))
	}
	return fmt.Errorf("%w: %s: %s (%s)", domain.ErrGateway, op, e.Message, e.Type)
}
