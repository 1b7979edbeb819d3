package paylink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/ridelinkhq/ridelink-backend/pkg/config"
	pkgerrors "github.com/ridelinkhq/ridelink-backend/pkg/errors"
	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	defaultCurrency = "USD"
)

var (
	errAccessTokenRequired   = errors.New("paylink access token is required")
	errLocationRequired      = errors.New("paylink location id is required")
	errWebhookSecretRequired = errors.New("paylink webhook secret is required")
	errInvalidEnv            = fmt.Errorf("paylink environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired        = errors.New("paylink logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Client implements Gateway on top of Square hosted payment links, with
// centralized auth, logging, idempotency, and error mapping.
type Client struct {
	sdk           *sqclient.Client
	accessToken   string
	locationID    string
	environment   string
	webhookSecret string
	baseURL       string
	logger        *logger.Logger
}

var _ Gateway = (*Client)(nil)

// NewClient initializes the payment-link wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PaylinkConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errLocationRequired
	}

	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	baseURL := baseURLs[env]
	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURL),
		sqoption.WithToken(accessToken),
	)

	c := &Client{
		sdk:           sdk,
		accessToken:   accessToken,
		locationID:    locationID,
		environment:   env,
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
		logger:        logg,
	}

	logg.Info(ctx, "paylink client initialized")
	return c, nil
}

// Environment reports the normalized processor environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signature secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// NewIdempotencyKey returns a unique key for processor operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "rl"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// CreateLink mints a hosted payment link for the given amount.
func (c *Client) CreateLink(ctx context.Context, params CreateLinkParams) (*Link, error) {
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment link amount must be positive")
	}

	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	req := &sqcheckout.CreatePaymentLinkRequest{
		IdempotencyKey: ptrString(c.ensureIdempotencyKey("paylink.create", params.IdempotencyKey)),
		QuickPay: &sq.QuickPay{
			Name:       params.Description,
			LocationID: c.locationID,
			PriceMoney: moneyPtr(params.AmountCents, currency),
		},
	}
	if trimmed := strings.TrimSpace(params.ReferenceID); trimmed != "" {
		req.PaymentNote = ptrString(trimmed)
	}

	c.log(ctx, "request", "create_payment_link", map[string]any{
		"location_id":  c.locationID,
		"amount":       params.AmountCents,
		"reference_id": params.ReferenceID,
	})

	resp, err := c.sdk.Checkout.PaymentLinks.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_payment_link", map[string]any{"error": err.Error()})
		return nil, c.mapProcessorError(err, "create payment link")
	}

	link := resp.GetPaymentLink()
	out := &Link{
		ID:        stringValue(link.GetID()),
		OrderID:   stringValue(link.GetOrderID()),
		URL:       stringValue(link.GetURL()),
		CreatedAt: time.Now().UTC(),
	}
	c.log(ctx, "response", "create_payment_link", map[string]any{
		"payment_link_id": out.ID,
		"order_id":        out.OrderID,
	})
	return out, nil
}

// PollStatus fetches the link's order and reports whether it has been paid.
// Used by the reconcile job as a safety net when webhooks are missed.
func (c *Client) PollStatus(ctx context.Context, linkID string) (LinkStatus, error) {
	if strings.TrimSpace(linkID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment link id is required")
	}

	c.log(ctx, "request", "get_payment_link", map[string]any{"payment_link_id": linkID})

	linkResp, err := c.sdk.Checkout.PaymentLinks.Get(ctx, &sqcheckout.GetPaymentLinksRequest{ID: linkID})
	if err != nil {
		c.log(ctx, "error", "get_payment_link", map[string]any{"error": err.Error()})
		return "", c.mapProcessorError(err, "get payment link")
	}

	orderID := stringValue(linkResp.GetPaymentLink().GetOrderID())
	if orderID == "" {
		return LinkStatusPending, nil
	}

	orderResp, err := c.sdk.Orders.Get(ctx, &sq.GetOrdersRequest{OrderID: orderID})
	if err != nil {
		c.log(ctx, "error", "get_order", map[string]any{"error": err.Error()})
		return "", c.mapProcessorError(err, "get order")
	}

	status := statusFromOrder(orderResp.GetOrder())
	c.log(ctx, "response", "get_payment_link", map[string]any{
		"payment_link_id": linkID,
		"status":          string(status),
	})
	return status, nil
}

// DeleteLink removes a hosted payment link so customers can no longer pay it.
func (c *Client) DeleteLink(ctx context.Context, linkID string) error {
	if strings.TrimSpace(linkID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment link id is required")
	}

	c.log(ctx, "request", "delete_payment_link", map[string]any{"payment_link_id": linkID})

	if _, err := c.sdk.Checkout.PaymentLinks.Delete(ctx, &sqcheckout.DeletePaymentLinksRequest{ID: linkID}); err != nil {
		c.log(ctx, "error", "delete_payment_link", map[string]any{"error": err.Error()})
		return c.mapProcessorError(err, "delete payment link")
	}

	c.log(ctx, "response", "delete_payment_link", map[string]any{"payment_link_id": linkID})
	return nil
}

func statusFromOrder(order *sq.Order) LinkStatus {
	if order == nil {
		return LinkStatusPending
	}
	if state := order.GetState(); state != nil {
		switch *state {
		case sq.OrderStateCompleted:
			return LinkStatusPaid
		case sq.OrderStateCanceled:
			return LinkStatusFailed
		}
	}
	for _, tender := range order.GetTenders() {
		if tender != nil && tender.GetPaymentID() != nil {
			return LinkStatusPaid
		}
	}
	return LinkStatusPending
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("paylink %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("paylink %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapProcessorError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, sqErr := range c.extractProcessorErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused {
				code = pkgerrors.CodeIdempotency
				break
			}
			if sqErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeUnauthorized
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("paylink %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("paylink %s failed", op))
}

func (c *Client) extractProcessorErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = defaultCurrency
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidEnv
	}
}
