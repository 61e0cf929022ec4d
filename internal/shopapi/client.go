package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TokenSource supplies the bearer credential for authenticated calls.
// An empty token means the caller is anonymous.
type TokenSource interface {
	Token() string
}

type Options struct {
	BaseURL string
	Tokens  TokenSource
	// HTTPClient defaults to a client with an instrumented transport and no timeout.
	HTTPClient         *http.Client
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
	Logger             logrus.FieldLogger
}

// Client talks to the shop's REST API. It never retries; a failed call is
// returned to the caller, who decides whether to try again.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*response]
	log     logrus.FieldLogger
}

// response is a fully read backend reply.
type response struct {
	status int
	body   []byte
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	maxFailures := opts.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	c := &Client{
		baseURL: opts.BaseURL,
		tokens:  opts.Tokens,
		http:    httpClient,
		log:     log.WithField("component", "shopapi"),
	}
	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:    "shop-backend",
		Timeout: opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Client errors are answers, not outages.
		IsSuccessful: func(err error) bool {
			if errors.Is(err, context.Canceled) {
				return true
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	})
	return c
}

// SetTokenSource replaces the credential source, e.g. once the session holder exists.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.do(ctx, http.MethodGet, "/api/products", nil, false, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	if err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, false, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var result LoginResult
	req := LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/users/login", req, false, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/api/users/profile", nil, true, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodPut, "/api/users/profile", update, true, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, true, &o); err != nil {
		return nil, err
	}
	if o.ID == "" {
		return nil, errors.New("backend accepted the order but returned no id")
	}
	return &o, nil
}

func (c *Client) PayOrder(ctx context.Context, orderID string, result PaymentResult) (*Order, error) {
	var o Order
	path := "/api/orders/" + url.PathEscape(orderID) + "/pay"
	if err := c.do(ctx, http.MethodPut, path, result, true, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, true, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(orderID), nil, true, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	var pi PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/api/payment/create-payment-intent", req, true, &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

func (c *Client) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) error {
	return c.do(ctx, http.MethodPost, "/api/payment/confirm-payment", req, true, nil)
}

// do sends one request through the circuit breaker and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path string, body any, authenticated bool, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	token := ""
	if authenticated {
		if c.tokens != nil {
			token = c.tokens.Token()
		}
		if token == "" {
			return &APIError{Status: http.StatusUnauthorized, Message: "not logged in"}
		}
	}

	requestID := uuid.New().String()
	log := c.log.WithFields(logrus.Fields{"method": method, "path": path, "request_id": requestID})
	start := time.Now()

	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.roundTrip(ctx, method, path, payload, token, requestID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		log.Warn("backend call rejected by open circuit")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		log.WithError(err).Debug("backend call failed")
		return err
	}
	log.WithFields(logrus.Fields{"status": resp.status, "duration": time.Since(start)}).Debug("backend call")

	if out == nil || len(resp.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, token, requestID string) (*response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		return nil, &APIError{Status: httpResp.StatusCode, Message: msg}
	}
	return &response{status: httpResp.StatusCode, body: data}, nil
}
