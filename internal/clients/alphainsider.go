package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

const (
	DefaultAlphaInsiderURL = "https://alphainsider.com/api"
	defaultCallTimeout     = 5 * time.Second
	defaultRateLimit       = 10
)

// AlphaInsiderClient talks to the AlphaInsider strategy API.
// Every call is attempted once and bounded by the client timeout.
type AlphaInsiderClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// AlphaInsiderOption configures the client.
type AlphaInsiderOption func(*AlphaInsiderClient)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) AlphaInsiderOption {
	return func(c *AlphaInsiderClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64) AlphaInsiderOption {
	return func(c *AlphaInsiderClient) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) AlphaInsiderOption {
	return func(c *AlphaInsiderClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewAlphaInsiderClient creates a client for the API rooted at baseURL.
func NewAlphaInsiderClient(baseURL, apiKey string, opts ...AlphaInsiderOption) *AlphaInsiderClient {
	if baseURL == "" {
		baseURL = DefaultAlphaInsiderURL
	}
	c := &AlphaInsiderClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultCallTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the common response wrapper of the API.
type envelope struct {
	Response json.RawMessage `json:"response"`
	Status   string          `json:"status,omitempty"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type strategyDTO struct {
	StrategyID string `json:"strategy_id"`
	Type       string `json:"type"`
	Name       string `json:"name"`
}

type strategyValueDTO struct {
	StrategyID    string          `json:"strategy_id"`
	StrategyValue decimal.Decimal `json:"strategy_value"`
}

type stockDTO struct {
	StockID string              `json:"stock_id"`
	Stock   string              `json:"stock"`
	Symbol  string              `json:"symbol"`
	Last    decimal.NullDecimal `json:"last"`
}

type positionDTO struct {
	StockID string          `json:"stock_id"`
	Symbol  string          `json:"symbol"`
	Stock   string          `json:"stock"`
	Amount  decimal.Decimal `json:"amount"`
}

type orderDTO struct {
	OrderID string `json:"order_id"`
	StockID string `json:"stock_id"`
}

type deleteOrderRequest struct {
	StrategyID string `json:"strategy_id"`
	OrderID    string `json:"order_id"`
}

type newOrderRequest struct {
	StrategyID string `json:"strategy_id"`
	domain.ValidatedOrder
}

// GetStrategy fetches strategy metadata.
func (c *AlphaInsiderClient) GetStrategy(ctx context.Context, strategyID string) (domain.Strategy, error) {
	const op = "getStrategies"

	var strategies []strategyDTO
	if err := c.get(ctx, op, url.Values{"strategy_id": {strategyID}}, &strategies); err != nil {
		return domain.Strategy{}, err
	}
	if len(strategies) == 0 {
		return domain.Strategy{}, callError(op, errors.Errorf("strategy %s not found", strategyID))
	}

	s := strategies[0]
	return domain.Strategy{ID: s.StrategyID, Kind: domain.StrategyKind(s.Type), Name: s.Name}, nil
}

// GetStrategyValue fetches the current strategy valuation.
func (c *AlphaInsiderClient) GetStrategyValue(ctx context.Context, strategyID string) (domain.StrategyValuation, error) {
	const op = "getStrategyValues"

	var values []strategyValueDTO
	if err := c.get(ctx, op, url.Values{"strategy_id": {strategyID}}, &values); err != nil {
		return domain.StrategyValuation{}, err
	}
	if len(values) == 0 {
		return domain.StrategyValuation{}, callError(op, errors.Errorf("no value for strategy %s", strategyID))
	}

	return domain.StrategyValuation{TotalValue: values[0].StrategyValue}, nil
}

// GetInstruments looks up all keys in a single request.
func (c *AlphaInsiderClient) GetInstruments(ctx context.Context, keys []string) ([]domain.Instrument, error) {
	const op = "getStocks"

	var stocks []stockDTO
	if err := c.get(ctx, op, url.Values{"stock_id": keys}, &stocks); err != nil {
		return nil, err
	}

	instruments := make([]domain.Instrument, 0, len(stocks))
	for _, s := range stocks {
		instrument := domain.Instrument{
			InstrumentID: s.StockID,
			BaseSymbol:   s.Stock,
		}
		if s.Last.Valid {
			instrument.LastPrice = s.Last.Decimal
		}
		instruments = append(instruments, instrument)
	}
	return instruments, nil
}

// GetPositions fetches current holdings of the strategy.
func (c *AlphaInsiderClient) GetPositions(ctx context.Context, strategyID string) ([]domain.CurrentPosition, error) {
	const op = "getPositions"

	var positions []positionDTO
	if err := c.get(ctx, op, url.Values{"strategy_id": {strategyID}}, &positions); err != nil {
		return nil, err
	}

	result := make([]domain.CurrentPosition, 0, len(positions))
	for _, p := range positions {
		// "symbol" is the venue ticker (ETH-USD), "stock" the base asset (ETH)
		symbol := p.Stock
		if symbol == "" {
			symbol = p.Symbol
		}
		result = append(result, domain.CurrentPosition{
			InstrumentID: p.StockID,
			Symbol:       symbol,
			Amount:       p.Amount,
		})
	}
	return result, nil
}

// GetOpenOrders fetches unexecuted orders of the strategy.
func (c *AlphaInsiderClient) GetOpenOrders(ctx context.Context, strategyID string) ([]domain.OpenOrder, error) {
	const op = "getOrders"

	var orders []orderDTO
	if err := c.get(ctx, op, url.Values{"strategy_id": {strategyID}}, &orders); err != nil {
		return nil, err
	}

	result := make([]domain.OpenOrder, 0, len(orders))
	for _, o := range orders {
		result = append(result, domain.OpenOrder{OrderID: o.OrderID, InstrumentID: o.StockID})
	}
	return result, nil
}

// DeleteOrder cancels a single open order.
func (c *AlphaInsiderClient) DeleteOrder(ctx context.Context, strategyID, orderID string) error {
	return c.post(ctx, "deleteOrder", deleteOrderRequest{StrategyID: strategyID, OrderID: orderID})
}

// SubmitOrder places a validated order. The order is not tracked afterwards.
func (c *AlphaInsiderClient) SubmitOrder(ctx context.Context, strategyID string, order domain.ValidatedOrder) error {
	return c.post(ctx, "newOrder", newOrderRequest{StrategyID: strategyID, ValidatedOrder: order})
}

func (c *AlphaInsiderClient) get(ctx context.Context, op string, params url.Values, out any) error {
	endpoint := c.baseURL + "/" + op
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return callError(op, errors.Wrap(err, "failed to create HTTP request"))
	}

	env, err := c.do(req)
	if err != nil {
		return callError(op, err)
	}
	if len(env.Response) == 0 || string(env.Response) == "null" {
		return callError(op, errors.New("response is missing"))
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return callError(op, errors.Wrap(err, "malformed response"))
	}
	return nil
}

func (c *AlphaInsiderClient) post(ctx context.Context, op string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return callError(op, errors.Wrap(err, "failed to marshal request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+op, bytes.NewReader(body))
	if err != nil {
		return callError(op, errors.Wrap(err, "failed to create HTTP request"))
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(req); err != nil {
		return callError(op, err)
	}
	return nil
}

func (c *AlphaInsiderClient) do(req *http.Request) (*envelope, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	if env.Error != "" {
		return nil, fmt.Errorf("API error: %s", env.Error)
	}
	if env.Status == "error" {
		return nil, fmt.Errorf("API error: %s", env.Message)
	}

	return &env, nil
}

func callError(op string, err error) error {
	return &domain.BrokerCallError{Op: op, Err: err}
}
