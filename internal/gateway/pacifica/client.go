package pacifica

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"main/internal/gateway"
	"main/internal/model"
	"main/pkg/exception"
)

const defaultBaseURL = "https://api.pacifica.fi/api/v1"

// Config describes the REST client. Request signing lives outside this
// package; Headers carries whatever auth material the deployment needs.
type Config struct {
	BaseURL string
	Account string
	Timeout time.Duration
	Headers map[string]string
}

// Client implements gateway.Exchange against the venue REST API.
type Client struct {
	cfg  Config
	http *resty.Client
}

var _ gateway.Exchange = (*Client)(nil)

// New creates a venue REST client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	http := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		http.SetHeader(k, v)
	}

	return &Client{cfg: cfg, http: http}
}

type venueResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		OrderID int64 `json:"order_id"`
	} `json:"data"`
}

// PlaceOrder submits a limit order and returns the venue order id.
func (c *Client) PlaceOrder(ctx context.Context, req gateway.OrderRequest) (string, error) {
	tif := req.TIF
	if tif == "" {
		tif = "GTC"
	}
	body := map[string]any{
		"symbol":      req.Symbol,
		"price":       formatFloat(req.Price),
		"amount":      formatFloat(req.Quantity),
		"side":        req.Side.String(),
		"reduce_only": req.ReduceOnly,
		"tif":         tif,
	}

	var out venueResponse
	resp, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(&out).Post("/orders/create")
	if err != nil {
		return "", errors.Wrap(err, "place order").With("symbol", req.Symbol)
	}
	if err := c.check(resp, out); err != nil {
		return "", err
	}
	if out.Data.OrderID == 0 {
		return "", exception.ErrEmptyResponseOrderID
	}
	return strconv.FormatInt(out.Data.OrderID, 10), nil
}

// CancelOrder cancels a single order by venue id.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return errors.Wrap(err, "parse order id").With("orderID", orderID)
	}
	body := map[string]any{
		"symbol":   symbol,
		"order_id": id,
	}

	var out venueResponse
	resp, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(&out).Post("/orders/cancel")
	if err != nil {
		return errors.Wrap(err, "cancel order").With("symbol", symbol).With("orderID", orderID)
	}
	return c.check(resp, out)
}

// CancelAllOrders cancels every resting order for the instrument.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	body := map[string]any{
		"symbol":              symbol,
		"all_symbols":         false,
		"exclude_reduce_only": false,
	}

	var out venueResponse
	resp, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(&out).Post("/orders/cancel_all")
	if err != nil {
		return errors.Wrap(err, "cancel all orders").With("symbol", symbol)
	}
	return c.check(resp, out)
}

type marketsResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    []struct {
		Symbol       string          `json:"symbol"`
		TickSize     decimal.Decimal `json:"tick_size"`
		LotSize      decimal.Decimal `json:"lot_size"`
		MinOrderSize decimal.Decimal `json:"min_order_size"`
	} `json:"data"`
}

// SymbolRules fetches instrument precision and size constraints from
// the venue market metadata.
func (c *Client) SymbolRules(ctx context.Context, symbol string) (model.SymbolRules, error) {
	var out marketsResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/markets")
	if err != nil {
		return model.SymbolRules{}, errors.Wrap(err, "get markets")
	}
	if resp.StatusCode() >= 400 || !out.Success {
		return model.SymbolRules{}, errors.Wrap(exception.ErrRequestFailed, "get markets").
			With("status", resp.StatusCode()).With("error", out.Error)
	}

	for _, market := range out.Data {
		if market.Symbol != symbol {
			continue
		}
		tick := market.TickSize.String()
		step := market.LotSize.String()
		return model.SymbolRules{
			TickSize:          model.DecimalFloat(market.TickSize),
			StepSize:          model.DecimalFloat(market.LotSize),
			PricePrecision:    precisionOf(tick),
			QuantityPrecision: precisionOf(step),
			MinNotional:       model.DecimalFloat(market.MinOrderSize),
		}, nil
	}
	return model.SymbolRules{}, errors.Wrap(exception.ErrSymbolRulesNotFound, "get markets").With("symbol", symbol)
}

type accountResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Balance          decimal.Decimal `json:"balance"`
		AvailableToSpend decimal.Decimal `json:"available_to_spend"`
	} `json:"data"`
}

type positionsResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    []struct {
		Symbol     string          `json:"symbol"`
		Size       decimal.Decimal `json:"size"`
		EntryPrice decimal.Decimal `json:"entry_price"`
	} `json:"data"`
}

// AccountSnapshot fetches available balance and the signed position for
// one instrument.
func (c *Client) AccountSnapshot(ctx context.Context, symbol string) (gateway.Snapshot, error) {
	var account accountResponse
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("account", c.cfg.Account).
		SetResult(&account).
		Get("/account")
	if err != nil {
		return gateway.Snapshot{}, errors.Wrap(err, "get account")
	}
	if resp.StatusCode() >= 400 || !account.Success {
		return gateway.Snapshot{}, errors.Wrap(exception.ErrAccountDataUnavailable, "get account").
			With("status", resp.StatusCode()).With("error", account.Error)
	}

	snapshot := gateway.Snapshot{Balance: model.DecimalFloat(account.Data.AvailableToSpend)}

	var positions positionsResponse
	resp, err = c.http.R().SetContext(ctx).
		SetQueryParam("account", c.cfg.Account).
		SetQueryParam("symbol", symbol).
		SetResult(&positions).
		Get("/positions")
	if err != nil {
		return gateway.Snapshot{}, errors.Wrap(err, "get positions")
	}
	if resp.StatusCode() >= 400 || !positions.Success {
		return gateway.Snapshot{}, errors.Wrap(exception.ErrAccountDataUnavailable, "get positions").
			With("status", resp.StatusCode()).With("error", positions.Error)
	}

	for _, position := range positions.Data {
		if position.Symbol == symbol {
			snapshot.Position = model.DecimalFloat(position.Size)
			snapshot.EntryPrice = model.DecimalFloat(position.EntryPrice)
			break
		}
	}
	return snapshot, nil
}

// SetLeverage updates the instrument leverage.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	body := map[string]any{
		"symbol":   symbol,
		"leverage": leverage,
	}

	var out venueResponse
	resp, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(&out).Post("/account/leverage")
	if err != nil {
		return errors.Wrap(err, "set leverage").With("symbol", symbol)
	}
	return c.check(resp, out)
}

func (c *Client) check(resp *resty.Response, out venueResponse) error {
	if resp.StatusCode() < 400 && out.Success {
		return nil
	}
	return exception.ClassifyOrderError(resp.StatusCode(), out.Error)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func precisionOf(size string) int {
	idx := strings.IndexByte(size, '.')
	if idx < 0 {
		return 0
	}
	return len(strings.TrimRight(size[idx+1:], "0"))
}
