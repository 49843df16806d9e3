package okx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"depth_go/internal/domain"

	"github.com/go-resty/resty/v2"
)

var _ domain.PriceLimitSource = (*Client)(nil)

// Client is the OKX v5 REST API client (boundary layer).
type Client struct {
	http   *resty.Client
	signer *Signer
	logger *slog.Logger
}

// NewClient creates a REST client for baseURL. signer may be nil for
// public endpoints.
func NewClient(baseURL string, signer *Signer) *Client {
	if baseURL == "" {
		baseURL = RestBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json"),
		signer: signer,
		logger: slog.Default().With("module", "okx_client"),
	}
}

// GetPriceLimit fetches the current buy/sell price limit of an instrument.
func (c *Client) GetPriceLimit(ctx context.Context, instrumentID string) (domain.PriceLimit, error) {
	var result apiResponse[priceLimitData]

	query := url.Values{"instId": {instrumentID}}
	req := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		SetResult(&result).
		SetError(&result)
	req.SetHeaders(c.signer.GenerateHeaders(http.MethodGet, priceLimitPath+"?"+query.Encode(), ""))

	resp, err := req.Get(priceLimitPath)
	if err != nil {
		return domain.PriceLimit{}, domain.NewNetworkError("get price limit", err)
	}

	if resp.IsError() {
		apiErr := fmt.Errorf("okx api error: status=%d body=%s", resp.StatusCode(), resp.String())
		if resp.StatusCode() >= http.StatusInternalServerError || resp.StatusCode() == http.StatusTooManyRequests {
			return domain.PriceLimit{}, domain.NewNetworkError("get price limit", apiErr)
		}
		return domain.PriceLimit{}, domain.NewFatalNetworkError("get price limit", apiErr)
	}

	if result.Code != "0" { // OKX success code
		return domain.PriceLimit{}, fmt.Errorf("okx business error: code=%s msg=%s", result.Code, result.Msg)
	}
	if len(result.Data) == 0 {
		return domain.PriceLimit{}, fmt.Errorf("%w: no price limit for %s", domain.ErrInvalidInstrument, instrumentID)
	}

	limit, err := decodePriceLimit(result.Data[0])
	if err != nil {
		return domain.PriceLimit{}, fmt.Errorf("decode price limit: %w", err)
	}
	if limit.InstrumentID == "" {
		limit.InstrumentID = instrumentID
	}
	c.logger.Debug("Price limit fetched",
		slog.String("inst_id", instrumentID),
		slog.String("buy_limit", limit.BuyLimit.String()),
		slog.Bool("enabled", limit.Enabled))
	return limit, nil
}
