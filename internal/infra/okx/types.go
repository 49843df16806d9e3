package okx

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"depth_go/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	PublicWSURL = "wss://ws.okx.com:8443/ws/v5/public"
	RestBaseURL = "https://www.okx.com"

	channelBooks      = "books"
	channelPriceLimit = "price-limit"
	priceLimitPath    = "/api/v5/public/price-limit"

	maxRetries   = 10
	pingInterval = 25 * time.Second
	readTimeout  = 30 * time.Second
)

// wsRequest is an op frame sent to the server.
type wsRequest struct {
	Op   string  `json:"op"`
	Args []wsArg `json:"args"`
}

type wsArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// wsMessage is every frame the server pushes. Event frames carry Event
// (subscribe, unsubscribe, error); data frames carry Arg and Data.
type wsMessage struct {
	Event  string          `json:"event"`
	Code   string          `json:"code"`
	Msg    string          `json:"msg"`
	Arg    wsArg           `json:"arg"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type bookData struct {
	Asks      [][]string `json:"asks"`
	Bids      [][]string `json:"bids"`
	Ts        string     `json:"ts"`
	Checksum  *int64     `json:"checksum"`
	PrevSeqID *int64     `json:"prevSeqId"`
	SeqID     int64      `json:"seqId"`
}

type priceLimitData struct {
	InstID  string `json:"instId"`
	BuyLmt  string `json:"buyLmt"`
	SellLmt string `json:"sellLmt"`
	Ts      string `json:"ts"`
	Enabled bool   `json:"enabled"`
}

// apiResponse is the REST v5 envelope.
type apiResponse[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

// decodeBookUpdate converts one books data entry. Wire strings are kept
// verbatim in the levels for checksum reproduction.
func decodeBookUpdate(instID, action string, d bookData, receivedUnixM int64) (*domain.BookUpdate, error) {
	u := &domain.BookUpdate{
		InstrumentID:  instID,
		SequenceID:    d.SeqID,
		Checksum:      d.Checksum,
		ReceivedUnixM: receivedUnixM,
	}
	switch action {
	case "snapshot":
		u.Kind = domain.KindSnapshot
	case "update":
		u.Kind = domain.KindIncremental
		// -1 marks the first message after a (re)subscribe.
		if d.PrevSeqID != nil && *d.PrevSeqID >= 0 {
			prev := *d.PrevSeqID
			u.PrevSequenceID = &prev
		}
	default:
		return nil, fmt.Errorf("unknown books action %q", action)
	}

	var err error
	if u.Bids, err = decodeLevels(d.Bids); err != nil {
		return nil, err
	}
	if u.Asks, err = decodeLevels(d.Asks); err != nil {
		return nil, err
	}
	return u, nil
}

// decodeLevels reads [price, size, deprecated, orders] rows.
func decodeLevels(rows [][]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%w: row %v", domain.ErrMalformedLevel, row)
		}
		lvl, err := domain.ParsePriceLevel(row[0], row[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

func decodePriceLimit(d priceLimitData) (domain.PriceLimit, error) {
	buy, err := decimal.NewFromString(d.BuyLmt)
	if err != nil {
		return domain.PriceLimit{}, fmt.Errorf("buyLmt %q: %w", d.BuyLmt, err)
	}
	sell, err := decimal.NewFromString(d.SellLmt)
	if err != nil {
		return domain.PriceLimit{}, fmt.Errorf("sellLmt %q: %w", d.SellLmt, err)
	}
	l := domain.PriceLimit{
		InstrumentID: d.InstID,
		BuyLimit:     buy,
		SellLimit:    sell,
		Enabled:      d.Enabled,
	}
	if ms, err := strconv.ParseInt(d.Ts, 10, 64); err == nil {
		l.AsOf = time.UnixMilli(ms)
	}
	return l, nil
}
