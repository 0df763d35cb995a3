package feed

import (
	"strconv"
	"time"

	"github.com/yanun0323/decimal"

	"main/internal/model"
)

// estimatedHalfSpread approximates best bid/ask from the venue mid,
// which only publishes mid and mark on the prices stream.
const estimatedHalfSpread = 0.0002

type subscribeRequest struct {
	Method string          `json:"method"`
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Source  string `json:"source"`
	Account string `json:"account,omitempty"`
}

// envelope carries just the stream channel, enough to dispatch a
// message before decoding the full payload.
type envelope struct {
	Channel string `json:"channel"`
}

type priceMessage struct {
	Channel string       `json:"channel"`
	Data    []priceEntry `json:"data"`
}

type priceEntry struct {
	Symbol string          `json:"symbol"`
	Mid    decimal.Decimal `json:"mid"`
	Mark   decimal.Decimal `json:"mark"`
}

func (e priceEntry) tick(at time.Time) model.PriceTick {
	mid := model.DecimalFloat(e.Mid)
	return model.PriceTick{
		Symbol: e.Symbol,
		Bid:    mid * (1 - estimatedHalfSpread),
		Ask:    mid * (1 + estimatedHalfSpread),
		Mid:    mid,
		Mark:   model.DecimalFloat(e.Mark),
		At:     at,
	}
}

type accountInfoMessage struct {
	Channel string           `json:"channel"`
	Data    accountInfoEntry `json:"data"`
}

type accountInfoEntry struct {
	Available decimal.Decimal `json:"as"`
}

type positionsMessage struct {
	Channel string          `json:"channel"`
	Data    []positionEntry `json:"data"`
}

type positionEntry struct {
	Symbol     string          `json:"s"`
	Amount     decimal.Decimal `json:"a"`
	EntryPrice decimal.Decimal `json:"p"`
	Direction  string          `json:"d"`
}

func (e positionEntry) normalize() model.PositionEvent {
	signed := model.DecimalFloat(e.Amount)
	if model.SideFromString(e.Direction) == model.SideAsk {
		signed = -signed
	}
	return model.PositionEvent{
		Symbol:     e.Symbol,
		Signed:     signed,
		EntryPrice: model.DecimalFloat(e.EntryPrice),
	}
}

type ordersMessage struct {
	Channel string       `json:"channel"`
	Data    []orderEntry `json:"data"`
}

type orderEntry struct {
	OrderID int64           `json:"i"`
	Symbol  string          `json:"s"`
	Side    string          `json:"d"`
	Price   decimal.Decimal `json:"p"`
	Amount  decimal.Decimal `json:"a"`
	Filled  decimal.Decimal `json:"f"`
}

func (e orderEntry) normalize() model.OrderEvent {
	return model.OrderEvent{
		OrderID: strconv.FormatInt(e.OrderID, 10),
		Symbol:  e.Symbol,
		Side:    model.SideFromString(e.Side),
		Price:   model.DecimalFloat(e.Price),
		Amount:  model.DecimalFloat(e.Amount),
		Filled:  model.DecimalFloat(e.Filled),
	}
}
