package exchange

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/tradecore/exchange/internal/order"
)

// OrderDTO is the wire/log projection of an order.Order. Price is null for
// Market orders.
type OrderDTO struct {
	OrderID    uint64    `json:"order_id"`
	Instrument string    `json:"instrument"`
	Status     string    `json:"status"`
	Amount     float64   `json:"amount"`
	Filled     float64   `json:"filled"`
	Price      *float64  `json:"price"`
	Side       string    `json:"side"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToJSON projects o into its external representation.
func ToJSON(o *order.Order) OrderDTO {
	return OrderDTO{
		OrderID:    o.ID,
		Instrument: o.Instrument.String(),
		Status:     o.StatusNow().String(),
		Amount:     o.Amount,
		Filled:     o.FilledAmount(),
		Price:      o.Price,
		Side:       o.Side.String(),
		Type:       o.Type.String(),
		CreatedAt:  o.CreatedAt,
	}
}

// MarshalZerologObject lets callers log an order structurally:
// log.Info().EmbedObject(dto).Msg("...").
func (d OrderDTO) MarshalZerologObject(e *zerolog.Event) {
	e.Uint64("order_id", d.OrderID).
		Str("instrument", d.Instrument).
		Str("status", d.Status).
		Float64("amount", d.Amount).
		Float64("filled", d.Filled).
		Str("side", d.Side).
		Str("type", d.Type)
	if d.Price != nil {
		e.Float64("price", *d.Price)
	}
}
