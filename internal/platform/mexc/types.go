package mexc

import (
	"strconv"
	"time"

	"scalpbot/internal/domain"
)

// orderResponse is the exchange's JSON representation of an order, shared by
// the place, cancel, and query endpoints. Numeric amounts arrive as strings.
type orderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       string `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	Type          string `json:"type"`
	Side          string `json:"side"`
	Status        string `json:"status"`
	TransactTime  int64  `json:"transactTime"`
}

// toDomain converts the wire order into the engine's Order type.
func (r orderResponse) toDomain() domain.Order {
	price, _ := strconv.ParseFloat(r.Price, 64)
	qty, _ := strconv.ParseFloat(r.OrigQty, 64)

	createdAt := time.Now().UTC()
	if r.TransactTime > 0 {
		createdAt = time.UnixMilli(r.TransactTime).UTC()
	}

	status := domain.OrderStatus(r.Status)
	if r.Status == "" {
		status = domain.OrderStatusNew
	}

	return domain.Order{
		ID:            r.OrderID,
		ClientOrderID: r.ClientOrderID,
		Symbol:        r.Symbol,
		Side:          domain.OrderSide(r.Side),
		Type:          domain.OrderType(r.Type),
		Quantity:      qty,
		Price:         price,
		Status:        status,
		CreatedAt:     createdAt,
	}
}

// tickerResponse is the payload of GET /api/v3/ticker/price.
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// accountResponse is the payload of GET /api/v3/account.
type accountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

// apiError is the exchange's error envelope for non-2xx responses.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// TradeTick is one public trade from the websocket deals stream.
type TradeTick struct {
	Symbol   string
	Price    float64
	Quantity float64
	Time     time.Time
}
