package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite returns the closing side for a position entered on this side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType indicates how the order is priced.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus tracks the order lifecycle as reported by the exchange.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// IsTerminal reports whether the status is final. A terminal order no longer
// belongs in the tracker.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// Order represents an order accepted by the exchange. ID is assigned by the
// exchange and is the tracker's map key.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      float64
	Price         float64 // zero for MARKET orders
	Status        OrderStatus
	CreatedAt     time.Time
}

// OrderSpec describes an order to be placed. Quantity is in base units;
// Price is required for LIMIT orders and ignored for MARKET orders.
type OrderSpec struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      float64
	Price         float64
	ClientOrderID string
}

// Validate checks the spec for structural errors before any I/O happens.
// It returns ErrInvalidRequest wrapped with the first failing field.
func (s OrderSpec) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("%w: symbol is empty", ErrInvalidRequest)
	}
	switch s.Side {
	case OrderSideBuy, OrderSideSell:
	default:
		return fmt.Errorf("%w: side %q", ErrInvalidRequest, s.Side)
	}
	switch s.Type {
	case OrderTypeMarket, OrderTypeLimit:
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidRequest, s.Type)
	}
	if s.Quantity <= 0 {
		return fmt.Errorf("%w: quantity %v", ErrInvalidRequest, s.Quantity)
	}
	if s.Type == OrderTypeLimit && s.Price <= 0 {
		return fmt.Errorf("%w: limit order without price", ErrInvalidRequest)
	}
	return nil
}
