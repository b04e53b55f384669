package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"scalpbot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pingPeriod sends protocol PING messages at this interval. MEXC drops
	// connections idle for more than 60 seconds.
	pingPeriod = 25 * time.Second

	// readWait is the time allowed between incoming messages before the
	// connection is considered dead.
	readWait = 60 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// dealsChannel returns the public deals stream name for a symbol.
func dealsChannel(symbol string) string {
	return "spot@public.deals.v3.api@" + strings.ToUpper(symbol)
}

// TradeHandler is called for every public trade received on a deals stream.
type TradeHandler func(TradeTick)

// wsCommand is the subscription envelope the MEXC websocket accepts.
type wsCommand struct {
	Method string   `json:"method"`
	Params []string `json:"params,omitempty"`
}

// dealsMessage is the envelope of a public deals push.
type dealsMessage struct {
	Channel string `json:"c"`
	Symbol  string `json:"s"`
	Data    struct {
		Deals []struct {
			Price    string `json:"p"`
			Quantity string `json:"v"`
			Time     int64  `json:"t"`
		} `json:"deals"`
	} `json:"d"`
}

// WSClient is a websocket client for the MEXC public deals stream. It manages
// the connection lifecycle, subscriptions, and dispatches trades to
// registered handlers.
type WSClient struct {
	wsURL string

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	// Symbols to restore on reconnect.
	symbols []string

	// writeMu serializes frame writes; gorilla allows one writer per conn.
	writeMu sync.Mutex

	tradeHandlers []TradeHandler
	handlerMu     sync.RWMutex

	// reconnectBase is the initial backoff delay between redial attempts.
	reconnectBase time.Duration

	// reconnecting ensures a single redial loop at a time.
	reconnecting atomic.Bool

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a websocket client for the given endpoint, e.g.
// "wss://wbs-api.mexc.com/ws".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL:         wsURL,
		reconnectBase: reconnectDelay,
		done:          make(chan struct{}),
	}
}

// Connect establishes the websocket connection and restores any prior
// subscriptions.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("mexc/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("mexc/ws: connect: %w", err)
	}

	// A lingering previous connection would keep stale loops alive.
	if w.conn != nil {
		_ = w.conn.Close()
	}

	// connDone ties the read and ping loops to this connection; when the
	// read loop tears it down, the ping loop for it stops too.
	connDone := make(chan struct{})
	w.conn = conn
	conn.SetReadDeadline(time.Now().Add(readWait))

	go w.readLoop(conn, connDone)
	go w.pingLoop(conn, connDone)

	if len(w.symbols) > 0 {
		if err := w.writeCommand(conn, wsCommand{
			Method: "SUBSCRIPTION",
			Params: channelsFor(w.symbols),
		}); err != nil {
			return fmt.Errorf("mexc/ws: restore subscription: %w", err)
		}
	}

	return nil
}

// Subscribe subscribes to the public deals stream for the given symbols.
func (w *WSClient) Subscribe(ctx context.Context, symbols []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("mexc/ws: not connected")
	}

	if err := w.writeCommand(w.conn, wsCommand{
		Method: "SUBSCRIPTION",
		Params: channelsFor(symbols),
	}); err != nil {
		return fmt.Errorf("mexc/ws: subscribe: %w", err)
	}

	// Track for reconnection.
	w.symbols = append(w.symbols, symbols...)

	return nil
}

// Unsubscribe removes the deals stream subscriptions for the given symbols.
func (w *WSClient) Unsubscribe(ctx context.Context, symbols []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("mexc/ws: not connected")
	}

	if err := w.writeCommand(w.conn, wsCommand{
		Method: "UNSUBSCRIPTION",
		Params: channelsFor(symbols),
	}); err != nil {
		return fmt.Errorf("mexc/ws: unsubscribe: %w", err)
	}

	dropped := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		dropped[strings.ToUpper(s)] = struct{}{}
	}
	filtered := w.symbols[:0]
	for _, s := range w.symbols {
		if _, found := dropped[strings.ToUpper(s)]; !found {
			filtered = append(filtered, s)
		}
	}
	w.symbols = filtered

	return nil
}

// OnTrade registers a handler that is called for every trade received on a
// subscribed deals stream.
func (w *WSClient) OnTrade(handler TradeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.tradeHandlers = append(w.tradeHandlers, handler)
}

// Close shuts down the websocket connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		w.writeMu.Lock()
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		w.writeMu.Unlock()
		return w.conn.Close()
	}

	return nil
}

// writeCommand marshals and sends a JSON command on the given connection.
func (w *WSClient) writeCommand(conn *websocket.Conn, cmd wsCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads messages from the connection it was started with and
// dispatches trades to handlers. On disconnect it tears down its own
// connection, then kicks off a reconnect; the replacement connection gets
// its own read and ping loops.
func (w *WSClient) readLoop(conn *websocket.Conn, connDone chan struct{}) {
	defer close(connDone)
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}

			go w.reconnect()
			return
		}

		conn.SetReadDeadline(time.Now().Add(readWait))
		w.handleMessage(message)
	}
}

// pingLoop sends the protocol-level PING command the MEXC websocket expects.
// It is bound to one connection and exits when that connection is torn down.
func (w *WSClient) pingLoop(conn *websocket.Conn, connDone chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-connDone:
			return
		case <-ticker.C:
			if err := w.writeCommand(conn, wsCommand{Method: "PING"}); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw push and fans trades out to the handlers.
// Acknowledgement and PONG frames carry no "d" payload and are dropped.
func (w *WSClient) handleMessage(raw []byte) {
	var msg dealsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return // Silently drop unparseable messages.
	}

	if !strings.HasPrefix(msg.Channel, "spot@public.deals") || len(msg.Data.Deals) == 0 {
		return
	}

	w.handlerMu.RLock()
	handlers := w.tradeHandlers
	w.handlerMu.RUnlock()

	for _, d := range msg.Data.Deals {
		price, err := strconv.ParseFloat(d.Price, 64)
		if err != nil {
			continue
		}
		qty, _ := strconv.ParseFloat(d.Quantity, 64)

		tick := TradeTick{
			Symbol:   msg.Symbol,
			Price:    price,
			Quantity: qty,
			Time:     time.UnixMilli(d.Time).UTC(),
		}

		for _, h := range handlers {
			h(tick)
		}
	}
}

// reconnect attempts to re-establish the connection with exponential
// backoff. It blocks until successful or the client is closed.
func (w *WSClient) reconnect() {
	if !w.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer w.reconnecting.Store(false)

	delay := w.reconnectBase

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// channelsFor maps symbols to their deals stream names.
func channelsFor(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, dealsChannel(s))
	}
	return out
}
