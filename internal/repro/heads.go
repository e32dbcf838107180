package repro

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
)

// Head is a new block header announced by the node.
type Head struct {
	Number uint64
	Hash   string
}

// HeadSource announces new blocks.
type HeadSource interface {
	// Heads returns a channel closed when the subscription ends.
	Heads() <-chan Head
}

const (
	headsBuffer      = 16
	subscribeTimeout = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type wsMessage struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Params *struct {
		Subscription string `json:"subscription"`
		Result       struct {
			Number string `json:"number"`
			Hash   string `json:"hash"`
		} `json:"result"`
	} `json:"params"`
}

// HeadWatcher is an eth_subscribe("newHeads") subscription over a websocket.
type HeadWatcher struct {
	conn   *websocket.Conn
	connMu sync.Mutex
	subID  string
	heads  chan Head
	closed atomic.Bool
	wg     sync.WaitGroup
}

// Compile-time interface check.
var _ HeadSource = (*HeadWatcher)(nil)

// DialHeads connects to endpoint and subscribes to new heads.
func DialHeads(ctx context.Context, endpoint string) (*HeadWatcher, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	w := &HeadWatcher{
		conn:  conn,
		heads: make(chan Head, headsBuffer),
	}
	if err := w.subscribe(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.readLoop()
	return w, nil
}

// subscribe sends the subscription request and waits for its confirmation.
func (w *HeadWatcher) subscribe(ctx context.Context) error {
	req := wsRequest{JSONRPC: "2.0", ID: 1, Method: "eth_subscribe", Params: []any{"newHeads"}}

	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := w.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	deadline := time.Now().Add(subscribeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	w.conn.SetReadDeadline(deadline)
	defer w.conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read subscribe response: %w", err)
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.ID != req.ID {
			continue
		}
		if msg.Error != nil {
			return fmt.Errorf("subscribe: RPC error %d: %s", msg.Error.Code, msg.Error.Message)
		}
		if err := json.Unmarshal(msg.Result, &w.subID); err != nil || w.subID == "" {
			return fmt.Errorf("subscribe: invalid subscription id %s", string(msg.Result))
		}
		return nil
	}
}

// Heads implements HeadSource.
func (w *HeadWatcher) Heads() <-chan Head {
	return w.heads
}

// Close ends the subscription and waits for the reader to exit.
func (w *HeadWatcher) Close() error {
	if w.closed.Swap(true) {
		return nil
	}

	w.connMu.Lock()
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := w.conn.Close()
	w.connMu.Unlock()

	w.wg.Wait()
	return err
}

// readLoop forwards notifications until the connection ends. Heads are
// wake-up signals, so a full buffer drops the newest one.
func (w *HeadWatcher) readLoop() {
	defer w.wg.Done()
	defer close(w.heads)

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Method != "eth_subscription" || msg.Params == nil || msg.Params.Subscription != w.subID {
			continue
		}

		head := Head{Hash: msg.Params.Result.Hash}
		if n, err := hexutil.DecodeUint64(msg.Params.Result.Number); err == nil {
			head.Number = n
		}

		select {
		case w.heads <- head:
		default:
		}
	}
}
