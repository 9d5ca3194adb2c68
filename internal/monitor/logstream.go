package monitor

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pump_copy/internal/common"
)

const logReconnectDelay = 5 * time.Second

// LogWatcher is the push-based alternative to polling: it subscribes to log
// notifications mentioning a leader over a websocket endpoint and feeds the
// same classification path. The polling monitor stays the default.
type LogWatcher struct {
	url   string
	chain Chain
	log   *logrus.Entry

	mu       sync.Mutex
	callback Callback
	seen     *seenSet
}

func NewLogWatcher(url string, chain Chain) *LogWatcher {
	return &LogWatcher{
		url:   url,
		chain: chain,
		log:   common.Log.WithField("component", "logwatcher"),
		seen:  newSeenSet(seenCap),
	}
}

func (w *LogWatcher) SetCallback(cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callback = cb
}

type logsSubscribeRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type logNotification struct {
	Params struct {
		Result struct {
			Value struct {
				Signature string   `json:"signature"`
				Logs      []string `json:"logs"`
				Err       any      `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Watch subscribes to logs mentioning leader and blocks until ctx ends,
// reconnecting after connection loss.
func (w *LogWatcher) Watch(ctx context.Context, leader string) error {
	for ctx.Err() == nil {
		if err := w.watchOnce(ctx, leader); err != nil && ctx.Err() == nil {
			w.log.WithError(err).WithField("leader", leader).Warn("log stream interrupted, reconnecting")
		}
		select {
		case <-ctx.Done():
		case <-time.After(logReconnectDelay):
		}
	}
	return ctx.Err()
}

func (w *LogWatcher) watchOnce(ctx context.Context, leader string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := logsSubscribeRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": []string{leader}},
			map[string]interface{}{"commitment": "finalized"},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	w.log.WithField("leader", leader).Info("subscribed to leader logs")

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		w.handleMessage(ctx, leader, payload)
	}
}

func (w *LogWatcher) handleMessage(ctx context.Context, leader string, payload []byte) {
	var note logNotification
	if err := json.Unmarshal(payload, &note); err != nil {
		return
	}
	value := note.Params.Result.Value
	if value.Signature == "" || value.Err != nil {
		return
	}
	if !mentionsTrade(value.Logs) {
		return
	}
	sig, err := solana.SignatureFromBase58(value.Signature)
	if err != nil {
		return
	}

	w.mu.Lock()
	fresh := w.seen.Add(sig)
	cb := w.callback
	w.mu.Unlock()
	if !fresh || cb == nil {
		return
	}

	detail, err := w.chain.TransactionDetail(ctx, sig)
	if err != nil {
		w.log.WithError(err).WithField("signature", value.Signature).Warn("cannot fetch streamed transaction")
		return
	}
	trade, ok := Classify(leader, detail)
	if !ok {
		return
	}
	if err := cb(ctx, trade); err != nil {
		w.log.WithError(err).WithField("signature", value.Signature).Error("trade callback failed")
	}
}

func mentionsTrade(logs []string) bool {
	for _, line := range logs {
		if strings.Contains(line, "Instruction: Buy") || strings.Contains(line, "Instruction: Sell") {
			return true
		}
	}
	return false
}
