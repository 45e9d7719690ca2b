package tx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Fantasim/solfan/internal/config"
)

// SignatureSubscriber waits for signatures over the websocket
// signatureSubscribe method. Each wait uses its own connection.
type SignatureSubscriber struct {
	endpoint  string
	dialer    websocket.Dialer
	requestID atomic.Uint64
}

// NewSignatureSubscriber creates a subscriber for a ws:// or wss:// endpoint.
func NewSignatureSubscriber(endpoint string) *SignatureSubscriber {
	return &SignatureSubscriber{
		endpoint: endpoint,
		dialer:   websocket.Dialer{HandshakeTimeout: config.WSHandshakeTimeout},
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
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
		Subscription int64 `json:"subscription"`
		Result       struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value json.RawMessage `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// WaitForSignature subscribes to signature and blocks until the node notifies
// that it reached commitment, the connection fails, or ctx is done.
func (s *SignatureSubscriber) WaitForSignature(ctx context.Context, signature, commitment string) error {
	conn, _, err := s.dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	reqID := s.requestID.Add(1)
	conn.SetWriteDeadline(time.Now().Add(config.WSWriteTimeout))
	if err := conn.WriteJSON(wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]string{"commitment": commitment},
		},
	}); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read subscription: %w", err)
		}

		switch {
		case msg.Error != nil:
			return fmt.Errorf("signatureSubscribe error %d: %s", msg.Error.Code, msg.Error.Message)
		case msg.Method == "signatureNotification" && msg.Params != nil:
			return signatureResult(signature, msg.Params.Result.Context.Slot, msg.Params.Result.Value)
		case msg.ID == reqID:
			slog.Debug("signature subscription active", "signature", signature, "subscription", string(msg.Result))
		}
	}
}

func signatureResult(signature string, slot uint64, value json.RawMessage) error {
	var v struct {
		Err json.RawMessage `json:"err"`
	}
	if err := json.Unmarshal(value, &v); err != nil {
		return fmt.Errorf("decode signature notification: %w", err)
	}
	if len(v.Err) > 0 && string(v.Err) != "null" {
		return fmt.Errorf("%w: %s: %s", config.ErrSOLTxFailed, signature, v.Err)
	}
	slog.Debug("signature notification", "signature", signature, "slot", slot)
	return nil
}
