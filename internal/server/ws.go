package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"worklens/internal/session"
)

const (
	panelWSWriteWait = 10 * time.Second
	panelWSPongWait  = 60 * time.Second
	panelWSPingEvery = (panelWSPongWait * 9) / 10
)

var panelWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// handlePanelWS hosts one session per connection. Frames are JSON
// envelopes; a writer goroutine owns the connection for writes and keeps
// the ping ticker, so handlers never touch the socket directly.
func (s *Service) handlePanelWS(w http.ResponseWriter, r *http.Request) {
	conn, err := panelWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(panelWSPongWait)); err != nil {
		s.log.Warn("panel ws set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(panelWSPongWait))
	})

	writeCh := make(chan session.Envelope, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(panelWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case env := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(panelWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(env); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(panelWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	var backend session.Backend = &session.LocalBackend{Gateway: s.gateway}
	if s.upstreamURL != "" {
		backend = &session.HTTPBackend{BaseURL: s.upstreamURL}
	}
	sess, err := session.New(backend, s.store, s.log)
	if err != nil {
		s.log.Error("panel session init failed", zap.Error(err))
		cancel()
		<-writerDone
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			cancel()
			<-writerDone
			return
		}

		var env session.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			pushPanelWS(ctx, writeCh, errorEnvelope("invalid_frame", "frame is not a json envelope"))
			continue
		}
		msg, err := session.DecodeInbound(env)
		if err != nil {
			pushPanelWS(ctx, writeCh, errorEnvelope("invalid_frame", err.Error()))
			continue
		}

		emit := func(outs []session.Outbound) {
			for _, out := range outs {
				env, err := session.EncodeOutbound(out)
				if err != nil {
					s.log.Error("panel ws encode failed", zap.Error(err))
					continue
				}
				pushPanelWS(ctx, writeCh, env)
			}
		}

		// Turns block on generation, so they run off the read loop and the
		// session queues them internally. Everything else applies in frame
		// order, so a workspace update always lands before the turn that
		// follows it.
		if _, isTurn := msg.(session.UserMessage); isTurn {
			go func(m session.Inbound) {
				emit(sess.Dispatch(ctx, m))
			}(msg)
		} else {
			emit(sess.Dispatch(ctx, msg))
		}
	}
}

func errorEnvelope(code, message string) session.Envelope {
	env, err := session.EncodeOutbound(session.ErrorFrame{Code: code, Message: message})
	if err != nil {
		return session.Envelope{Type: "error"}
	}
	return env
}

func pushPanelWS(ctx context.Context, writeCh chan session.Envelope, env session.Envelope) {
	select {
	case writeCh <- env:
	case <-ctx.Done():
	}
}
