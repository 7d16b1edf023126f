// Package ws exposes the telemetry and command stream over a websocket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dunenet.ai/internal/protocol"
	"dunenet.ai/internal/sim/world"
)

// outQueue is the per-client frame buffer; slow clients drop the oldest
// frame instead of stalling the world goroutine.
const outQueue = 16

type Server struct {
	world  *world.World
	logger *zap.SugaredLogger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		world:  w,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(conn)
		if sessionID == "" {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		s.world.Subscribe(sessionID, out)
		defer s.world.Unsubscribe(sessionID)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			s.dispatch(ctx, out, msg)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, out chan []byte, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		sendError(out, protocol.ErrProtoBadRequest, "malformed message")
		return
	}
	switch base.Type {
	case protocol.TypeSetGoal:
		var sg protocol.SetGoalMsg
		if err := json.Unmarshal(msg, &sg); err != nil {
			sendError(out, protocol.ErrProtoBadRequest, "malformed SET_GOAL")
			return
		}
		if sg.ProtocolVersion != protocol.Version {
			sendError(out, protocol.ErrProtoBadRequest, "bad protocol_version")
			return
		}
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.world.SetGoal(cctx, sg.Goal); err != nil {
			sendError(out, protocol.ErrOutOfBounds, err.Error())
		}

	case protocol.TypeRegenerate:
		var rg protocol.RegenerateMsg
		if err := json.Unmarshal(msg, &rg); err != nil {
			sendError(out, protocol.ErrProtoBadRequest, "malformed REGENERATE")
			return
		}
		if rg.ProtocolVersion != protocol.Version {
			sendError(out, protocol.ErrProtoBadRequest, "bad protocol_version")
			return
		}
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.world.Regenerate(cctx, rg.Seed); err != nil {
			sendError(out, protocol.ErrBadRequest, err.Error())
		}

	default:
		sendError(out, protocol.ErrProtoBadRequest, "unknown type "+base.Type)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return "", nil
	}

	sessionID = uuid.NewString()
	out = make(chan []byte, outQueue)

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		WorldParams: protocol.WorldParams{
			TickRateHz:    s.world.TickRateHz(),
			WorldSize:     s.world.WorldSize(),
			CostmapWidth:  s.world.CostmapSize().X,
			CostmapHeight: s.world.CostmapSize().Y,
			Seed:          s.world.Seed(),
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}

	s.logger.Infow("client connected", "session", sessionID, "name", hello.ClientName)
	return sessionID, out
}

func sendError(out chan []byte, code, msg string) {
	b, err := json.Marshal(protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: msg})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
