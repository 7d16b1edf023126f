// Command bot is a scripted mission client: it connects over the websocket,
// picks random goals, and requests a new one whenever the rover arrives or
// the goal turns out unreachable. Useful for soak-testing a server.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"dunenet.ai/internal/protocol"
	"dunenet.ai/internal/sim/nav/grid"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "bot", "client name")
		seed = flag.Int64("seed", 1, "goal picker seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	rng := rand.New(rand.NewSource(*seed))
	var width, height int
	goalActive := false

	sendGoal := func() {
		if width == 0 || height == 0 {
			return
		}
		goal := grid.Point{X: rng.Intn(width), Y: rng.Intn(height)}
		msg := protocol.SetGoalMsg{
			Type:            protocol.TypeSetGoal,
			ProtocolVersion: protocol.Version,
			Goal:            goal,
		}
		if err := conn.WriteJSON(msg); err != nil {
			logger.Fatalf("send SET_GOAL: %v", err)
		}
		goalActive = true
		logger.Printf("goal -> (%d,%d)", goal.X, goal.Y)
	}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			width = w.WorldParams.CostmapWidth
			height = w.WorldParams.CostmapHeight
			logger.Printf("WELCOME session=%s tick_rate=%d seed=%d grid=%dx%d",
				w.SessionID, w.WorldParams.TickRateHz, w.WorldParams.Seed, width, height)
			sendGoal()

		case protocol.TypeGoalResult:
			var gr protocol.GoalResultMsg
			if err := json.Unmarshal(msg, &gr); err != nil {
				continue
			}
			logger.Printf("goal (%d,%d) %s path_len=%d", gr.Goal.X, gr.Goal.Y, gr.Status, gr.PathLength)
			if gr.Status == "unreachable" {
				sendGoal()
			}

		case protocol.TypeTelemetry:
			var t protocol.TelemetryMsg
			if err := json.Unmarshal(msg, &t); err != nil {
				continue
			}
			if goalActive && t.PathStatus == "arrived" {
				goalActive = false
				logger.Printf("arrived tick=%d pos=(%.1f,%.1f)", t.Tick, t.Rover.Position.X, t.Rover.Position.Z)
				sendGoal()
			}

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				continue
			}
			logger.Printf("ERROR %s: %s", e.Code, e.Message)
			if e.Code == protocol.ErrOutOfBounds {
				sendGoal()
			}
		}
	}
}
