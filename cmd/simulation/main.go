package main

import (
	"encoding/json"
	"flag"
	"log"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/fatih/color"
)

// Drives a scripted conversation against a running server over the chat
// websocket and prints the full event stream. Useful for eyeballing routing
// decisions without a frontend.

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatEvent struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data"`
}

var (
	userColor    = color.New(color.FgCyan, color.Bold)
	aiColor      = color.New(color.FgGreen)
	thoughtColor = color.New(color.FgHiBlack)
	statusColor  = color.New(color.FgYellow)
	errColor     = color.New(color.FgRed, color.Bold)
)

func main() {
	url := flag.String("url", "ws://localhost:3000/api/chat/ws", "chat websocket URL")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", *url, err)
	}
	defer conn.Close()

	script := []string{
		"how do I add payroll?",
		"what about contributions?",
		"employee contributions",
		"can you make an invoice report and also tell me about a lawsuit?",
	}

	sessionID := ""
	for _, text := range script {
		userColor.Printf("\nUSER: %s\n", text)

		if err := conn.WriteJSON(chatRequest{SessionID: sessionID, Message: text}); err != nil {
			log.Fatalf("write: %v", err)
		}

		start := time.Now()
		sessionID = drainTurn(conn, sessionID)
		statusColor.Printf("  (turn took %v)\n", time.Since(start).Round(time.Millisecond))
	}
}

// drainTurn reads events until the turn's terminal event arrives.
func drainTurn(conn *websocket.Conn, sessionID string) string {
	for {
		var ev chatEvent
		if err := conn.ReadJSON(&ev); err != nil {
			log.Fatalf("read: %v", err)
		}
		if ev.SessionID != "" {
			sessionID = ev.SessionID
		}

		switch ev.Type {
		case "thought":
			var thought string
			json.Unmarshal(ev.Data, &thought)
			thoughtColor.Printf("  [thought] %s\n", thought)
		case "status":
			var status string
			json.Unmarshal(ev.Data, &status)
			statusColor.Printf("  [status] %s\n", status)
		case "plan":
			thoughtColor.Printf("  [plan] %s\n", string(ev.Data))
		case "admin_update":
			thoughtColor.Printf("  [admin] %s\n", string(ev.Data))
		case "final_response":
			var final struct {
				AIMessage string                     `json:"ai_message"`
				Citations map[string]json.RawMessage `json:"citations"`
			}
			json.Unmarshal(ev.Data, &final)
			aiColor.Printf("AI: %s\n", final.AIMessage)
			for id, c := range final.Citations {
				thoughtColor.Printf("  [%s] %s\n", id, string(c))
			}
			return sessionID
		case "error":
			errColor.Printf("ERROR: %s\n", string(ev.Data))
			return sessionID
		}
	}
}
