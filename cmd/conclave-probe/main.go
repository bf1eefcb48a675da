// ABOUTME: Minimal probe client for E2E testing — connects over WebSocket, runs a
// ABOUTME: handshake, lists capabilities, and invokes mesh/echo.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/coder/websocket"

	"github.com/conclave-mesh/conclave-gateway/internal/session"
)

func main() {
	addr := flag.String("addr", "ws://127.0.0.1:8080/v1/connect", "gateway connect URL")
	identity := flag.String("identity", "did:mesh:probe", "identity header")
	level := flag.String("trust", "basic", "trust header: basic, verified, enterprise")
	message := flag.String("message", "hello from conclave-probe", "message to echo")
	token := flag.String("token", "", "bearer trust token (overrides headers)")
	flag.Parse()

	if err := run(*addr, *identity, *level, *message, *token); err != nil {
		log.Fatal(err)
	}
}

func run(addr, identity, level, message, token string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	header := http.Header{}
	header.Set(session.HeaderIdentity, identity)
	header.Set(session.HeaderTrust, level)
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.Dial(ctx, addr, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "probe done")

	if err := call(ctx, conn, 1, "handshake", map[string]any{
		"client_info": map[string]any{"name": "conclave-probe", "version": "dev"},
	}); err != nil {
		return err
	}

	if err := call(ctx, conn, 2, "capabilities/list", nil); err != nil {
		return err
	}

	return call(ctx, conn, 3, "capabilities/invoke", map[string]any{
		"name":      "mesh/echo",
		"arguments": map[string]any{"message": message},
	})
}

// call sends one request and waits for its response. The gateway answers in
// request order, so a single read suffices.
func call(ctx context.Context, conn *websocket.Conn, id int, method string, params any) error {
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", method, err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}

	_, resp, err := conn.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}

	var pretty map[string]any
	if err := json.Unmarshal(resp, &pretty); err != nil {
		return fmt.Errorf("parsing %s response: %w", method, err)
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Printf("--- %s ---\n%s\n", method, out)
	return nil
}
