package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func main() {
	addr := flag.String("addr", "localhost:8443", "Server address")
	plain := flag.Bool("http", false, "Use ws:// instead of wss://")
	flag.Parse()

	scheme := "wss"
	if *plain {
		scheme = "ws"
	}
	u := fmt.Sprintf("%s://%s/activity/stream", scheme, *addr)
	log.Printf("Connecting to %s", u)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Configure TLS to skip verify for self-signed certs
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	c, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPClient: httpClient})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "client closing")

	log.Println("Connected! Waiting for activity...")

	for {
		var rec json.RawMessage
		if err := wsjson.Read(ctx, c, &rec); err != nil {
			log.Printf("Error reading: %v", err)
			return
		}
		fmt.Println(string(rec))
	}
}
