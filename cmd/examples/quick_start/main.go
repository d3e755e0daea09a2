package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"

	cnc "github.com/TheAlpha16/awg-cnc"
	"github.com/TheAlpha16/awg-cnc/instrument/siglent"
	"github.com/TheAlpha16/awg-cnc/link"
)

func main() {
	ctx := context.Background()

	// Connect to the generator
	l, err := link.Open(ctx, "tcp://127.0.0.1:5025", link.DefaultOptions())
	if err != nil {
		log.Fatalf("Failed to open instrument: %v", err)
	}

	registry := cnc.NewRegistry(logrus.StandardLogger())
	defer registry.Close()

	if err := siglent.Register(registry); err != nil {
		log.Fatalf("Failed to register commands: %v", err)
	}
	if err := registry.RegisterDevice("Gen1", siglent.New(l, false, nil)); err != nil {
		log.Fatalf("Failed to register device: %v", err)
	}

	// Serve requests from a Valkey list
	server, err := cnc.NewCNCWithValkeyAddress("localhost:6379", "awg:requests", registry)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	defer server.Shutdown()

	fmt.Println("Server started! Sending a request...")

	client, err := cnc.NewValkeyClient("localhost:6379")
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	requester := cnc.NewValkeyRequester(client, "awg:requests")
	defer requester.Close()

	rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	status, err := requester.Send(rctx, cnc.Request{
		Command:    "SetFrequency",
		Instrument: "Gen1",
		Parameters: map[string]any{"freq": 50000, "channel": 1},
	})
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}

	fmt.Printf("SetFrequency: %s\n", status)
}
