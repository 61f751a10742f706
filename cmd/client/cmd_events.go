package main

import (
	"context"
	"encoding/json"
	"fmt"

	"virtualrag-be/internal/constant"
	"virtualrag-be/pkg/events"
	pktNats "virtualrag-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func runEvents(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	sub, err := pktNats.NewSubscriber(natsURL)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer sub.Close()

	stop, err := sub.Subscribe(ctx, events.Subject(constant.EventTypeDocumentIndexed), durableName, printEvent)
	if err != nil {
		return err
	}
	defer stop()

	color.Cyan("Waiting for %s events (Ctrl+C to stop)", constant.EventTypeDocumentIndexed)
	<-ctx.Done()
	return nil
}

func printEvent(_ context.Context, event events.Event) error {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return err
	}
	color.Green("[%s] %s", event.Timestamp().Format("15:04:05"), event.EventType())
	fmt.Println(string(payload))
	return nil
}
