package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	serverURL   string
	password    string
	extensions  []string
	maxFileSize int
	userName    string

	natsURL     string
	durableName string

	rootCmd = &cobra.Command{
		Use:   "virtualrag-client",
		Short: "Interactive terminal client for the VirtualRAG server",
		Long: `Connects to a VirtualRAG server, authenticates and lets you ask
questions about your documents.

Commands inside the session:
  /upload <path>              index a document
  /attach <path> <question>   index a document and ask about it
  /stats                      show server statistics
  q, quit, exit               disconnect`,
		SilenceUsage: true,
		RunE:         runChat,
	}

	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "Tail document indexing events from NATS",
		RunE:  runEvents,
	}
)

func init() {
	rootCmd.Flags().StringVar(&serverURL, "url", "ws://localhost:8765/ws", "websocket endpoint of the server")
	rootCmd.Flags().StringVarP(&password, "password", "p", envOr("SERVER_PASSWORD", "changeme123"), "server password")
	rootCmd.Flags().StringSliceVar(&extensions, "extensions", []string{".pdf", ".txt"}, "file extensions the server accepts")
	rootCmd.Flags().IntVar(&maxFileSize, "max-file-size-mb", 50, "largest file the server accepts")
	rootCmd.Flags().StringVar(&userName, "name", os.Getenv("USER"), "name shown in the prompt")

	eventsCmd.Flags().StringVar(&natsURL, "nats-url", envOr("NATS_URL", "nats://localhost:4222"), "NATS server")
	eventsCmd.Flags().StringVar(&durableName, "durable", "", "durable consumer name (empty tails new events only)")

	rootCmd.AddCommand(eventsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
