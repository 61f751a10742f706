package websocket

import (
	"context"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs runs one connection until it closes. The handler goroutine becomes
// the read pump and waits for the other pumps before returning the conn.
func ServeWs(hub *Hub, conn *websocket.Conn, deps SessionDeps, maxMessageSize int64) {
	ctx, cancel := context.WithCancel(hub.Context())
	defer cancel()

	client := &Client{
		Hub:            hub,
		Conn:           conn,
		Send:           make(chan []byte, sendBuffer),
		inbox:          make(chan []byte, inboxBuffer),
		maxMessageSize: maxMessageSize,
		logger:         deps.Logger,
		ctx:            ctx,
		cancel:         cancel,
	}
	client.Session = NewSession(uuid.NewString(), deps, client, client.closeAfter)

	hub.add(client)
	defer hub.remove(client)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		client.writePump()
	}()
	go func() {
		defer wg.Done()
		client.processPump()
	}()

	client.readPump()
	wg.Wait()
}
