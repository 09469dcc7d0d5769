package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches an SDK connection to topic and blocks until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, topic string) {
	client := &Client{Hub: hub, Conn: c, Topic: topic, Send: make(chan []byte, 16)}
	if !hub.Register(client) {
		// shutting down
		c.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
