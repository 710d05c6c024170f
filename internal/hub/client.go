package hub

import (
	"encoding/json"
	"time"

	"github.com/mcoot/typerace-go/internal/model"
)

// Buffer size for outgoing messages
const sendBufferSize = 256

// Message is an encoded envelope ready to be written to any transport
type Message struct {
	Type    model.EventType
	Payload []byte // JSON envelope
}

// NewMessage encodes data into an envelope of the given type
func NewMessage(eventType model.EventType, data any) (Message, error) {
	env, err := model.NewEnvelope(eventType, data)
	if err != nil {
		return Message{}, err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: eventType, Payload: payload}, nil
}

// Client is a room member: a websocket connection or an SSE spectator.
// A client may move between hubs; hubs never close its send channel.
type Client struct {
	id          string
	send        chan Message
	connectedAt time.Time
}

// NewClient creates a new Client
func NewClient(id string) *Client {
	return &Client{
		id:          id,
		send:        make(chan Message, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// ID returns the client's identifier
func (c *Client) ID() string {
	return c.id
}

// Messages returns the channel the client's writer drains
func (c *Client) Messages() <-chan Message {
	return c.send
}

// Deliver queues a message for this client only.
// Returns false if the client's buffer is full and the message was dropped.
func (c *Client) Deliver(msg Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}
