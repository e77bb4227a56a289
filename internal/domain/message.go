package domain

import "time"

// Message is one inbound chat message from an origin channel.
type Message struct {
	Origin     string    // origin handle the message arrived from
	Text       string    // raw message text
	ReceivedAt time.Time // arrival time
}
