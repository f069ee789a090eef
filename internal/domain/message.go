package domain

// Message is a chat line posted to a room. CreatedAt is supplied by the
// sender and passed through untouched.
type Message struct {
	Sender    string `json:"sender" validate:"max=20"`
	Room      string `json:"room" validate:"max=30"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// RoomMessages is the recent history of one room, oldest message first.
type RoomMessages struct {
	Name     string    `json:"name"`
	Messages []Message `json:"messages"`
}
