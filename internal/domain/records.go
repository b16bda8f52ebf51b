package domain

// KVEntry is a single user-scoped key/value record. Last write wins; there is
// no delete operation.
type KVEntry struct {
	UserID    string
	Key       string
	Value     string
	CreatedAt int64
}

// MessageRecord is one persisted inbound message. Written once, never mutated.
type MessageRecord struct {
	UserID      string
	CreatedAt   int64
	MessageID   string
	UpdateID    int64
	MessageType string
	Text        string
	Raw         string
}

// KeywordEntry points from a normalized keyword back to the message that
// contained it. The sort key co-locates one user's entries and orders them by
// creation time.
type KeywordEntry struct {
	Keyword     string
	UserCreated string
	MessageID   string
	UserID      string
	CreatedAt   int64
	Snippet     string
}
