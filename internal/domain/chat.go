package domain

// ChatMessage is the provider-agnostic chat message shape sent to the LLM
// integration.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
