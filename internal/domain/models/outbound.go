package models

// OutboundMessageRequest represents an operator message pushed through the API.
type OutboundMessageRequest struct {
	To         string `json:"to" binding:"required"`
	Message    string `json:"message" binding:"required"`
	PreviewURL bool   `json:"preview_url"`
}

// Notification is a one-shot message addressed to a user.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Text renders the notification for plain-text channels.
func (n Notification) Text() string {
	if n.Title == "" {
		return n.Body
	}
	return n.Title + "\n" + n.Body
}
