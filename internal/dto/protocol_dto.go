package dto

// InboundMessage is the client -> server envelope. Only the fields relevant
// to Type are populated.
type InboundMessage struct {
	Type      string           `json:"type" validate:"required"`
	Password  string           `json:"password,omitempty"`
	Query     string           `json:"query,omitempty"`
	Documents []DocumentUpload `json:"documents,omitempty"`
}

type DocumentUpload struct {
	Filename string `json:"filename" validate:"required"`
	Content  string `json:"content" validate:"required,base64"`
}

// OutboundMessage is the server -> client envelope.
type OutboundMessage struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type DocumentStatusData struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Chunks  int    `json:"chunks,omitempty"`
}

type RagResultsData struct {
	NumResults int      `json:"num_results"`
	Sources    []string `json:"sources"`
}

func NewOutbound(msgType, message string) OutboundMessage {
	return OutboundMessage{Type: msgType, Message: message}
}

func NewOutboundData(msgType string, data interface{}) OutboundMessage {
	return OutboundMessage{Type: msgType, Data: data}
}
