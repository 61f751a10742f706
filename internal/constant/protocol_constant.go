package constant

// Client -> server message types
const (
	MessageTypeAuth       = "auth"
	MessageTypeQuery      = "query"
	MessageTypeDisconnect = "disconnect"
)

// Server -> client message types
const (
	MessageTypeAuthSuccess    = "auth_success"
	MessageTypeAuthFailed     = "auth_failed"
	MessageTypeDocumentStatus = "document_status"
	MessageTypeRagResults     = "rag_results"
	MessageTypeLLMStart       = "llm_start"
	MessageTypeLLMChunk       = "llm_chunk"
	MessageTypeLLMEnd         = "llm_end"
	MessageTypeError          = "error"
	MessageTypeDisconnectAck  = "disconnect_ack"
)

// document_status values
const (
	DocumentStatusSuccess   = "success"
	DocumentStatusDuplicate = "duplicate"
	DocumentStatusError     = "error"
)

// Human readable protocol messages
const (
	MessageAuthSuccess      = "Authentication successful"
	MessageAuthFailed       = "Invalid password"
	MessageNotAuthenticated = "Not authenticated. Send auth message first."
	MessageAlreadyAuthed    = "Already authenticated"
	MessageInvalidJSON      = "Invalid JSON format"
	MessageEmptyQuery       = "Empty query"
	MessageGoodbye          = "Goodbye!"
	MessageNoContent        = "No content extracted from document"
	MessageServerOnline     = "VirtualRAG Server is running"
)
