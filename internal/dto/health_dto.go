package dto

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	IndexChunks    int    `json:"index_chunks"`
	LLMAvailable   bool   `json:"llm_available"`
}

type StatsResponse struct {
	TotalChunks     int    `json:"total_chunks"`
	UniqueDocuments int    `json:"unique_documents"`
	LLMAvailable    bool   `json:"llm_available"`
	LLMModel        string `json:"llm_model"`
	ActiveSessions  int    `json:"active_sessions"`
	ChatMessages    int    `json:"chat_messages"`
}
