package domain

// WorkItem is one queued question. The JSON field names are the queue wire
// format shared between the gateway and the worker.
type WorkItem struct {
	RequestID      string `json:"requestId"`
	SessionID      string `json:"sessionId"`
	Prompt         string `json:"prompt"`
	PriorRequestID string `json:"lastRequestId,omitempty"`
}

// CorrelationRecord is the durable result of one processed turn. Records
// are written once and never mutated; readers treat a record whose
// ExpiresAt has passed as absent.
type CorrelationRecord struct {
	RequestID    string
	ResponseText string
	History      []Turn
	ExpiresAt    int64 // unix seconds
}
