package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// AnalysisResponse wraps a FusionResult with request bookkeeping that must
// stay outside the deterministic result itself.
type AnalysisResponse struct {
	RequestID         string       `json:"request_id"`
	ImageSHA1         string       `json:"image_sha1"`
	Timestamp         string       `json:"timestamp"`
	ProcessingTimeSec float64      `json:"processing_time_sec"`
	Profile           string       `json:"profile"`
	CacheHit          bool         `json:"cache_hit"`
	Result            FusionResult `json:"result"`
}
