package models

// APIResponse is the uniform HTTP response envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ProcessArticleRequest is the body of a single-article processing call.
type ProcessArticleRequest struct {
	Article        ArticleContent `json:"article" binding:"required"`
	ForceReprocess bool           `json:"force_reprocess"`
}

// BatchProcessRequest is the body of a batch processing call.
type BatchProcessRequest struct {
	Articles       []ArticleContent `json:"articles" binding:"required,min=1"`
	ForceReprocess bool             `json:"force_reprocess"`
}

// ReviewRequest triggers a quality review sweep over recent results.
type ReviewRequest struct {
	Limit int `json:"limit"`
}
