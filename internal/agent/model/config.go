package model

// ================ Config ================
type ConversationConfig struct {
	TTL    string `envconfig:"CONVERSATION_TTL" default:"15m"`
	Router struct {
		// MaxMessages bounds how many recent history messages the
		// classifier sees, counted individually (not user/assistant pairs).
		MaxMessages int `envconfig:"CONVERSATION_ROUTER_MAX_MESSAGES" default:"5"`
	}
	MaxSteps int `envconfig:"CONVERSATION_MAX_STEPS" default:"12"`
}

type ClassifierModelConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0.1"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

type EmbeddingConfig struct {
	Model string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
}

type RetrievalConfig struct {
	// TopK is the per-backend candidate budget for keyword and vector search.
	TopK int `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	// RRFConstant is the k constant in reciprocal rank fusion scoring.
	RRFConstant int `envconfig:"RETRIEVAL_RRF_CONSTANT" default:"60"`
	// MaxResults caps the final reranked list handed to response synthesis.
	MaxResults int `envconfig:"RETRIEVAL_MAX_RESULTS" default:"5"`
	// VectorBackend selects where vector search runs: "postgres" uses the
	// pgvector column, "embedded" uses the in-process index seeded at startup.
	VectorBackend string `envconfig:"RETRIEVAL_VECTOR_BACKEND" default:"postgres"`
}

type OrderConfig struct {
	// DefaultUserID is the deployment-fixed account used when the user never
	// states one. The follow-up question generator must not ask for it.
	DefaultUserID int `envconfig:"ORDER_DEFAULT_USER_ID" default:"1"`
}
