package core

// Response is the result of one generation call, or one chunk of a stream.
type Response struct {
	// Content is the generated text. For stream chunks it holds only the
	// fragment produced by that chunk.
	Content string `json:"content"`

	// TokensUsed is the total token count reported by the provider, if any.
	TokensUsed *int `json:"tokens_used,omitempty"`

	// Provider is the identifier of the backend that produced the response.
	Provider string `json:"provider"`

	// Raw is the provider payload the response was built from.
	Raw any `json:"-"`
}

// Tokens returns a pointer to n, for filling Response.TokensUsed.
func Tokens(n int) *int {
	return &n
}
