package api

import (
	"fmt"
	"time"
)

// StatusError is an error with an HTTP status code and message. It is
// parsed on the client side and not returned from the API.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		return "something went wrong, please see the subword server logs for details"
	}
}

// TokenizeRequest is the request passed to [Client.Tokenize].
type TokenizeRequest struct {
	Text string `json:"text"`
}

// TokenizeResponse is the response from [Client.Tokenize].
type TokenizeResponse struct {
	Tokens []string `json:"tokens"`
	IDs    []int32  `json:"ids"`
}

// DetokenizeRequest is the request passed to [Client.Detokenize].
type DetokenizeRequest struct {
	IDs []int32 `json:"ids"`
}

// DetokenizeResponse is the response from [Client.Detokenize].
type DetokenizeResponse struct {
	Text string `json:"text"`
}

type SpecialToken struct {
	Content string `json:"content"`
	ID      int32  `json:"id"`
}

type AddedToken struct {
	ID      int32  `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special,omitempty"`
}

// ShowResponse describes the tokenizer a server has loaded.
type ShowResponse struct {
	Type          string                  `json:"type"`
	VocabSize     int                     `json:"vocab_size"`
	Merges        int                     `json:"merges,omitempty"`
	AddedTokens   []AddedToken            `json:"added_tokens,omitempty"`
	SpecialTokens map[string]SpecialToken `json:"special_tokens,omitempty"`
	LoadDuration  time.Duration           `json:"load_duration"`
}

type VersionResponse struct {
	Version string `json:"version"`
}
