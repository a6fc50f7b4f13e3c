package retry

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestClassifyMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		want    Classification
	}{
		{name: "rate limit", message: "Error: rate limit exceeded", want: Retryable},
		{name: "invalid api key", message: "Invalid API key provided", want: Fatal},
		{name: "json syntax", message: "Unexpected token } in JSON at position 42", want: Retryable},
		{name: "schema", message: "schema validation failed: required field missing", want: Fatal},
		{name: "gateway", message: "502 Bad Gateway", want: Retryable},
		{name: "unauthorized", message: "401 Unauthorized", want: Fatal},
		{name: "quota", message: "quota exceeded for this project", want: Fatal},
		{name: "structural json", message: "invalid structure in JSON payload", want: Fatal},
		{name: "go json", message: "invalid character '}' looking for beginning of object key string", want: Retryable},
		{name: "truncated", message: "unexpected end of JSON input", want: Retryable},
		{name: "context deadline", message: "requesting chat completion: context deadline exceeded", want: Retryable},
		{name: "transient wins over fatal", message: "bad request: connection reset by peer", want: Retryable},
		{name: "unmatched", message: "something odd happened", want: Retryable},
		{name: "empty", message: "", want: Retryable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ClassifyMessage(tt.message))
		})
	}
}

func TestClassifyUsesWrappedMessage(t *testing.T) {
	t.Parallel()

	err := eris.Wrap(eris.New("Invalid API key provided"), "requesting chat completion")

	assert.Equal(t, Fatal, Classify(err))
	assert.Equal(t, Retryable, Classify(nil))
}

func TestClassificationString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "fatal", Fatal.String())
	assert.Equal(t, "retryable", Retryable.String())
}
