package vectordb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitHost(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantScheme string
		wantHost   string
	}{
		{
			name:       "http prefix",
			input:      "http://localhost:8080",
			wantScheme: "http",
			wantHost:   "localhost:8080",
		},
		{
			name:       "https prefix",
			input:      "https://weaviate.internal:443",
			wantScheme: "https",
			wantHost:   "weaviate.internal:443",
		},
		{
			name:       "bare host defaults to http",
			input:      "localhost:8080",
			wantScheme: "http",
			wantHost:   "localhost:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheme, host := splitHost(tt.input)
			assert.Equal(t, tt.wantScheme, scheme)
			assert.Equal(t, tt.wantHost, host)
		})
	}
}

func TestVectorizerConfig(t *testing.T) {
	s := &WeaviateSink{provider: "ollama", model: "nomic-embed-text", dimensions: 768}
	vectorizer, moduleConfig, err := s.vectorizerConfig()
	assert.NoError(t, err)
	assert.Equal(t, "text2vec-ollama", vectorizer)
	assert.Contains(t, moduleConfig, "text2vec-ollama")

	s = &WeaviateSink{provider: "openai", model: "text-embedding-3-small", dimensions: 1536}
	vectorizer, _, err = s.vectorizerConfig()
	assert.NoError(t, err)
	assert.Equal(t, "text2vec-openai", vectorizer)

	s = &WeaviateSink{provider: "cohere"}
	_, _, err = s.vectorizerConfig()
	assert.Error(t, err)
}
