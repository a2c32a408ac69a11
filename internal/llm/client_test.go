package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseBody formats raw SSE frames for a canned streaming response.
func sseBody(events ...string) string {
	var body string
	for _, e := range events {
		body += e + "\n\n"
	}
	return body
}

func deltaEvent(text string) string {
	payload, _ := json.Marshal(map[string]any{
		"type":  "content_block_delta",
		"delta": map[string]string{"type": "text_delta", "text": text},
	})
	return "event: content_block_delta\ndata: " + string(payload)
}

const stopEvent = `event: message_stop
data: {"type":"message_stop"}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	return client
}

func drain(t *testing.T, s *Stream) (string, error) {
	t.Helper()
	defer s.Close()
	var out string
	for {
		delta, err := s.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out += delta
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.ModelName())
}

func TestStreamDeltasInOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(deltaEvent("Hola "), deltaEvent("mundo"), stopEvent))
	})

	stream, err := client.Stream(context.Background(), "system", []ContentPart{TextPart("hi")})
	require.NoError(t, err)

	got, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, "Hola mundo", got)
}

func TestStreamRequestShape(t *testing.T) {
	var captured messagesRequest
	var headers http.Header
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		fmt.Fprint(w, sseBody(stopEvent))
	})

	parts := []ContentPart{
		DocumentPart("https://example.com/guidelines.pdf"),
		DocumentPart("https://example.com/source.pdf"),
		TextPart("Merge these documents."),
	}
	stream, err := client.Stream(context.Background(), "You are a document processor.", parts)
	require.NoError(t, err)
	_, err = drain(t, stream)
	require.NoError(t, err)

	assert.Equal(t, "test-key", headers.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", headers.Get("anthropic-version"))

	assert.True(t, captured.Stream)
	assert.Equal(t, "You are a document processor.", captured.System)
	require.Len(t, captured.Messages, 1)
	content := captured.Messages[0].Content
	require.Len(t, content, 3)

	// Attachment order is preserved; the instruction comes last.
	assert.Equal(t, "document", content[0].Type)
	require.NotNil(t, content[0].Source)
	assert.Equal(t, "url", content[0].Source.Type)
	assert.Equal(t, "https://example.com/guidelines.pdf", content[0].Source.URL)
	assert.Equal(t, "document", content[1].Type)
	assert.Equal(t, "text", content[2].Type)
	assert.Equal(t, "Merge these documents.", content[2].Text)
}

func TestStreamSkipsNonTextEvents(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseBody(
			`event: message_start
data: {"type":"message_start"}`,
			`event: ping
data: {"type":"ping"}`,
			deltaEvent("only"),
			`event: content_block_stop
data: {"type":"content_block_stop"}`,
			stopEvent,
		))
	})

	stream, err := client.Stream(context.Background(), "", []ContentPart{TextPart("hi")})
	require.NoError(t, err)

	got, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, "only", got)
}

func TestStreamTruncated(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// No message_stop: connection ends mid-message.
		fmt.Fprint(w, sseBody(deltaEvent("partial")))
	})

	stream, err := client.Stream(context.Background(), "", []ContentPart{TextPart("hi")})
	require.NoError(t, err)

	_, err = drain(t, stream)
	assert.ErrorIs(t, err, ErrStreamTruncated)
}

func TestStreamErrorEvent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseBody(
			`event: error
data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
		))
	})

	stream, err := client.Stream(context.Background(), "", []ContentPart{TextPart("hi")})
	require.NoError(t, err)

	_, err = drain(t, stream)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Overloaded")
}

func TestStreamAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})

	_, err := client.Stream(context.Background(), "", []ContentPart{TextPart("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid x-api-key")
}

func TestStreamNonRestartable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseBody(deltaEvent("a"), stopEvent))
	})

	stream, err := client.Stream(context.Background(), "", []ContentPart{TextPart("hi")})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next()
	require.NoError(t, err)
	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
	// Once done, the stream stays done.
	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	})

	assert.NoError(t, client.Ping(context.Background()))
}

func TestPingUnauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	assert.Error(t, client.Ping(context.Background()))
}
