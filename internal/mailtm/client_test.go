package mailtm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateAccountAndToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/accounts":
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "test@example.com", payload["address"])
			assert.Equal(t, "secret123", payload["password"])

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "acc-1", "address": payload["address"]})
		case "/token":
			require.Equal(t, http.MethodPost, r.Method)
			json.NewEncoder(w).Encode(map[string]string{"token": "jwt-token"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)

	info, err := client.CreateAccount(context.Background(), "test@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", info.ID)
	assert.Equal(t, "test@example.com", info.Address)

	token, err := client.GetToken(context.Background(), "test@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
}

func TestClient_ListMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "Bearer jwt-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"hydra:member": []map[string]any{
				{
					"id":        "msg-1",
					"from":      map[string]string{"address": "sender@example.com", "name": "Sender"},
					"subject":   "你好",
					"intro":     "第一封邮件",
					"seen":      false,
					"createdAt": "2026-01-02T10:00:00Z",
				},
				{
					"id":        "msg-2",
					"from":      map[string]string{"address": "other@example.com"},
					"subject":   "Second",
					"seen":      true,
					"createdAt": "2026-01-02T11:00:00Z",
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	messages, err := client.ListMessages(context.Background(), "jwt-token")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "msg-1", messages[0].ID)
	assert.Equal(t, "sender@example.com", messages[0].From.Address)
	assert.Equal(t, "你好", messages[0].Subject)
	assert.False(t, messages[0].Seen)
	assert.True(t, messages[1].Seen)
}

func TestClient_GetMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages/msg-1", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{
			"id":      "msg-1",
			"from":    map[string]string{"address": "sender@example.com"},
			"to":      []map[string]string{{"address": "me@temp.example"}},
			"subject": "Hello",
			"text":    "plain body",
			"html":    []string{"<p>html body</p>"},
			"seen":    false,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	detail, err := client.GetMessage(context.Background(), "jwt-token", "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "plain body", detail.Text)
	require.Len(t, detail.HTML, 1)
	assert.Equal(t, "<p>html body</p>", detail.HTML[0])
	require.Len(t, detail.To, 1)
	assert.Equal(t, "me@temp.example", detail.To[0].Address)
}

func TestClient_MarkSeen(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		gotContentType = r.Header.Get("Content-Type")

		var payload map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.True(t, payload["seen"])

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.MarkSeen(context.Background(), "jwt-token", "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "application/merge-patch+json", gotContentType)
}

func TestClient_DeleteReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid token"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.DeleteAccount(context.Background(), "bad-token", "acc-1")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClient_ListDomains(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/domains", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"hydra:member": []map[string]any{
				{"id": "dom-1", "domain": "mail.example", "isActive": true},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	domains, err := client.ListDomains(context.Background())
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, "mail.example", domains[0].Domain)
	assert.True(t, domains[0].IsActive)
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListDomains(ctx)
	require.Error(t, err)
}
