package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientParseCommand_RoutesByShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, recipient, r.URL.Query().Get("address"))

		switch r.URL.Path {
		case "/api/v1/transactions/parse":
			w.Write([]byte(`{"type":"TRANSFER","signature":"one","actions":[{"actionType":"TRANSFER_RECEIVED","from":"a","to":"b","amount":1}]}`))
		case "/api/v1/transactions/parse-batch":
			w.Write([]byte(`{"transactions":[{"parsed":{"type":"TRANSFER","signature":"a"},"raw":{}},{"parsed":{"type":"SWAP","signature":"b"},"raw":{}}],"count":2}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	out, err := runApp(t, transferInput, "--json", "--server-url", server.URL, "client", "parse", "--address", recipient, "--jq", ".signature")
	require.NoError(t, err)
	assert.Equal(t, `"one"`, strings.TrimSpace(out))

	out, err = runApp(t, "\n "+batchInput, "--json", "--server-url", server.URL, "client", "parse", "--address", recipient, "--jq", ".signature")
	require.NoError(t, err)
	assert.Equal(t, "\"a\"\n\"b\"", strings.TrimSpace(out))
}

func TestClientParseCommand_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"too many transactions: maximum batch size is 1"}`))
	}))
	defer server.Close()

	_, err := runApp(t, batchInput, "--server-url", server.URL, "client", "parse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum batch size is 1")
}

func TestClientJobCommands(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			assert.Equal(t, "/api/v1/classify-jobs", r.URL.Path)
			assert.Equal(t, "true", r.URL.Query().Get("publish"))
			body, _ := io.ReadAll(r.Body)
			var txs []map[string]any
			require.NoError(t, json.Unmarshal(body, &txs))
			assert.Len(t, txs, 2)
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"workflow_id":"classify-batch-xyz","count":2}`))
		default:
			assert.Equal(t, "/api/v1/classify-jobs/classify-batch-xyz", r.URL.Path)
			w.Write([]byte(`{"workflow_id":"classify-batch-xyz","status":"completed","result":{"count":2,"unknown":1,"by_type":{"SWAP":1,"TRANSFER":1},"published":2}}`))
		}
	}))
	defer server.Close()

	out, err := runApp(t, batchInput, "--json", "--server-url", server.URL, "client", "job-start", "--publish")
	require.NoError(t, err)
	assert.JSONEq(t, `{"workflow_id":"classify-batch-xyz","count":2}`, out)

	out, err = runApp(t, "", "--server-url", server.URL, "client", "job-status", "classify-batch-xyz")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:      completed")
	assert.Contains(t, out, "Unknown:     1")

	_, err = runApp(t, "", "--server-url", server.URL, "client", "job-status")
	assert.EqualError(t, err, "workflow ID is required")
}

func TestClientStreamCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stream/transactions/"+sender, r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: connected\ndata: {}\n\n")
		io.WriteString(w, "event: transaction\ndata: {\"signature\":\"a\",\"type\":\"BURN\"}\n\n")
		io.WriteString(w, "event: transaction\ndata: {\"signature\":\"b\",\"type\":\"SWAP\"}\n\n")
		io.WriteString(w, "event: transaction\ndata: {\"signature\":\"c\",\"type\":\"SWAP\"}\n\n")
	}))
	defer server.Close()

	out, err := runApp(t, "", "--json", "--server-url", server.URL, "client", "stream", "--must-jq", `.type == "SWAP"`, "--count", "1", sender)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"signature":"b"`)
}
