package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/results/src-1", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"source_id": "src-1",
			"owner_id": "owner-1",
			"search_id": "search-1",
			"items": [
				{"item_id": "a", "title": "Engineer", "company": "Acme", "description": "desc"}
			]
		}`))
	}))
	defer server.Close()

	client := New("test-key", server.URL)

	result, err := client.FetchResults(context.Background(), "src-1")
	require.NoError(t, err)
	assert.Equal(t, "src-1", result.SourceID)
	assert.Equal(t, "owner-1", result.OwnerID)
	assert.Equal(t, "search-1", result.SearchID)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "a", result.Items[0].ItemID)
	assert.Equal(t, "Engineer", result.Items[0].Title)
}
