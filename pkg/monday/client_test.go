package monday

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testColumns = ColumnIDs{
	Phone1:       "phone_mkt3jq7b",
	Phone2:       "phone_mkt347kq",
	DateCreated:  "date_mkt4rd5k",
	LastActivity: "date_mkt4rfsf",
}

type capturedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func gqlServer(t *testing.T, handler func(req capturedRequest) (string, int)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		var req capturedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		body, status := handler(req)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func newTestClient(url string) Client {
	return NewClient("test-key", testColumns, WithAPIURL(url), WithRateLimit(0))
}

func TestDoSurfacesGraphQLErrors(t *testing.T) {
	t.Parallel()

	srv := gqlServer(t, func(req capturedRequest) (string, int) {
		return `{"errors":[{"message":"invalid board"}]}`, http.StatusOK
	})
	defer srv.Close()

	_, err := newTestClient(srv.URL).Do(context.Background(), "query {}", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid board")
}

func TestDoRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := gqlServer(t, func(req capturedRequest) (string, int) {
		if attempts.Add(1) == 1 {
			return "busy", http.StatusTooManyRequests
		}
		return `{"data":{"ok":true}}`, http.StatusOK
	})
	defer srv.Close()

	data, err := newTestClient(srv.URL).Do(context.Background(), "query {}", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestColumns(t *testing.T) {
	t.Parallel()

	srv := gqlServer(t, func(req capturedRequest) (string, int) {
		assert.Equal(t, []any{"9551098786"}, req.Variables["boardId"])
		return `{"data":{"boards":[{"columns":[
			{"id":"phone_mkt3jq7b","title":"Phone 1","type":"phone"},
			{"id":"date_mkt4rfsf","title":"Last Activity","type":"date"}
		]}]}}`, http.StatusOK
	})
	defer srv.Close()

	cols, err := newTestClient(srv.URL).Columns(context.Background(), "9551098786")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "Phone 1", cols[0].Title)
	assert.Equal(t, "date", cols[1].Type)
}

func TestContactsFollowsCursor(t *testing.T) {
	t.Parallel()

	srv := gqlServer(t, func(req capturedRequest) (string, int) {
		if strings.Contains(req.Query, "next_items_page") {
			assert.Equal(t, "cur-1", req.Variables["cursor"])
			return `{"data":{"next_items_page":{"cursor":"","items":[
				{"id":"2","name":"Jane Doe","column_values":[
					{"id":"phone_mkt3jq7b","text":"555-333-4444"},
					{"id":"phone_mkt347kq","text":""}
				]}
			]}}}`, http.StatusOK
		}
		return `{"data":{"boards":[{"items_page":{"cursor":"cur-1","items":[
			{"id":"1","name":"Kelly Keith","column_values":[
				{"id":"phone_mkt3jq7b","text":"(555) 111-2222"},
				{"id":"phone_mkt347kq","text":"(555) 999-0000"},
				{"id":"unrelated","text":"ignored"}
			]}
		]}}]}}`, http.StatusOK
	})
	defer srv.Close()

	contacts, err := newTestClient(srv.URL).Contacts(context.Background(), "9551098786")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, Contact{ID: "1", Name: "Kelly Keith", Phone1: "(555) 111-2222", Phone2: "(555) 999-0000"}, contacts[0])
	assert.Equal(t, Contact{ID: "2", Name: "Jane Doe", Phone1: "555-333-4444"}, contacts[1])
}

func TestUpdateLastActivity(t *testing.T) {
	t.Parallel()

	srv := gqlServer(t, func(req capturedRequest) (string, int) {
		assert.Contains(t, req.Query, "change_multiple_column_values")
		assert.Equal(t, "42", req.Variables["itemId"])
		assert.Equal(t, "9551098786", req.Variables["boardId"])

		var vals map[string]map[string]string
		require.NoError(t, json.Unmarshal([]byte(req.Variables["columnVals"].(string)), &vals))
		assert.Equal(t, map[string]string{"date": "2025-06-15"}, vals["date_mkt4rfsf"])
		assert.NotContains(t, vals, "date_mkt4rd5k")

		return `{"data":{"change_multiple_column_values":{"id":"42"}}}`, http.StatusOK
	})
	defer srv.Close()

	last := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)
	err := newTestClient(srv.URL).UpdateLastActivity(context.Background(), "9551098786", "42", last)
	require.NoError(t, err)
}

func TestUpdateActivity(t *testing.T) {
	t.Parallel()

	srv := gqlServer(t, func(req capturedRequest) (string, int) {
		var vals map[string]map[string]string
		require.NoError(t, json.Unmarshal([]byte(req.Variables["columnVals"].(string)), &vals))
		assert.Equal(t, map[string]string{"date": "2025-02-01"}, vals["date_mkt4rd5k"])
		assert.Equal(t, map[string]string{"date": "2025-06-15"}, vals["date_mkt4rfsf"])

		return `{"data":{"change_multiple_column_values":{"id":"42"}}}`, http.StatusOK
	})
	defer srv.Close()

	created := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	last := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)
	err := newTestClient(srv.URL).UpdateActivity(context.Background(), "9551098786", "42", created, last)
	require.NoError(t, err)
}

func TestCreateContact(t *testing.T) {
	t.Parallel()

	srv := gqlServer(t, func(req capturedRequest) (string, int) {
		assert.Contains(t, req.Query, "create_item")
		assert.Equal(t, "Jane Doe", req.Variables["itemName"])

		var vals map[string]map[string]string
		require.NoError(t, json.Unmarshal([]byte(req.Variables["columnVals"].(string)), &vals))
		assert.Equal(t, map[string]string{"phone": "+15553334444", "countryShortName": "US"}, vals["phone_mkt3jq7b"])
		assert.Equal(t, map[string]string{"phone": "+15553334444", "countryShortName": "US"}, vals["phone_mkt347kq"])
		assert.Equal(t, "2025-01-02", vals["date_mkt4rd5k"]["date"])
		assert.Equal(t, "2025-03-04", vals["date_mkt4rfsf"]["date"])

		return `{"data":{"create_item":{"id":"77","name":"Jane Doe"}}}`, http.StatusOK
	})
	defer srv.Close()

	created := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	last := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	id, err := newTestClient(srv.URL).CreateContact(context.Background(),
		"9551098786", "Jane Doe", "555-333-4444", "555-333-4444", created, last)
	require.NoError(t, err)
	assert.Equal(t, "77", id)
}

func TestCreateContactNameFallbackAndEmptyPhone2(t *testing.T) {
	t.Parallel()

	srv := gqlServer(t, func(req capturedRequest) (string, int) {
		assert.Equal(t, "Contact 555-111-2222", req.Variables["itemName"])

		var vals map[string]map[string]string
		require.NoError(t, json.Unmarshal([]byte(req.Variables["columnVals"].(string)), &vals))
		assert.NotContains(t, vals, "phone_mkt347kq")

		return `{"data":{"create_item":{"id":"78"}}}`, http.StatusOK
	})
	defer srv.Close()

	now := time.Date(2025, 5, 6, 0, 0, 0, 0, time.UTC)
	id, err := newTestClient(srv.URL).CreateContact(context.Background(),
		"9551098786", "", "555-111-2222", "", now, now)
	require.NoError(t, err)
	assert.Equal(t, "78", id)
}
