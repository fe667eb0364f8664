package openphone

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient serves canned pages keyed by endpoint and participant set.
type fakeClient struct {
	mu        sync.Mutex
	endpoints []string
	fail      bool
}

func (f *fakeClient) GetPage(ctx context.Context, endpoint string, params url.Values) (*Page, error) {
	if f.fail {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	f.endpoints = append(f.endpoints, endpoint+":"+strings.Join(params["participants"], ","))
	f.mu.Unlock()

	rec := fmt.Sprintf(`{"endpoint":%q,"participants":%q}`, endpoint, strings.Join(params["participants"], ","))
	return &Page{Data: []json.RawMessage{json.RawMessage(rec)}}, nil
}

func TestCollectFansOutPerGroup(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	groups := [][]string{
		{"+15551112222"},
		{"+15553334444", "+15555556666"}, // group chat: messages only
		{"+15557778888"},
	}

	calls, messages, err := Collect(context.Background(), fc, "pn-1", groups, 4)
	require.NoError(t, err)

	// Calls are fetched only for 1:1 groups.
	assert.Len(t, calls, 2)
	assert.Len(t, messages, 3)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	for _, e := range fc.endpoints {
		if strings.HasPrefix(e, "calls:") {
			assert.NotContains(t, e, ",", "no calls fetch for multi-participant groups")
		}
	}
}

func TestCollectAllOrNothing(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{fail: true}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls, messages, err := Collect(ctx, fc, "pn-1", [][]string{{"+15551112222"}}, 2)
	require.Error(t, err)
	assert.Nil(t, calls, "partial results are discarded")
	assert.Nil(t, messages, "partial results are discarded")
}

func TestCollectEmptyGroups(t *testing.T) {
	t.Parallel()

	calls, messages, err := Collect(context.Background(), &fakeClient{}, "pn-1", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, calls)
	assert.Empty(t, messages)
}
