package lotteryd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVRFForwarderPostsRequest(t *testing.T) {
	var got vrfRequestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	forwarder := NewVRFForwarder(server.URL, time.Second)
	require.NoError(t, forwarder.Request("handle-1", "SOL", 3))
	require.Equal(t, vrfRequestBody{Handle: "handle-1", Asset: "SOL", RoundID: 3}, got)
}

func TestVRFForwarderRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	forwarder := NewVRFForwarder(server.URL, time.Second)
	require.Error(t, forwarder.Request("handle-1", "SOL", 3))
}

func TestVRFForwarderNoEndpointIsNoop(t *testing.T) {
	forwarder := NewVRFForwarder("", time.Second)
	require.NoError(t, forwarder.Request("handle-1", "SOL", 3))
}

func TestConfigFeedRates(t *testing.T) {
	feed, err := NewConfigFeed(map[string]string{"SOL/USD": "200.5"})
	require.NoError(t, err)

	rate, err := feed.Rate("SOL/USD")
	require.NoError(t, err)
	require.Equal(t, "401/2", rate.String())

	_, err = feed.Rate("ETH/USD")
	require.Error(t, err)

	_, err = NewConfigFeed(map[string]string{"SOL/USD": "-1"})
	require.Error(t, err)

	_, err = NewConfigFeed(map[string]string{"SOL/USD": "abc"})
	require.Error(t, err)
}
