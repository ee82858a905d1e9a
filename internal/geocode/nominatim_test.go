package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReverse(t *testing.T) {
	res, err := parseReverse(nominatimReverse{
		DisplayName: "MG Road, Shivajinagar, Bengaluru",
		Address: map[string]string{
			"neighbourhood":  "Shivajinagar",
			"city_district":  "East Zone",
			"city":           "Bengaluru",
			"state_district": "Bangalore Urban",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Shivajinagar", res.Area)
	assert.Equal(t, "East Zone", res.District)
	assert.Equal(t, "MG Road, Shivajinagar, Bengaluru", res.Full)
}

func TestParseReverseMissingParts(t *testing.T) {
	res, err := parseReverse(nominatimReverse{DisplayName: "Somewhere", Address: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, Unknown, res.Area)
	assert.Equal(t, Unknown, res.District)
}

func TestParseReverseNotFound(t *testing.T) {
	_, err := parseReverse(nominatimReverse{Error: "Unable to geocode"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReverseCachesByRoundedCoordinates(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"display_name":"Koramangala","address":{"suburb":"Koramangala","city_district":"South"}}`))
	}))
	defer srv.Close()

	g := &NominatimGeocoder{BaseURL: srv.URL, UserAgent: "test-agent", MinInterval: 1}
	first, err := g.Reverse(context.Background(), 12.93521, 77.62448)
	require.NoError(t, err)
	second, err := g.Reverse(context.Background(), 12.93524, 77.62449)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "Koramangala", first.Area)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestReverseRejectsInvalidCoordinates(t *testing.T) {
	g := &NominatimGeocoder{}
	_, err := g.Reverse(context.Background(), 95, 10)
	require.Error(t, err)
}
