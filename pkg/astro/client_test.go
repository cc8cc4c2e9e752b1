package astro

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMatch_Success(t *testing.T) {
	t.Parallel()

	want := MatchResult{
		KernelScore: 32.5,
		PowerScore:  28.0,
		GlitchScore: 11.0,
		TotalScore:  71.5,
		MatchType:   "complementary",
		Tags:        []string{"venus_trine_mars"},
		CardColor:   "#7b2ff7",
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/compute-match", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req pairRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "u1", req.UserA.UserID)
		assert.Equal(t, "u2", req.UserB.UserID)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	got, err := client.ComputeMatch(context.Background(),
		Subject{UserID: "u1", BirthDate: "1990-01-01", Timezone: "UTC"},
		Subject{UserID: "u2", BirthDate: "1992-06-15", Timezone: "UTC"},
	)

	require.NoError(t, err)
	assert.InDelta(t, want.TotalScore, got.TotalScore, 1e-9)
	assert.Equal(t, want.MatchType, got.MatchType)
	assert.Equal(t, want.Tags, got.Tags)
}

func TestQuickScore_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quick-score", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(QuickScoreResult{
			Harmony:      81.2,
			Lust:         44.0,
			Soul:         67.9,
			PrimaryTrack: "soul",
			Quadrant:     "deep_calm",
			Tracks:       map[string]float64{"harmony": 81.2},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	got, err := client.QuickScore(context.Background(), Subject{UserID: "a"}, Subject{UserID: "b"})

	require.NoError(t, err)
	assert.InDelta(t, 81.2, got.Harmony, 1e-9)
	assert.Equal(t, "soul", got.PrimaryTrack)
	assert.InDelta(t, 81.2, got.Tracks["harmony"], 1e-9)
}

func TestCalculateChart_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calculate-chart", r.URL.Path)

		var req ChartRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1994-03-12", req.BirthDate)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Chart{
			SunSign:       "pisces",
			MoonSign:      "leo",
			AscendantSign: "virgo",
			AscendantDeg:  0.4,
			BoundaryCase:  true,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	got, err := client.CalculateChart(context.Background(), ChartRequest{BirthDate: "1994-03-12", Timezone: "UTC"})

	require.NoError(t, err)
	assert.Equal(t, "virgo", got.AscendantSign)
	assert.True(t, got.BoundaryCase)
}

func TestPost_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"ephemeris unavailable"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.ComputeMatch(context.Background(), Subject{}, Subject{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "ephemeris unavailable")
}

func TestPost_NoRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.QuickScore(context.Background(), Subject{}, Subject{})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "failed calls are never retried")
}

func TestPost_MalformedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.CalculateChart(context.Background(), ChartRequest{})
	assert.Error(t, err)
}

func TestPost_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := NewClient(srv.URL)
	_, err := client.ComputeMatch(ctx, Subject{}, Subject{})
	assert.Error(t, err)
}

func TestWithRateLimit_SpacesCalls(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(QuickScoreResult{})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRateLimit(20))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.QuickScore(context.Background(), Subject{}, Subject{})
		require.NoError(t, err)
	}
	// Burst of 1 at 20 rps: the second and third calls wait ~50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
