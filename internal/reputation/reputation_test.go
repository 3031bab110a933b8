package reputation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesentry/safesentry/internal/circuitbreaker"
)

const testAddr = "0x1111111111111111111111111111111111111111"

func TestScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/address/"+testAddr+"/score", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"address": "` + testAddr + `", "score": 83}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test")
	score, err := c.Score(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, 83, score)
}

func TestScoreNotConfigured(t *testing.T) {
	c := NewClient("", "")
	assert.False(t, c.Configured())

	_, err := c.Score(context.Background(), testAddr)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestScoreServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Score(context.Background(), testAddr)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestScoreOutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"score": 150}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Score(context.Background(), testAddr)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestScoreBreakerOpensAfterFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := circuitbreaker.New(2, time.Minute)
	c := NewClient(srv.URL, "", WithBreaker(breaker))

	for range 3 {
		_, err := c.Score(context.Background(), testAddr)
		assert.ErrorIs(t, err, ErrUnavailable)
	}

	// Third call was rejected by the open circuit without hitting the wire.
	assert.Equal(t, 2, calls)
}
