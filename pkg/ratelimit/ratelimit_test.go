package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginRateLimiter(t *testing.T) {
	t.Run("allows up to max attempts", func(t *testing.T) {
		rl := NewLoginRateLimiter(3, time.Minute)
		defer rl.Close()

		for i := 0; i < 3; i++ {
			assert.True(t, rl.Allow("1.2.3.4"), "attempt %d", i+1)
		}
		assert.False(t, rl.Allow("1.2.3.4"))
	})

	t.Run("ips are tracked independently", func(t *testing.T) {
		rl := NewLoginRateLimiter(1, time.Minute)
		defer rl.Close()

		assert.True(t, rl.Allow("1.1.1.1"))
		assert.False(t, rl.Allow("1.1.1.1"))
		assert.True(t, rl.Allow("2.2.2.2"))
	})

	t.Run("reset clears the counter", func(t *testing.T) {
		rl := NewLoginRateLimiter(1, time.Minute)
		defer rl.Close()

		assert.True(t, rl.Allow("1.2.3.4"))
		assert.False(t, rl.Allow("1.2.3.4"))

		rl.Reset("1.2.3.4")
		assert.True(t, rl.Allow("1.2.3.4"))
	})

	t.Run("window expiry resets the counter", func(t *testing.T) {
		rl := NewLoginRateLimiter(1, 20*time.Millisecond)
		defer rl.Close()

		assert.True(t, rl.Allow("1.2.3.4"))
		assert.False(t, rl.Allow("1.2.3.4"))

		time.Sleep(30 * time.Millisecond)
		assert.True(t, rl.Allow("1.2.3.4"))
	})

	t.Run("retry after within window", func(t *testing.T) {
		rl := NewLoginRateLimiter(1, time.Minute)
		defer rl.Close()

		rl.Allow("1.2.3.4")
		retry := rl.RetryAfterSeconds("1.2.3.4")
		assert.Greater(t, retry, 0)
		assert.LessOrEqual(t, retry, 61)

		assert.Equal(t, 0, rl.RetryAfterSeconds("5.6.7.8"))
	})
}

func TestExtractIP(t *testing.T) {
	t.Run("forwarded-for takes first ip", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/auth/login", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		assert.Equal(t, "203.0.113.7", ExtractIP(r))
	})

	t.Run("real-ip fallback", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/auth/login", nil)
		r.Header.Set("X-Real-IP", "203.0.113.9")
		assert.Equal(t, "203.0.113.9", ExtractIP(r))
	})

	t.Run("remote addr fallback", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/auth/login", nil)
		r.RemoteAddr = "198.51.100.2:54321"
		assert.NotEmpty(t, ExtractIP(r))
	})
}
