package redis

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter provides per-IP rate limiting over a rolling minute
// window. Counters live in Redis when a client is present so limits
// hold across replicas; otherwise an in-memory map approximates them.
type RateLimiter struct {
	rpm        int
	client     *Client
	inMemMu    sync.Mutex
	inMemCount map[string]int
	inMemTTL   time.Time
}

// NewRateLimiter creates a limiter allowing rpm requests per minute per
// IP. rpm <= 0 disables limiting. client may be nil.
func NewRateLimiter(rpm int, client *Client) *RateLimiter {
	return &RateLimiter{rpm: rpm, client: client, inMemCount: map[string]int{}}
}

func minuteKey(ip string) string {
	return fmt.Sprintf("ratelimit:%s:%d", ip, time.Now().Unix()/60)
}

// Allow returns whether the request is allowed and the remaining quota.
func (r *RateLimiter) Allow(ip string) (bool, int) {
	if r.rpm <= 0 {
		return true, r.rpm
	}
	if r.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		key := minuteKey(ip)
		n, err := r.client.rdb.Incr(ctx, key).Result()
		if err != nil {
			// Redis trouble must not block requests
			return r.allowInMem(ip)
		}
		// Expiry slightly over a minute so the window key self-cleans
		if n == 1 {
			_ = r.client.rdb.Expire(ctx, key, 65*time.Second).Err()
		}
		return int(n) <= r.rpm, r.rpm - int(n)
	}
	return r.allowInMem(ip)
}

func (r *RateLimiter) allowInMem(ip string) (bool, int) {
	now := time.Now()
	r.inMemMu.Lock()
	defer r.inMemMu.Unlock()
	if now.Sub(r.inMemTTL) > 60*time.Second {
		r.inMemCount = map[string]int{}
		r.inMemTTL = now
	}
	r.inMemCount[ip]++
	n := r.inMemCount[ip]
	return n <= r.rpm, r.rpm - n
}

// GetClientIP extracts the client IP from proxy headers or RemoteAddr.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return strings.TrimSpace(rip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
