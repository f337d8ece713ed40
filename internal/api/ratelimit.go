// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter applies a token bucket per client IP. Used on the login
// endpoint, which deserves a much tighter budget than the general API
// limit because every request costs a bcrypt comparison.
type ipLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*ipBucket
	limit    rate.Limit
	burst    int
	lastScan time.Time
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const ipBucketIdleEviction = 10 * time.Minute

// newIPLimiter allows perMinute requests per IP with a burst of the same
// size.
func newIPLimiter(perMinute int) *ipLimiter {
	return &ipLimiter{
		buckets:  make(map[string]*ipBucket),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
		lastScan: time.Now(),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, ok := l.buckets[ip]
	if !ok {
		bucket = &ipBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = bucket
	}
	bucket.lastSeen = now

	// Piggyback eviction of idle buckets on regular traffic.
	if now.Sub(l.lastScan) > ipBucketIdleEviction {
		l.lastScan = now
		for key, b := range l.buckets {
			if now.Sub(b.lastSeen) > ipBucketIdleEviction {
				delete(l.buckets, key)
			}
		}
	}
	return bucket.limiter.Allow()
}

// Middleware rejects over-limit requests with 429.
func (l *ipLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !l.allow(ip) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
