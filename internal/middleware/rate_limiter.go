package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/augustodevcode/bidexpert-engine/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Bid rate limiter ──────────────────────────────────────────────────────────

// bidEntry tracks bid submissions per user within a sliding window.
type bidEntry struct {
	count     int
	windowEnd time.Time
	mu        sync.Mutex
}

var (
	bidMap   = make(map[string]*bidEntry)
	bidMapMu sync.Mutex
)

// BidRateLimiter limits bid submissions to 30 per 10 seconds per user.
// Keyed on the authenticated user, not the IP: bidders behind the same NAT
// must not throttle each other during a closing war.
func BidRateLimiter() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if claims := GetClaims(c); claims != nil {
			key = claims.UserID
		}

		bidMapMu.Lock()
		entry, exists := bidMap[key]
		if !exists {
			entry = &bidEntry{}
			bidMap[key] = entry
		}
		bidMapMu.Unlock()

		entry.mu.Lock()
		defer entry.mu.Unlock()

		now := time.Now()
		if now.After(entry.windowEnd) {
			// Reset sliding window
			entry.count = 0
			entry.windowEnd = now.Add(10 * time.Second)
		}

		entry.count++
		if entry.count > 30 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("too many bids, slow down"))
			return
		}
		c.Next()
	}
}

// ── General API rate limiter ──────────────────────────────────────────────────

// rateEntry tracks request counts per IP for the general API limiter.
type rateEntry struct {
	count     int
	windowEnd time.Time
	mu        sync.Mutex
}

var (
	apiRateMap   = make(map[string]*rateEntry)
	apiRateMapMu sync.Mutex
)

// RateLimiter returns a general-purpose sliding-window rate limiter.
// Default: 1000 requests per minute per IP — adjust limit / window as needed.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		apiRateMapMu.Lock()
		entry, exists := apiRateMap[ip]
		if !exists {
			entry = &rateEntry{}
			apiRateMap[ip] = entry
		}
		apiRateMapMu.Unlock()

		entry.mu.Lock()
		defer entry.mu.Unlock()

		now := time.Now()
		if now.After(entry.windowEnd) {
			entry.count = 0
			entry.windowEnd = now.Add(window)
		}

		entry.count++
		if entry.count > limit {
			c.Header("Retry-After", entry.windowEnd.Format(time.RFC1123))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("too many requests, try again shortly"))
			return
		}
		c.Next()
	}
}

// ── Purge goroutine ───────────────────────────────────────────────────────────
// Periodically removes expired entries from both rate limiter maps to prevent
// memory leaks from accumulating keys that never return.

const purgeInterval = 5 * time.Minute

func init() {
	go purgeExpiredEntries()
}

func purgeExpiredEntries() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()

		// Purge bid rate limiter map
		bidMapMu.Lock()
		purgedBid := 0
		for key, entry := range bidMap {
			entry.mu.Lock()
			if now.After(entry.windowEnd) {
				delete(bidMap, key)
				purgedBid++
			}
			entry.mu.Unlock()
		}
		bidMapMu.Unlock()

		// Purge API rate limiter map
		apiRateMapMu.Lock()
		purgedAPI := 0
		for ip, entry := range apiRateMap {
			entry.mu.Lock()
			if now.After(entry.windowEnd) {
				delete(apiRateMap, ip)
				purgedAPI++
			}
			entry.mu.Unlock()
		}
		apiRateMapMu.Unlock()

		if purgedBid > 0 || purgedAPI > 0 {
			log.Debug().
				Int("bid_entries_purged", purgedBid).
				Int("api_entries_purged", purgedAPI).
				Int("bid_entries_remaining", len(bidMap)).
				Int("api_entries_remaining", len(apiRateMap)).
				Msg("rate limiter maps purged")
		}
	}
}
