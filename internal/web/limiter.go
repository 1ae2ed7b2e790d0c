package web

import (
	"net/http"
	"sync"
	"time"

	"ladder/internal/util"

	"golang.org/x/time/rate"
)

// limiterSweepInterval is how often idle limiters are dropped.
const limiterSweepInterval = 10 * time.Minute

// submissionLimiter throttles game reports per claimant.
type submissionLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
	limiters  map[util.UUIDAsBlob]*rate.Limiter
}

func newSubmissionLimiter(perMinute float64, burst int) *submissionLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	if burst < 1 {
		burst = 1
	}

	return &submissionLimiter{
		limit:    limit,
		burst:    burst,
		now:      time.Now,
		limiters: make(map[util.UUIDAsBlob]*rate.Limiter),
	}
}

func (l *submissionLimiter) allow(playerID util.UUIDAsBlob) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	lim, ok := l.limiters[playerID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[playerID] = lim
	}

	return lim.AllowN(now, 1)
}

// sweep drops the limiters that refilled up to their burst, those behave
// exactly like a new one.
func (l *submissionLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < limiterSweepInterval {
		return
	}
	l.lastSweep = now

	for id, lim := range l.limiters {
		if lim.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, id)
		}
	}
}

// rateLimited must run after the authenticator.
func (s *Server) rateLimited(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := playerFromRequest(r)
		if ok && !s.limiter.allow(playerID) {
			w.Header().Set("Retry-After", "60")
			s.error(w, r, statusError{http.StatusTooManyRequests, "you are reporting games too fast, slow down"})
			return
		}

		h.ServeHTTP(w, r)
	})
}
