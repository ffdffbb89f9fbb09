package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleTTL — через сколько простоя лимитер IP удаляется из пула.
const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool — токен-бакет на ключ (IP). Простаивающие лимитеры вычищаются при обращениях.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*visitor
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if burst <= 0 {
		burst = 1
	}
	return &limiterPool{
		m:     make(map[string]*visitor),
		rps:   rate.Limit(rps),
		burst: burst,
		now:   time.Now,
	}
}

func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if now.Sub(p.lastSweep) > limiterIdleTTL {
		for k, v := range p.m {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(p.m, k)
			}
		}
		p.lastSweep = now
	}
	v, ok := p.m[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(p.rps, p.burst)}
		p.m[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// RateLimitAPI ограничивает запросы по IP (rps в секунду, всплеск burst). 429 при превышении.
// rps <= 0 — лимит выключен.
func RateLimitAPI(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	pool := newLimiterPool(rps, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pool.allow(remoteIP(r)) {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"too many requests"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
