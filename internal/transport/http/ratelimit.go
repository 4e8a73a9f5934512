package http

import "golang.org/x/time/rate"

// inboundLimiter caps the rate of frames read from one connection.
// A nil limiter allows everything.
type inboundLimiter struct {
	lim *rate.Limiter
}

func newInboundLimiter(perSecond float64, burst int) *inboundLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &inboundLimiter{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *inboundLimiter) allow() bool {
	if l == nil {
		return true
	}
	return l.lim.Allow()
}
