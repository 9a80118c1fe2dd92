package storage

// Health is a storage provider's availability state.
type Health int32

const (
	Healthy Health = iota
	Recovering
	Unhealthy
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Recovering:
		return "recovering"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// next returns the state after a health observation. Any failure makes a
// provider unhealthy; an unhealthy provider needs two consecutive successful
// checks (via recovering) before it serves traffic again.
func next(cur Health, ok bool) Health {
	switch {
	case !ok:
		return Unhealthy
	case cur == Unhealthy:
		return Recovering
	default:
		return Healthy
	}
}
