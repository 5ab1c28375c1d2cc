package observability

// Metrics receives timing and counter events from the orchestration
// service, the HTTP middleware and the ingestion consumer.
type Metrics interface {
	ObserveQuery(op, source string, durMs float64)
	ObserveWrite(op string, durMs float64)
	ObserveHTTP(method, route string, status int, durMs float64)
	ObserveConsumer(processMs float64, ok bool)
	IncCacheHit()
	IncCacheMiss()
}

type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) ObserveQuery(string, string, float64)     {}
func (Noop) ObserveWrite(string, float64)             {}
func (Noop) ObserveHTTP(string, string, int, float64) {}
func (Noop) ObserveConsumer(float64, bool)            {}
func (Noop) IncCacheHit()                             {}
func (Noop) IncCacheMiss()                            {}
