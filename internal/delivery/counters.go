package delivery

import "sync/atomic"

// Counters tracks delivery outcomes for the metrics surface. All fields are
// monotonic.
type Counters struct {
	Cycles            atomic.Uint64
	FetchFailures     atomic.Uint64
	Delivered         atomic.Uint64
	Suppressed        atomic.Uint64
	Absorbed          atomic.Uint64
	Retried           atomic.Uint64
	Fallbacks         atomic.Uint64
	TransportFailures atomic.Uint64
	ToolCalls         atomic.Uint64
	ToolFailures      atomic.Uint64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Cycles            uint64 `json:"cycles"`
	FetchFailures     uint64 `json:"fetch_failures"`
	Delivered         uint64 `json:"delivered"`
	Suppressed        uint64 `json:"suppressed"`
	Absorbed          uint64 `json:"absorbed"`
	Retried           uint64 `json:"retried"`
	Fallbacks         uint64 `json:"fallbacks"`
	TransportFailures uint64 `json:"transport_failures"`
	ToolCalls         uint64 `json:"tool_calls"`
	ToolFailures      uint64 `json:"tool_failures"`
}

// Snapshot returns a copy of the current counter values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Cycles:            c.Cycles.Load(),
		FetchFailures:     c.FetchFailures.Load(),
		Delivered:         c.Delivered.Load(),
		Suppressed:        c.Suppressed.Load(),
		Absorbed:          c.Absorbed.Load(),
		Retried:           c.Retried.Load(),
		Fallbacks:         c.Fallbacks.Load(),
		TransportFailures: c.TransportFailures.Load(),
		ToolCalls:         c.ToolCalls.Load(),
		ToolFailures:      c.ToolFailures.Load(),
	}
}
