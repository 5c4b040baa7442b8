package conn

import "sync/atomic"

// counters are updated by the Manager without locking.
type counters struct {
	queries      atomic.Uint64
	executes     atomic.Uint64
	failures     atomic.Uint64
	retries      atomic.Uint64
	connects     atomic.Uint64
	transactions atomic.Uint64
}

// Stats is a snapshot of a Manager's activity.
type Stats struct {
	Queries      uint64 // reads run
	Executes     uint64 // writes run
	Failures     uint64 // statements that returned an error to the caller
	Retries      uint64 // reconnect-and-retry cycles after a broken link
	Connects     uint64 // handles opened, reconnects included
	Transactions uint64 // outermost transactions started
}

func (c *counters) snapshot() Stats {
	return Stats{
		Queries:      c.queries.Load(),
		Executes:     c.executes.Load(),
		Failures:     c.failures.Load(),
		Retries:      c.retries.Load(),
		Connects:     c.connects.Load(),
		Transactions: c.transactions.Load(),
	}
}
