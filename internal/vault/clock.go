package vault

import "time"

// Clock supplies ledger time in unix seconds. Time gating (deposit windows,
// quote expiry, maturity) is evaluated against this clock at call time; there
// are no timers or background sweeps.
type Clock interface {
	Now() int64
}

// SystemClock reads the host's wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }
