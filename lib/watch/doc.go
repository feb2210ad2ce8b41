// Package watch implements change notification for keys of a data store that can
// only be polled. It turns the question "did this key change?" into a callback based
// subscription with a cancelable handle.
//
// Key Components:
//
//   - Poller: Runs one background loop per subscription. Each tick reads the key
//     through an IValueReader, compares the decoded value with the last known one
//     (deep comparison with go-cmp) and fires the subscription's Slot on change.
//     Reads of the same key issued by different subscriptions at the same time are
//     collapsed with singleflight.
//
//   - Connection: The handle returned by OnUpdate. Connected starts true and turns
//     false exactly once, either through Disconnect or because the owning Poller was
//     closed. Its context bounds the lifetime of the poll loop.
//
//   - Slot: A single callback with isolated invocation. A panicking callback is
//     recovered and reported as *SubscriberError, the poll loop is never affected.
//
// Polling Cadence:
//
//	Every successful read records its round trip time into a per-subscription
//	util.RunningAverage. The next interval is average * LatencyMultiplier, bounded by
//	MinInterval and MaxInterval (see Config). Failed reads are skipped: no latency
//	sample, no comparison, the loop simply retries on the next interval. A subscription
//	never ends because of read failures.
//
// Ordering:
//
//	Within one subscription notifications are delivered in the order the changes were
//	detected, the last known value is updated before the callback runs. There is no
//	ordering across subscriptions. A read that is still in flight when the subscription
//	is disconnected completes but its result is discarded.
package watch
