// Package engine runs the registrar's triggers: reactive handlers that
// consume the change log and keep derived data consistent after commit.
//
// ARCHITECTURE:
//
// Subscriptions:
// Each (trigger, collection) pair is an independent subscription with a
// durable cursor in the store. Run starts one goroutine per subscription;
// each consumes its events single-threaded and in seq order, so a trigger
// never sees events of one collection out of order. A stalled or failing
// subscription never blocks the others or the coordinator.
//
// Event Processing Flow:
//  1. Subscription reads the next event after its cursor
//  2. Trigger.Match decides whether the event concerns it
//  3. Writing triggers pass the cycle checks (origin, guard, depth quota)
//  4. Trigger.Handle runs under a Cause naming the trigger
//  5. The cursor is saved
//
// A failed handle leaves the cursor where it was. The subscription waits
// the retry delay and resumes from the durable cursor, which redelivers
// the failed event. Handlers are therefore idempotent.
//
// CYCLE AVOIDANCE:
//
// Triggers that write through the coordinator can cause events that
// trigger them again. Three checks bound this:
//   - Self-origin: an event caused by the trigger itself is skipped
//   - CycleGuard: an identical (flow, trigger, entity, fingerprint) repeat
//     is skipped
//   - DepthQuota: an event at or beyond the maximum cascade depth is
//     skipped and logged
//
// Together they guarantee every flow terminates.
//
// Drain processes all pending events synchronously. Tests, the scenario
// harness and `registrar run --once` use it instead of Run; the two must
// not be used on the same engine at the same time.
package engine
