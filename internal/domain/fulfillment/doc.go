// Package fulfillment contains the order fulfillment bounded context.
//
// Key concepts:
//   - Order: aggregate root holding the lifecycle status, the WMS sync state
//     and an immutable snapshot of what the customer ordered
//   - OrderStatus: the lifecycle state machine (queue, testing, pending,
//     confirmed, cancelled, hold, sync_error)
//   - OrderRepository: persistence port; every status write is guarded by
//     the status the caller read
package fulfillment
