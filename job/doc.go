// Package job defines the job entity and the store interface.
//
// # Job Entity
//
// A [Job] represents a unit of work: a store-assigned monotone int64 ID,
// an opaque JSON payload, a lifecycle [Status], and an optional error
// message. The status set is closed:
//
//	ready → in-progress → (deleted on success)
//	ready → in-progress → failed
//	ready → in-progress → ready   (explicit requeue)
//
// There is no "succeeded" status. Successful completion removes the row
// from the active set; failed is the only terminal status and is the only
// status under which Message is set.
//
// # Store
//
// [Store] is the persistence contract. Every method is an individually
// atomic unit; [Store.ClaimNextJob] is the concurrency-critical one and
// must never hand the same job to two concurrent callers. Backends live
// under store/ (memory, postgres, sqlite, redis).
package job
