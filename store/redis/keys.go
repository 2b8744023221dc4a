package redis

import "strconv"

// Redis key naming conventions. All keys are prefixed with "pgqueue:"
// to avoid collisions.

const keyPrefix = "pgqueue:"

// jobKey returns the Hash key for one job: pgqueue:job:{id}
func jobKey(id int64) string { return keyPrefix + "job:" + strconv.FormatInt(id, 10) }

// readyKey is the Sorted Set of ready job IDs, scored by ID so that
// ZPOPMIN yields the oldest job first.
const readyKey = keyPrefix + "ready"

// seqKey is the counter the store INCRs to assign monotone job IDs.
const seqKey = keyPrefix + "seq"
