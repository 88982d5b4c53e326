package compliance

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	dErrors "bastion/pkg/domain-errors"
)

// numSubjectShards spreads read-modify-write consent operations across
// independent mutexes keyed by subject.
const numSubjectShards = 128

const defaultLockTimeout = 5 * time.Second

type subjectLocks struct {
	shards  [numSubjectShards]sync.Mutex
	timeout time.Duration
}

// run executes fn while holding the shard for subjectID. A context that is
// already done, or finishes while waiting, aborts with CodeTimeout.
func (l *subjectLocks) run(ctx context.Context, subjectID string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation aborted: context cancelled")
	}
	timeout := l.timeout
	if timeout == 0 {
		timeout = defaultLockTimeout
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	mu := &l.shards[shardFor(subjectID)]
	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation aborted: context cancelled")
	}
	return fn(ctx)
}

func shardFor(subjectID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subjectID))
	return h.Sum32() % numSubjectShards
}
