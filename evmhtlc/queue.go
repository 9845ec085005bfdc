package evmhtlc

import (
	"context"
	"crypto/ecdsa"

	"github.com/lightningnetwork/lnd/queue"
)

// ClaimRequest is one pending claim() submission.
type ClaimRequest struct {
	Key                         *ecdsa.PrivateKey
	HTLCID, SUser, SLp1, SLp2   [32]byte
	Done                        chan error
}

// ClaimQueue serializes claim submissions against one Client through a
// single worker, so concurrent reveals from the watcher never race
// each other's nonce allocation. Built on lnd/queue.ConcurrentQueue,
// the same unbounded producer/consumer primitive lnd uses to
// decouple a fast-path goroutine from a slower worker.
type ClaimQueue struct {
	client *Client
	cq     *queue.ConcurrentQueue
	cancel context.CancelFunc
}

// NewClaimQueue starts the worker goroutine. Call Stop when done.
func NewClaimQueue(client *Client) *ClaimQueue {
	cq := queue.NewConcurrentQueue(50)
	cq.Start()

	ctx, cancel := context.WithCancel(context.Background())
	q := &ClaimQueue{client: client, cq: cq, cancel: cancel}
	go q.run(ctx)
	return q
}

func (q *ClaimQueue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-q.cq.ChanOut():
			if !ok {
				return
			}
			req := item.(ClaimRequest)
			_, err := q.client.Claim(ctx, req.Key, req.HTLCID, req.SUser, req.SLp1, req.SLp2)
			if req.Done != nil {
				req.Done <- err
			}
		}
	}
}

// Submit enqueues a claim request and returns without blocking on the
// transaction landing; pass a buffered Done channel to observe the
// result.
func (q *ClaimQueue) Submit(req ClaimRequest) {
	q.cq.ChanIn() <- req
}

// Stop halts the worker goroutine and the underlying queue.
func (q *ClaimQueue) Stop() {
	q.cancel()
	q.cq.Stop()
}
