package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Checkout traffic funnels order counters and popular products through the
// same documents, so contention retries stay bounded and a wall-time limit
// keeps a stuck commit from holding the request open.
const (
	txMaxAttempts = 5
	txTimeout     = 15 * time.Second
)

// TxFunc is executed within a Firestore transaction.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// RunTransaction executes fn within a transaction on the provided client,
// bounding retry attempts and total wall time.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc) error {
	if client == nil {
		return WrapError("transaction", errors.New("firestore: client is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}

	// Tighten the deadline only when the caller carries none or a laxer one.
	txnCtx := ctx
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > txTimeout {
		var cancel context.CancelFunc
		txnCtx, cancel = context.WithTimeout(ctx, txTimeout)
		defer cancel()
	}

	err := client.RunTransaction(txnCtx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, tx)
	}, firestore.MaxAttempts(txMaxAttempts))

	return WrapError("transaction", err)
}

// TxLookup reads ref inside the transaction and decodes the document into T.
// A missing document reports found=false rather than an error so callers
// decide whether absence is fatal.
func TxLookup[T any](tx *firestore.Transaction, ref *firestore.DocumentRef) (T, bool, error) {
	var doc T
	if tx == nil || ref == nil {
		return doc, false, errors.New("firestore: transaction and document ref are required")
	}

	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return doc, false, nil
		}
		return doc, false, err
	}
	if err := snap.DataTo(&doc); err != nil {
		return doc, false, fmt.Errorf("firestore: decode %s: %w", ref.Path, err)
	}
	return doc, true, nil
}
