// internal/app/system/txn/txn.go

// Package txn wraps the paired membership writes (user document + club
// document) in a MongoDB multi-document transaction where the deployment
// supports one. Standalone servers reject sessions/transactions; in that
// case the callback is re-run outside a transaction so the two writes land
// sequentially, which is the original (non-transactional) behavior.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Mongo command error codes returned when transactions are unavailable:
// 20 IllegalOperation variants on standalone, 51 IllegalOperation,
// 263 OperationNotSupportedInTransaction.
var notSupportedCodes = map[int32]struct{}{
	20:  {},
	51:  {},
	263: {},
}

// IsNotSupported reports whether err indicates the server cannot run
// multi-document transactions (standalone deployment, old server).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		_, hit := notSupportedCodes[cmdErr.Code]
		return hit
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "transaction") {
		if strings.Contains(msg, "replica set") ||
			strings.Contains(msg, "session") ||
			strings.Contains(msg, "illegal operation") {
			return true
		}
	}
	if strings.Contains(msg, "session") && strings.Contains(msg, "not supported") {
		return true
	}
	return false
}

// WithTransaction runs fn inside a transaction when possible. When the
// deployment does not support sessions or transactions, fn runs once with
// the plain context and its writes apply sequentially.
func WithTransaction(ctx context.Context, client *mongo.Client, log *zap.Logger, fn func(ctx context.Context) error) error {
	session, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			if log != nil {
				log.Debug("sessions unsupported; running writes sequentially")
			}
			return fn(ctx)
		}
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		if log != nil {
			log.Debug("transactions unsupported; running writes sequentially")
		}
		return fn(ctx)
	}
	return err
}
