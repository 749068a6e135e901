package engine

import (
	"context"
	"fmt"

	"kassa/internal/models"
)

// PreconditionError marks an operation that is malformed beyond repair:
// retrying it can never succeed, so the drain loop drops it instead of
// looping on it forever.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

// executeOperation translates one queued operation into remote writes.
func (e *Engine) executeOperation(ctx context.Context, op *models.QueuedOperation) error {
	switch op.Kind {
	case models.OpInsert:
		payload, err := models.DecodeCrudPayload(op.Payload)
		if err != nil {
			return &PreconditionError{Reason: fmt.Sprintf("decode payload: %v", err)}
		}
		if _, err := e.backend.Insert(ctx, op.Resource, payload.Values); err != nil {
			return err
		}
		return nil

	case models.OpUpdate:
		payload, err := models.DecodeCrudPayload(op.Payload)
		if err != nil {
			return &PreconditionError{Reason: fmt.Sprintf("decode payload: %v", err)}
		}
		if payload.ID == 0 {
			return &PreconditionError{Reason: "update requires an explicit id"}
		}
		return e.backend.Update(ctx, op.Resource, payload.ID, payload.Values)

	case models.OpDelete:
		payload, err := models.DecodeCrudPayload(op.Payload)
		if err != nil {
			return &PreconditionError{Reason: fmt.Sprintf("decode payload: %v", err)}
		}
		if payload.ID == 0 {
			return &PreconditionError{Reason: "delete requires an explicit id"}
		}
		return e.backend.Delete(ctx, op.Resource, payload.ID)

	case models.OpRPC:
		payload, err := models.DecodeRPCPayload(op.Payload)
		if err != nil {
			return &PreconditionError{Reason: fmt.Sprintf("decode payload: %v", err)}
		}
		_, err = e.backend.CallRPC(ctx, op.Resource, payload.Args)
		return err

	case models.OpSaleTransaction:
		return e.executeSale(ctx, op)

	default:
		return &PreconditionError{Reason: "unknown operation kind " + op.Kind}
	}
}
