package controller

import (
	"context"
	"encoding/json"

	"github.com/devwallet/rpcbroker/internal/messenger"
	"github.com/devwallet/rpcbroker/internal/pending"
	"github.com/devwallet/rpcbroker/internal/types"
)

// RegisterHandlers wires the messenger topics of both contexts to the router and the pending queue.
func RegisterHandlers(router *Router, queue *pending.Queue, inpage, wallet messenger.Messenger) {
	wallet.Reply(types.TopicPendingRequest, func(_ context.Context, payload json.RawMessage) (interface{}, error) {
		var decision types.Decision
		if err := json.Unmarshal(payload, &decision); err != nil {
			return nil, types.NewRPCError(types.InvalidParamsCode, err.Error(), nil)
		}
		if err := decision.Validate(); err != nil {
			return nil, types.NewRPCError(types.InvalidParamsCode, err.Error(), nil)
		}
		return queue.Resolve(decision), nil
	})

	wallet.Reply(types.TopicPendingRequestClosed, func(_ context.Context, payload json.RawMessage) (interface{}, error) {
		var signal types.ClosedSignal
		if err := json.Unmarshal(payload, &signal); err != nil {
			return nil, types.NewRPCError(types.InvalidParamsCode, err.Error(), nil)
		}
		return queue.RemoveRequest(signal.Request), nil
	})

	wallet.Reply(types.TopicRequest, func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		var env types.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, types.NewRPCError(types.ParseErrorCode, err.Error(), nil)
		}
		env.Sender.Tab = nil
		return router.Handle(ctx, env.Request, env.Sender, env.RPCURL), nil
	})

	inpage.Reply(types.TopicRequest, func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		var env types.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, types.NewRPCError(types.ParseErrorCode, err.Error(), nil)
		}
		return router.Handle(ctx, env.Request, types.PageSender(messenger.Origin(ctx)), ""), nil
	})
}
