package common

import (
	"context"
	"slices"
)

type ctxKey string

const (
	actorKey       ctxKey = "auth/actor"
	actorHolderKey ctxKey = "auth/actor-holder"
)

type actorHolder struct {
	actor Actor
	set   bool
}

// Permissions understood by the settlement API.
const (
	PermTransactionsCreate = "transactions:create"
	PermTransactionsVoid   = "transactions:void"
	PermTransactionsRefund = "transactions:refund"
	PermInventoryAdjust    = "inventory:adjust"
	PermCouponsManage      = "coupons:manage"
)

// Actor is the authenticated cashier, supervisor or service calling the API.
type Actor struct {
	ID          string   `json:"id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// Can reports whether the actor holds the permission.
func (a Actor) Can(permission string) bool {
	return slices.Contains(a.Permissions, permission) || slices.Contains(a.Permissions, "*")
}

// WithActor stores the authenticated actor on the provided context.
func WithActor(ctx context.Context, a Actor) context.Context {
	if h, ok := ctx.Value(actorHolderKey).(*actorHolder); ok {
		h.actor, h.set = a, true
	}
	return context.WithValue(ctx, actorKey, a)
}

// TrackActor lets outer middleware read the actor that authentication
// attaches further down the chain. The returned func is valid once the
// inner handler has returned.
func TrackActor(ctx context.Context) (context.Context, func() (Actor, bool)) {
	h := &actorHolder{}
	return context.WithValue(ctx, actorHolderKey, h), func() (Actor, bool) {
		return h.actor, h.set && h.actor.ID != ""
	}
}

// ActorFrom extracts the authenticated actor from the context if present.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	if !ok || a.ID == "" {
		return Actor{}, false
	}
	return a, true
}
