package testutil

import (
	"context"
	"time"

	id "screenflow/pkg/domain"
	"screenflow/pkg/requestcontext"
)

// Ctx builds a request context with an actor and a fixed clock, the two
// things nearly every coordinator test needs.
func Ctx(actor id.UserID, role id.Role, at time.Time) context.Context {
	ctx := requestcontext.WithActor(context.Background(), actor, role, "")
	return requestcontext.WithTime(ctx, at)
}

// CtxAt rewinds or advances an existing context's clock, keeping the actor.
func CtxAt(ctx context.Context, at time.Time) context.Context {
	return requestcontext.WithTime(ctx, at)
}
