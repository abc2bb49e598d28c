// Package testutil provides common test utilities for service, handler, and
// integration tests.
package testutil

import (
	"context"
	"time"

	id "civreg/pkg/domain"
	"civreg/pkg/requestcontext"
)

// ClerkAt builds an actor context for a clerk stationed at the given office.
func ClerkAt(actorID, office string) requestcontext.ActorContext {
	return requestcontext.ActorContext{
		ID:     id.ActorID(actorID),
		Role:   id.RoleClerk,
		Office: id.OfficeID(office),
	}
}

// OfficerAt builds an actor context for a divisional officer whose duty
// station is the given office.
func OfficerAt(actorID, office string) requestcontext.ActorContext {
	return requestcontext.ActorContext{
		ID:     id.ActorID(actorID),
		Role:   id.RoleDivisionalOfficer,
		Office: id.OfficeID(office),
	}
}

// ContextWithActor returns a context carrying the actor and a fixed clock,
// simulating what the HTTP middleware chain does for authenticated requests.
func ContextWithActor(actor requestcontext.ActorContext, now time.Time) context.Context {
	ctx := requestcontext.WithActor(context.Background(), actor)
	return requestcontext.WithTime(ctx, now)
}
