package shared

import (
	"context"
	"strconv"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// Actor identifies the authenticated operator and their tenant garage.
type Actor struct {
	UserID   int64
	GarageID int64
}

// ActorFromContext derives the acting operator from the session. The zero
// Actor is returned when no authenticated session is present.
func ActorFromContext(ctx context.Context) Actor {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return Actor{}
	}
	var actor Actor
	if id, err := strconv.ParseInt(sess.User(), 10, 64); err == nil {
		actor.UserID = id
	}
	if id, err := strconv.ParseInt(sess.Get("garage_id"), 10, 64); err == nil {
		actor.GarageID = id
	}
	return actor
}
