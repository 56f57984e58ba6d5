package actorctx

import "context"

type ctxKey string

const keyUserID ctxKey = "user_id"

// WithUserID attaches the authenticated user's id to ctx so code below the
// HTTP layer can read it without knowing about gin.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

func UserIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyUserID).(string)

	return v, ok && v != ""
}
