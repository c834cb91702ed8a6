package requestdata

import (
	"context"

	"github.com/google/uuid"

	"github.com/slotter-org/gemini-chat/internal/session"
)

type key struct{}

var requestDataKey key

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey)
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// RequestData is what the session middleware resolved for this request.
type RequestData struct {
	TokenString string
	SessionID   uuid.UUID
	Session     *session.Session
}

// GetSession is a shortcut for handlers behind RequireSession.
func GetSession(ctx context.Context) *session.Session {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.Session
	}
	return nil
}
