package errordata

import (
	"context"
)

type key struct{}

var errorDataKey key

// ErrorData carries the error a handler reported so the request logger can
// attach it to the access line.
type ErrorData struct {
	Message string
	Status  int
}

func WithErrorData(ctx context.Context) context.Context {
	ed := &ErrorData{Message: ""}
	return context.WithValue(ctx, errorDataKey, ed)
}

func GetErrorData(ctx context.Context) *ErrorData {
	val := ctx.Value(errorDataKey)
	ed, ok := val.(*ErrorData)
	if !ok {
		return nil
	}
	return ed
}

func (ed *ErrorData) SetMessage(status int, msg string) {
	ed.Status = status
	ed.Message = msg
}

func (ed *ErrorData) HasMessage() bool {
	return ed.Message != ""
}
