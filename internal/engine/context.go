package engine

import "context"

type sendArgKey struct{}

// WithSendArg injects the per-branch Send.Arg for the node about to
// run, mirroring the teacher's WithResumeValue/GetResumeValue pattern
// in graph/context.go. Exported so node packages can construct a
// context for their unit tests without running a full superstep.
func WithSendArg(ctx context.Context, arg any) context.Context {
	if arg == nil {
		return ctx
	}
	return context.WithValue(ctx, sendArgKey{}, arg)
}

// SendArg retrieves the Send.Arg the current node was dispatched with,
// or nil if it was reached via a plain edge.
func SendArg(ctx context.Context) any {
	return ctx.Value(sendArgKey{})
}
