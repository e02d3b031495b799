package core

import "context"

type runtimeKey struct{}

// withRuntime stashes the node runtime in the context handed to dispatched
// service methods. The client path uses it to detect that it is executing
// inside a node and must take the re-entrant path.
func withRuntime(ctx context.Context, rt *nodeRuntime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

func runtimeFrom(ctx context.Context) *nodeRuntime {
	rt, _ := ctx.Value(runtimeKey{}).(*nodeRuntime)
	return rt
}
