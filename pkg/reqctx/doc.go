// Package reqctx carries request-scoped values through context.Context.
//
// HTTP middleware sets them; services and loggers read them:
//
//	ctx = reqctx.WithRequestMeta(ctx, &reqctx.RequestMeta{RequestID: id})
//	ctx = reqctx.WithSessionID(ctx, sessionID)
//
//	sid := reqctx.SessionIDFromContext(ctx)
//
// RequestMeta is set for every request. The session id is only set on
// routes behind the client session middleware.
package reqctx
