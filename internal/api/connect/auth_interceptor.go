// Package connect provides the Connect RPC ShuffleService.
package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

const (
	// APITokenHeader is the header name for the API authentication token.
	APITokenHeader = "X-Api-Token"
)

var errInvalidToken = errors.New("invalid or missing API token")

// authInterceptor validates the API token of every unary and streaming call.
type authInterceptor struct {
	token string
}

// NewAuthInterceptor creates an interceptor that rejects requests whose
// X-Api-Token header does not match token.
func NewAuthInterceptor(token string) connect.Interceptor {
	return &authInterceptor{token: token}
}

func (a *authInterceptor) authorize(token string) error {
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
		return connect.NewError(connect.CodeUnauthenticated, errInvalidToken)
	}
	return nil
}

func (a *authInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if err := a.authorize(req.Header().Get(APITokenHeader)); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (a *authInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (a *authInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := a.authorize(conn.RequestHeader().Get(APITokenHeader)); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

// tokenInterceptor attaches the API token to outgoing calls.
type tokenInterceptor struct {
	token string
}

func (t *tokenInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		req.Header().Set(APITokenHeader, t.token)
		return next(ctx, req)
	}
}

func (t *tokenInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set(APITokenHeader, t.token)
		return conn
	}
}

func (t *tokenInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
