package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client is a client for the ShuffleService.
type Client struct {
	startSession *connect.Client[StartSessionRequest, SessionStatus]
	stopSession  *connect.Client[SessionRequest, Empty]
	next         *connect.Client[SessionRequest, StepResponse]
	prev         *connect.Client[SessionRequest, StepResponse]
	current      *connect.Client[SessionRequest, StepResponse]
	setRepeat    *connect.Client[SetRepeatRequest, SessionStatus]
	restart      *connect.Client[SessionRequest, SessionStatus]
	status       *connect.Client[SessionRequest, SessionStatus]
	listSessions *connect.Client[Empty, ListSessionsResponse]
	listSources  *connect.Client[Empty, ListSourcesResponse]
	subscribe    *connect.Client[SubscribeRequest, Notification]
}

// NewShuffleServiceClient creates a client for the ShuffleService served at
// baseURL (for example http://localhost:8080). Every call carries token.
func NewShuffleServiceClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(&tokenInterceptor{token: token}),
	}, opts...)

	return &Client{
		startSession: connect.NewClient[StartSessionRequest, SessionStatus](httpClient, baseURL+StartSessionProcedure, opts...),
		stopSession:  connect.NewClient[SessionRequest, Empty](httpClient, baseURL+StopSessionProcedure, opts...),
		next:         connect.NewClient[SessionRequest, StepResponse](httpClient, baseURL+NextProcedure, opts...),
		prev:         connect.NewClient[SessionRequest, StepResponse](httpClient, baseURL+PrevProcedure, opts...),
		current:      connect.NewClient[SessionRequest, StepResponse](httpClient, baseURL+CurrentProcedure, opts...),
		setRepeat:    connect.NewClient[SetRepeatRequest, SessionStatus](httpClient, baseURL+SetRepeatProcedure, opts...),
		restart:      connect.NewClient[SessionRequest, SessionStatus](httpClient, baseURL+RestartProcedure, opts...),
		status:       connect.NewClient[SessionRequest, SessionStatus](httpClient, baseURL+StatusProcedure, opts...),
		listSessions: connect.NewClient[Empty, ListSessionsResponse](httpClient, baseURL+ListSessionsProcedure, opts...),
		listSources:  connect.NewClient[Empty, ListSourcesResponse](httpClient, baseURL+ListSourcesProcedure, opts...),
		subscribe:    connect.NewClient[SubscribeRequest, Notification](httpClient, baseURL+SubscribeProcedure, opts...),
	}
}

// StartSession calls ShuffleService.StartSession.
func (c *Client) StartSession(ctx context.Context, req *StartSessionRequest) (*SessionStatus, error) {
	return unary(ctx, c.startSession, req)
}

// StopSession calls ShuffleService.StopSession.
func (c *Client) StopSession(ctx context.Context, sessionID string) error {
	_, err := unary(ctx, c.stopSession, &SessionRequest{SessionID: sessionID})
	return err
}

// Next calls ShuffleService.Next.
func (c *Client) Next(ctx context.Context, sessionID string) (*StepResponse, error) {
	return unary(ctx, c.next, &SessionRequest{SessionID: sessionID})
}

// Prev calls ShuffleService.Prev.
func (c *Client) Prev(ctx context.Context, sessionID string) (*StepResponse, error) {
	return unary(ctx, c.prev, &SessionRequest{SessionID: sessionID})
}

// Current calls ShuffleService.Current.
func (c *Client) Current(ctx context.Context, sessionID string) (*StepResponse, error) {
	return unary(ctx, c.current, &SessionRequest{SessionID: sessionID})
}

// SetRepeat calls ShuffleService.SetRepeat.
func (c *Client) SetRepeat(ctx context.Context, sessionID, mode string) (*SessionStatus, error) {
	return unary(ctx, c.setRepeat, &SetRepeatRequest{SessionID: sessionID, Mode: mode})
}

// Restart calls ShuffleService.Restart.
func (c *Client) Restart(ctx context.Context, sessionID string) (*SessionStatus, error) {
	return unary(ctx, c.restart, &SessionRequest{SessionID: sessionID})
}

// Status calls ShuffleService.Status.
func (c *Client) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	return unary(ctx, c.status, &SessionRequest{SessionID: sessionID})
}

// ListSessions calls ShuffleService.ListSessions.
func (c *Client) ListSessions(ctx context.Context) ([]SessionStatus, error) {
	resp, err := unary(ctx, c.listSessions, &Empty{})
	if err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// ListSources calls ShuffleService.ListSources.
func (c *Client) ListSources(ctx context.Context) ([]string, error) {
	resp, err := unary(ctx, c.listSources, &Empty{})
	if err != nil {
		return nil, err
	}
	return resp.Sources, nil
}

// Subscribe calls ShuffleService.Subscribe. The caller must close the
// returned stream.
func (c *Client) Subscribe(ctx context.Context, sessionID string) (*connect.ServerStreamForClient[Notification], error) {
	return c.subscribe.CallServerStream(ctx, connect.NewRequest(&SubscribeRequest{SessionID: sessionID}))
}

func unary[Req, Res any](ctx context.Context, client *connect.Client[Req, Res], req *Req) (*Res, error) {
	resp, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
