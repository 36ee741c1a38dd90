package connect

import (
	"context"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/app/notification"
	"github.com/osa030/shufflebox/internal/app/session"
)

// ServiceName is the fully-qualified name of the ShuffleService.
const ServiceName = "shufflebox.v1.ShuffleService"

// Procedure paths of the ShuffleService.
const (
	StartSessionProcedure = "/" + ServiceName + "/StartSession"
	StopSessionProcedure  = "/" + ServiceName + "/StopSession"
	NextProcedure         = "/" + ServiceName + "/Next"
	PrevProcedure         = "/" + ServiceName + "/Prev"
	CurrentProcedure      = "/" + ServiceName + "/Current"
	SetRepeatProcedure    = "/" + ServiceName + "/SetRepeat"
	RestartProcedure      = "/" + ServiceName + "/Restart"
	StatusProcedure       = "/" + ServiceName + "/Status"
	ListSessionsProcedure = "/" + ServiceName + "/ListSessions"
	ListSourcesProcedure  = "/" + ServiceName + "/ListSources"
	SubscribeProcedure    = "/" + ServiceName + "/Subscribe"
)

// SourceNames lists the configured sources.
type SourceNames interface {
	Names() []string
}

// ShuffleService implements the ShuffleService RPC.
type ShuffleService struct {
	sessions *session.Manager
	sources  SourceNames
	notifier *notification.Manager

	done      chan struct{}
	closeOnce sync.Once
}

// NewShuffleService creates a new ShuffleService.
func NewShuffleService(sessions *session.Manager, sources SourceNames, notifier *notification.Manager) *ShuffleService {
	return &ShuffleService{
		sessions: sessions,
		sources:  sources,
		notifier: notifier,
		done:     make(chan struct{}),
	}
}

// Handler returns the path prefix and handler serving every procedure.
func (s *ShuffleService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(StartSessionProcedure, connect.NewUnaryHandler(StartSessionProcedure, s.StartSession, opts...))
	mux.Handle(StopSessionProcedure, connect.NewUnaryHandler(StopSessionProcedure, s.StopSession, opts...))
	mux.Handle(NextProcedure, connect.NewUnaryHandler(NextProcedure, s.Next, opts...))
	mux.Handle(PrevProcedure, connect.NewUnaryHandler(PrevProcedure, s.Prev, opts...))
	mux.Handle(CurrentProcedure, connect.NewUnaryHandler(CurrentProcedure, s.Current, opts...))
	mux.Handle(SetRepeatProcedure, connect.NewUnaryHandler(SetRepeatProcedure, s.SetRepeat, opts...))
	mux.Handle(RestartProcedure, connect.NewUnaryHandler(RestartProcedure, s.Restart, opts...))
	mux.Handle(StatusProcedure, connect.NewUnaryHandler(StatusProcedure, s.Status, opts...))
	mux.Handle(ListSessionsProcedure, connect.NewUnaryHandler(ListSessionsProcedure, s.ListSessions, opts...))
	mux.Handle(ListSourcesProcedure, connect.NewUnaryHandler(ListSourcesProcedure, s.ListSources, opts...))
	mux.Handle(SubscribeProcedure, connect.NewServerStreamHandler(SubscribeProcedure, s.Subscribe, opts...))

	return "/" + ServiceName + "/", mux
}

// Close ends every open subscription stream.
func (s *ShuffleService) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// StartSession starts a session over a configured source.
func (s *ShuffleService) StartSession(
	ctx context.Context,
	req *connect.Request[StartSessionRequest],
) (*connect.Response[SessionStatus], error) {
	repeat, err := session.ParseRepeatMode(req.Msg.Repeat)
	if err != nil {
		return nil, toConnectError(err)
	}

	p, err := s.sessions.Start(ctx, session.StartOptions{
		Source:      req.Msg.Source,
		StartIndex:  req.Msg.StartIndex,
		RandomStart: req.Msg.RandomStart,
		ChunkSize:   req.Msg.ChunkSize,
		Resume:      req.Msg.Resume,
	})
	if err != nil {
		zlog.Warn().Msgf("failed to start session: source=%s error=%v", req.Msg.Source, err)
		return nil, toConnectError(err)
	}
	if err := p.SetRepeat(repeat); err != nil {
		return nil, toConnectError(err)
	}

	status := toSessionStatus(p.Status())
	return connect.NewResponse(&status), nil
}

// StopSession stops a session and discards its stored pass.
func (s *ShuffleService) StopSession(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[Empty], error) {
	if err := s.sessions.Stop(req.Msg.SessionID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// Next moves a session to its next track.
func (s *ShuffleService) Next(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[StepResponse], error) {
	return s.step(ctx, req.Msg.SessionID, (*session.Player).Next)
}

// Prev moves a session back to its previous track.
func (s *ShuffleService) Prev(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[StepResponse], error) {
	return s.step(ctx, req.Msg.SessionID, (*session.Player).Prev)
}

// Current returns the track a session is playing.
func (s *ShuffleService) Current(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[StepResponse], error) {
	return s.step(ctx, req.Msg.SessionID, (*session.Player).Current)
}

func (s *ShuffleService) step(
	ctx context.Context,
	sessionID string,
	move func(*session.Player, context.Context) (*session.Step, error),
) (*connect.Response[StepResponse], error) {
	p, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	step, err := move(p, ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toStepResponse(step)), nil
}

// SetRepeat switches the repeat mode of a session.
func (s *ShuffleService) SetRepeat(
	ctx context.Context,
	req *connect.Request[SetRepeatRequest],
) (*connect.Response[SessionStatus], error) {
	mode, err := session.ParseRepeatMode(req.Msg.Mode)
	if err != nil {
		return nil, toConnectError(err)
	}
	p, err := s.sessions.Get(req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := p.SetRepeat(mode); err != nil {
		return nil, toConnectError(err)
	}

	status := toSessionStatus(p.Status())
	return connect.NewResponse(&status), nil
}

// Restart makes the next call to Next replay the pass from its start track.
func (s *ShuffleService) Restart(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[SessionStatus], error) {
	p, err := s.sessions.Get(req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := p.Restart(); err != nil {
		return nil, toConnectError(err)
	}

	status := toSessionStatus(p.Status())
	return connect.NewResponse(&status), nil
}

// Status returns the status of a session.
func (s *ShuffleService) Status(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[SessionStatus], error) {
	p, err := s.sessions.Get(req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	status := toSessionStatus(p.Status())
	return connect.NewResponse(&status), nil
}

// ListSessions lists every active session.
func (s *ShuffleService) ListSessions(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[ListSessionsResponse], error) {
	list := s.sessions.List()
	sessions := make([]SessionStatus, len(list))
	for i, st := range list {
		sessions[i] = toSessionStatus(st)
	}
	return connect.NewResponse(&ListSessionsResponse{Sessions: sessions}), nil
}

// ListSources lists the configured source names.
func (s *ShuffleService) ListSources(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[ListSourcesResponse], error) {
	return connect.NewResponse(&ListSourcesResponse{Sources: s.sources.Names()}), nil
}

// Subscribe streams session events until the client disconnects or the
// service closes. A subscription to a single session starts with its
// current state.
func (s *ShuffleService) Subscribe(
	ctx context.Context,
	req *connect.Request[SubscribeRequest],
	stream *connect.ServerStream[Notification],
) error {
	var initial *Notification
	if id := req.Msg.SessionID; id != "" {
		p, err := s.sessions.Get(id)
		if err != nil {
			return toConnectError(err)
		}
		initial = initialState(ctx, p)
	}

	// Hold the adapter until the initial state is out so events follow it.
	adapter := &notificationStreamAdapter{stream: stream}
	adapter.mu.Lock()
	subscriptionID := s.notifier.Subscribe(req.Msg.SessionID, adapter)
	if initial != nil {
		initial.SequenceNo = s.notifier.NextSequenceNo()
		if err := stream.Send(initial); err != nil {
			adapter.closed = true
			adapter.mu.Unlock()
			s.notifier.Unsubscribe(subscriptionID)
			return err
		}
	}
	adapter.mu.Unlock()
	zlog.Debug().Msgf("subscribed: subscription=%s session=%s", subscriptionID, req.Msg.SessionID)

	select {
	case <-ctx.Done():
	case <-s.done:
	}

	s.notifier.Unsubscribe(subscriptionID)
	adapter.close()
	zlog.Debug().Msgf("unsubscribed: subscription=%s", subscriptionID)
	return nil
}

func initialState(ctx context.Context, p *session.Player) *Notification {
	st := p.Status()
	n := &Notification{
		Type:        NotificationTypeInitialState,
		SessionID:   st.SessionID,
		Source:      st.Source,
		Index:       st.Current,
		TotalPlayed: st.TotalPlayed,
		TotalLength: st.TotalLength,
		State:       st.State.String(),
		Repeat:      st.Repeat.String(),
		Time:        time.Now(),
	}
	if cur, err := p.Current(ctx); err == nil {
		n.Track = toTrackInfo(cur.Track)
	}
	return n
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// Events of different sessions may arrive concurrently.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[Notification]
	closed bool
}

func (a *notificationStreamAdapter) Send(event *notification.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	return a.stream.Send(toNotification(event))
}

func (a *notificationStreamAdapter) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}
