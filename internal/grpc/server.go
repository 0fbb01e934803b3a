package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/Billy-Davies-2/word-card-draft/internal/dal"
	"github.com/Billy-Davies-2/word-card-draft/internal/draft"
	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
	"github.com/Billy-Davies-2/word-card-draft/internal/pubsub"
	"github.com/Billy-Davies-2/word-card-draft/internal/session"
)

// Server implements the gRPC DraftService
type Server struct {
	mgr      *session.Manager
	pubsub   *pubsub.PubSub
	defaults session.Setup
}

// NewServer creates a new gRPC server
func NewServer(mgr *session.Manager, ps *pubsub.PubSub, defaults session.Setup) *Server {
	return &Server{
		mgr:      mgr,
		pubsub:   ps,
		defaults: defaults,
	}
}

// GetState returns the current draft state
func (s *Server) GetState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	logger.Debug("gRPC: Getting draft state")
	state, err := s.mgr.State()
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeStruct(state)
}

// Select highlights, switches or confirms a card
func (s *Server) Select(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "BAD_REQUEST: missing card key")
	}
	out, state, err := s.mgr.SelectState(req.GetValue())
	if err != nil {
		logger.Debug("gRPC: Select rejected", "key", req.GetValue(), "error", err)
		return nil, toStatus(err)
	}
	logger.Info("gRPC: Card selected", "key", req.GetValue(), "outcome", out.String())
	return encodeStruct(map[string]any{"outcome": out.String(), "state": state})
}

// Undo reverts the last claim
func (s *Server) Undo(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	state, err := s.mgr.UndoState()
	if err != nil {
		return nil, toStatus(err)
	}
	logger.Info("gRPC: Claim undone")
	return encodeStruct(state)
}

// GetClaimed lists a team's claimed cards; the request value is the team id
func (s *Server) GetClaimed(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	cards, err := s.mgr.Claimed(models.TeamID(req.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeList(cards)
}

// GetUnclaimed lists the end-of-draft partition
func (s *Server) GetUnclaimed(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	cards, err := s.mgr.Unclaimed()
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeList(cards)
}

// StartSession begins a new draft; fields left out of the request take the configured defaults
func (s *Server) StartSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	setup := s.defaults
	if len(req.GetFields()) > 0 {
		var in session.Setup
		if err := fromProto(req, &in); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "BAD_REQUEST: %v", err)
		}
		setup = in.WithDefaults(s.defaults)
	}

	state, err := s.mgr.Start(setup)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeStruct(state)
}

// AbandonSession discards the running draft
func (s *Server) AbandonSession(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.mgr.Abandon(); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// ListSessions returns archived session summaries, newest first. Zero means no limit.
func (s *Server) ListSessions(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.ListValue, error) {
	if req.GetValue() < 0 {
		return nil, status.Error(codes.InvalidArgument, "BAD_REQUEST: negative limit")
	}
	sessions, err := s.mgr.History(int(req.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeList(sessions)
}

// StreamEvents streams draft events to the client
func (s *Server) StreamEvents(_ *emptypb.Empty, stream DraftService_StreamEventsServer) error {
	logger.Info("gRPC: Client connected to event stream")
	eventChan := s.pubsub.Subscribe()
	defer s.pubsub.Unsubscribe(eventChan)

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return nil
			}
			msg, err := toStruct(event)
			if err != nil {
				logger.Error("gRPC: Failed to encode event", "type", event.Type, "error", err)
				continue
			}
			if err := stream.Send(msg); err != nil {
				logger.Error("gRPC: Failed to send event", "error", err)
				return err
			}
		case <-stream.Context().Done():
			logger.Info("gRPC: Client disconnected from event stream")
			return nil
		}
	}
}

func encodeStruct(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "INTERNAL: %v", err)
	}
	return out, nil
}

func encodeList(v any) (*structpb.ListValue, error) {
	out, err := toList(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "INTERNAL: %v", err)
	}
	return out, nil
}

// toStatus maps classified errors onto gRPC codes. The message is prefixed with the error code.
func toStatus(err error) error {
	if errors.Is(err, dal.ErrSessionNotFound) {
		return status.Error(codes.NotFound, "SESSION_NOT_FOUND: "+err.Error())
	}
	code := draft.CodeOf(err)
	var c codes.Code
	switch draft.KindOf(err) {
	case draft.KindUsage:
		switch code {
		case draft.CodeUnknownCard, draft.CodeUnknownTeam:
			c = codes.NotFound
		case session.ErrNoSession.Code:
			c = codes.FailedPrecondition
		default:
			c = codes.InvalidArgument
		}
	case draft.KindIllegalState:
		c = codes.FailedPrecondition
	case draft.KindConfiguration:
		c = codes.InvalidArgument
	default:
		logger.Error("gRPC: Request failed", "error", err)
		return status.Error(codes.Internal, "INTERNAL: "+err.Error())
	}
	return status.Error(c, string(code)+": "+err.Error())
}
