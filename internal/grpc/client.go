package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/Billy-Davies-2/word-card-draft/internal/models"
	"github.com/Billy-Davies-2/word-card-draft/internal/pubsub"
	"github.com/Billy-Davies-2/word-card-draft/internal/session"
)

// Client is a typed DraftService client
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// SelectResult is the decoded Select response
type SelectResult struct {
	Outcome string            `json:"outcome"`
	State   models.DraftState `json:"state"`
}

func (c *Client) GetState(ctx context.Context) (models.DraftState, error) {
	var st models.DraftState
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("GetState"), &emptypb.Empty{}, out); err != nil {
		return st, err
	}
	if err := fromProto(out, &st); err != nil {
		return st, err
	}
	return st, nil
}

func (c *Client) Select(ctx context.Context, key string) (SelectResult, error) {
	var res SelectResult
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Select"), wrapperspb.String(key), out); err != nil {
		return res, err
	}
	if err := fromProto(out, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (c *Client) Undo(ctx context.Context) (models.DraftState, error) {
	var st models.DraftState
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Undo"), &emptypb.Empty{}, out); err != nil {
		return st, err
	}
	if err := fromProto(out, &st); err != nil {
		return st, err
	}
	return st, nil
}

func (c *Client) Claimed(ctx context.Context, team models.TeamID) ([]models.Card, error) {
	var cards []models.Card
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, fullMethod("GetClaimed"), wrapperspb.String(string(team)), out); err != nil {
		return nil, err
	}
	if err := fromProto(out, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func (c *Client) Unclaimed(ctx context.Context) ([]models.Card, error) {
	var cards []models.Card
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, fullMethod("GetUnclaimed"), &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	if err := fromProto(out, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// StartSession starts a draft. A zero setup uses the server defaults.
func (c *Client) StartSession(ctx context.Context, setup session.Setup) (models.DraftState, error) {
	var st models.DraftState
	in := &structpb.Struct{}
	if len(setup.Cards) > 0 || setup.Threshold != 0 || setup.TeamA.Size != 0 || setup.TeamB.Size != 0 {
		var err error
		if in, err = toStruct(setup); err != nil {
			return st, err
		}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("StartSession"), in, out); err != nil {
		return st, err
	}
	if err := fromProto(out, &st); err != nil {
		return st, err
	}
	return st, nil
}

func (c *Client) AbandonSession(ctx context.Context) error {
	return c.cc.Invoke(ctx, fullMethod("AbandonSession"), &emptypb.Empty{}, new(emptypb.Empty))
}

func (c *Client) ListSessions(ctx context.Context, limit int) ([]models.SessionSummary, error) {
	var sessions []models.SessionSummary
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, fullMethod("ListSessions"), wrapperspb.Int32(int32(limit)), out); err != nil {
		return nil, err
	}
	if err := fromProto(out, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// StreamEvents calls handler for every event until ctx is cancelled or the stream fails
func (c *Client) StreamEvents(ctx context.Context, handler func(pubsub.Event)) error {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod("StreamEvents"))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			return err
		}
		var ev pubsub.Event
		if err := fromProto(msg, &ev); err != nil {
			return err
		}
		handler(ev)
	}
}

// ErrorCode extracts the draft error code carried in a status message, or ""
func ErrorCode(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	code, _, found := strings.Cut(st.Message(), ":")
	if !found {
		return ""
	}
	return code
}
