package grpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name
const ServiceName = "carddraft.v1.DraftService"

// DraftServiceServer is the server API. Payloads are JSON-shaped structpb values mirroring the HTTP API.
type DraftServiceServer interface {
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Select(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Undo(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetClaimed(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	GetUnclaimed(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	StartSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AbandonSession(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	ListSessions(context.Context, *wrapperspb.Int32Value) (*structpb.ListValue, error)
	StreamEvents(*emptypb.Empty, DraftService_StreamEventsServer) error
}

// DraftService_StreamEventsServer is the server side of the event stream
type DraftService_StreamEventsServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type streamEventsServer struct {
	grpc.ServerStream
}

func (s *streamEventsServer) Send(m *structpb.Struct) error {
	return s.ServerStream.SendMsg(m)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req any, Resp any](name string, call func(DraftServiceServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DraftServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DraftServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes DraftService for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DraftServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetState", DraftServiceServer.GetState),
		unary("Select", DraftServiceServer.Select),
		unary("Undo", DraftServiceServer.Undo),
		unary("GetClaimed", DraftServiceServer.GetClaimed),
		unary("GetUnclaimed", DraftServiceServer.GetUnclaimed),
		unary("StartSession", DraftServiceServer.StartSession),
		unary("AbandonSession", DraftServiceServer.AbandonSession),
		unary("ListSessions", DraftServiceServer.ListSessions),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamEvents",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(emptypb.Empty)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(DraftServiceServer).StreamEvents(in, &streamEventsServer{stream})
			},
		},
	},
	Metadata: "carddraft/v1/draft.proto",
}

// RegisterDraftServiceServer registers srv on s
func RegisterDraftServiceServer(s grpc.ServiceRegistrar, srv DraftServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// toStruct converts any JSON-encodable value with object shape to a Struct
func toStruct(v any) (*structpb.Struct, error) {
	m := map[string]any{}
	if err := roundTrip(v, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// toList converts any JSON-encodable slice to a ListValue
func toList(v any) (*structpb.ListValue, error) {
	var items []any
	if err := roundTrip(v, &items); err != nil {
		return nil, err
	}
	return structpb.NewList(items)
}

// fromProto decodes a structpb value into out through its JSON form
func fromProto(v interface{ MarshalJSON() ([]byte, error) }, out any) error {
	data, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func roundTrip(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
