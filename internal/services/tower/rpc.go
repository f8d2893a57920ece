package tower

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the gRPC service exposed by the tower. Its messages are
// protobuf well-known types, so no generated code is needed.
const ServiceName = "aquarius.tower.v1.TowerService"

const (
	statusMethod = "/" + ServiceName + "/Status"
	resumeMethod = "/" + ServiceName + "/Resume"
)

type TowerServiceServer interface {
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Resume(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TowerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: statusHandler},
		{MethodName: "Resume", Handler: resumeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aquarius/tower/v1/tower.proto",
}

// RegisterService mounts t on s.
func RegisterService(s grpc.ServiceRegistrar, t *Tower) {
	s.RegisterService(&ServiceDesc, &rpcServer{t: t})
}

type rpcServer struct{ t *Tower }

func (r *rpcServer) Status(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	st, err := StatusStruct(r.t.Status())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "status: %v", err)
	}
	return st, nil
}

func (r *rpcServer) Resume(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	if !r.t.Resume() {
		return nil, status.Error(codes.FailedPrecondition, "cycle is not halted")
	}
	return &emptypb.Empty{}, nil
}

// StatusStruct converts a snapshot to its wire form.
func StatusStruct(s Status) (*structpb.Struct, error) {
	pots := make([]interface{}, len(s.PotMap))
	for i, v := range s.PotMap {
		pots[i] = int(v)
	}
	plan := make([]interface{}, len(s.Plan))
	for i, v := range s.Plan {
		plan[i] = v
	}
	return structpb.NewStruct(map[string]interface{}{
		"phase":        s.Phase.String(),
		"phase_number": s.Phase.Number(),
		"halted":       s.Halted,
		"cycle_id":     s.CycleID,
		"cycles":       s.Cycles,
		"last_error":   s.LastError,
		"pot_map":      pots,
		"plan":         plan,
	})
}

func statusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TowerServiceServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: statusMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TowerServiceServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func resumeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TowerServiceServer).Resume(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: resumeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TowerServiceServer).Resume(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ===================== Client =====================

type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Dial connects to the tower at addr over plaintext.
func Dial(addr string) (*Client, func() error, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial tower %s: %w", addr, err)
	}
	return NewClient(conn), conn.Close, nil
}

func (c *Client) Status(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, statusMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Resume(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, resumeMethod, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}
