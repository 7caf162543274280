package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	LinkService_CreateRecord_FullMethodName = "/linkstore.v1.LinkService/CreateRecord"
	LinkService_GetRecord_FullMethodName    = "/linkstore.v1.LinkService/GetRecord"
	LinkService_DeleteRecord_FullMethodName = "/linkstore.v1.LinkService/DeleteRecord"
	LinkService_AddLinks_FullMethodName     = "/linkstore.v1.LinkService/AddLinks"
	LinkService_RemoveLinks_FullMethodName  = "/linkstore.v1.LinkService/RemoveLinks"
	LinkService_ListLinks_FullMethodName    = "/linkstore.v1.LinkService/ListLinks"
	LinkService_DefineIndex_FullMethodName  = "/linkstore.v1.LinkService/DefineIndex"
	LinkService_QueryIndex_FullMethodName   = "/linkstore.v1.LinkService/QueryIndex"
	LinkService_AuditTrees_FullMethodName   = "/linkstore.v1.LinkService/AuditTrees"
)

// LinkServiceClient is the client API for LinkService. Messages travel as
// google.protobuf.Struct.
type LinkServiceClient interface {
	CreateRecord(ctx context.Context, in *CreateRecordRequest, opts ...grpc.CallOption) (*CreateRecordResponse, error)
	GetRecord(ctx context.Context, in *GetRecordRequest, opts ...grpc.CallOption) (*GetRecordResponse, error)
	DeleteRecord(ctx context.Context, in *DeleteRecordRequest, opts ...grpc.CallOption) (*DeleteRecordResponse, error)
	AddLinks(ctx context.Context, in *AddLinksRequest, opts ...grpc.CallOption) (*AddLinksResponse, error)
	RemoveLinks(ctx context.Context, in *RemoveLinksRequest, opts ...grpc.CallOption) (*RemoveLinksResponse, error)
	ListLinks(ctx context.Context, in *ListLinksRequest, opts ...grpc.CallOption) (*ListLinksResponse, error)
	DefineIndex(ctx context.Context, in *DefineIndexRequest, opts ...grpc.CallOption) (*DefineIndexResponse, error)
	QueryIndex(ctx context.Context, in *QueryIndexRequest, opts ...grpc.CallOption) (*QueryIndexResponse, error)
	AuditTrees(ctx context.Context, in *AuditTreesRequest, opts ...grpc.CallOption) (*AuditTreesResponse, error)
}

type linkServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLinkServiceClient(cc grpc.ClientConnInterface) LinkServiceClient {
	return &linkServiceClient{cc}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts ...grpc.CallOption) (*Resp, error) {
	req, err := ToStruct(in)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	reply := &structpb.Struct{}
	if err := cc.Invoke(ctx, method, req, reply, opts...); err != nil {
		return nil, err
	}

	out := new(Resp)
	if err := FromStruct(reply, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return out, nil
}

func (c *linkServiceClient) CreateRecord(ctx context.Context, in *CreateRecordRequest, opts ...grpc.CallOption) (*CreateRecordResponse, error) {
	return invoke[CreateRecordRequest, CreateRecordResponse](ctx, c.cc, LinkService_CreateRecord_FullMethodName, in, opts...)
}

func (c *linkServiceClient) GetRecord(ctx context.Context, in *GetRecordRequest, opts ...grpc.CallOption) (*GetRecordResponse, error) {
	return invoke[GetRecordRequest, GetRecordResponse](ctx, c.cc, LinkService_GetRecord_FullMethodName, in, opts...)
}

func (c *linkServiceClient) DeleteRecord(ctx context.Context, in *DeleteRecordRequest, opts ...grpc.CallOption) (*DeleteRecordResponse, error) {
	return invoke[DeleteRecordRequest, DeleteRecordResponse](ctx, c.cc, LinkService_DeleteRecord_FullMethodName, in, opts...)
}

func (c *linkServiceClient) AddLinks(ctx context.Context, in *AddLinksRequest, opts ...grpc.CallOption) (*AddLinksResponse, error) {
	return invoke[AddLinksRequest, AddLinksResponse](ctx, c.cc, LinkService_AddLinks_FullMethodName, in, opts...)
}

func (c *linkServiceClient) RemoveLinks(ctx context.Context, in *RemoveLinksRequest, opts ...grpc.CallOption) (*RemoveLinksResponse, error) {
	return invoke[RemoveLinksRequest, RemoveLinksResponse](ctx, c.cc, LinkService_RemoveLinks_FullMethodName, in, opts...)
}

func (c *linkServiceClient) ListLinks(ctx context.Context, in *ListLinksRequest, opts ...grpc.CallOption) (*ListLinksResponse, error) {
	return invoke[ListLinksRequest, ListLinksResponse](ctx, c.cc, LinkService_ListLinks_FullMethodName, in, opts...)
}

func (c *linkServiceClient) DefineIndex(ctx context.Context, in *DefineIndexRequest, opts ...grpc.CallOption) (*DefineIndexResponse, error) {
	return invoke[DefineIndexRequest, DefineIndexResponse](ctx, c.cc, LinkService_DefineIndex_FullMethodName, in, opts...)
}

func (c *linkServiceClient) QueryIndex(ctx context.Context, in *QueryIndexRequest, opts ...grpc.CallOption) (*QueryIndexResponse, error) {
	return invoke[QueryIndexRequest, QueryIndexResponse](ctx, c.cc, LinkService_QueryIndex_FullMethodName, in, opts...)
}

func (c *linkServiceClient) AuditTrees(ctx context.Context, in *AuditTreesRequest, opts ...grpc.CallOption) (*AuditTreesResponse, error) {
	return invoke[AuditTreesRequest, AuditTreesResponse](ctx, c.cc, LinkService_AuditTrees_FullMethodName, in, opts...)
}

// LinkServiceServer is the server API for LinkService.
type LinkServiceServer interface {
	CreateRecord(context.Context, *CreateRecordRequest) (*CreateRecordResponse, error)
	GetRecord(context.Context, *GetRecordRequest) (*GetRecordResponse, error)
	DeleteRecord(context.Context, *DeleteRecordRequest) (*DeleteRecordResponse, error)
	AddLinks(context.Context, *AddLinksRequest) (*AddLinksResponse, error)
	RemoveLinks(context.Context, *RemoveLinksRequest) (*RemoveLinksResponse, error)
	ListLinks(context.Context, *ListLinksRequest) (*ListLinksResponse, error)
	DefineIndex(context.Context, *DefineIndexRequest) (*DefineIndexResponse, error)
	QueryIndex(context.Context, *QueryIndexRequest) (*QueryIndexResponse, error)
	AuditTrees(context.Context, *AuditTreesRequest) (*AuditTreesResponse, error)
	mustEmbedUnimplementedLinkServiceServer()
}

// UnimplementedLinkServiceServer must be embedded to have forward compatible implementations.
type UnimplementedLinkServiceServer struct{}

func (UnimplementedLinkServiceServer) CreateRecord(context.Context, *CreateRecordRequest) (*CreateRecordResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CreateRecord not implemented")
}
func (UnimplementedLinkServiceServer) GetRecord(context.Context, *GetRecordRequest) (*GetRecordResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetRecord not implemented")
}
func (UnimplementedLinkServiceServer) DeleteRecord(context.Context, *DeleteRecordRequest) (*DeleteRecordResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DeleteRecord not implemented")
}
func (UnimplementedLinkServiceServer) AddLinks(context.Context, *AddLinksRequest) (*AddLinksResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AddLinks not implemented")
}
func (UnimplementedLinkServiceServer) RemoveLinks(context.Context, *RemoveLinksRequest) (*RemoveLinksResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RemoveLinks not implemented")
}
func (UnimplementedLinkServiceServer) ListLinks(context.Context, *ListLinksRequest) (*ListLinksResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListLinks not implemented")
}
func (UnimplementedLinkServiceServer) DefineIndex(context.Context, *DefineIndexRequest) (*DefineIndexResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DefineIndex not implemented")
}
func (UnimplementedLinkServiceServer) QueryIndex(context.Context, *QueryIndexRequest) (*QueryIndexResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method QueryIndex not implemented")
}
func (UnimplementedLinkServiceServer) AuditTrees(context.Context, *AuditTreesRequest) (*AuditTreesResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AuditTrees not implemented")
}
func (UnimplementedLinkServiceServer) mustEmbedUnimplementedLinkServiceServer() {}

func RegisterLinkServiceServer(s grpc.ServiceRegistrar, srv LinkServiceServer) {
	s.RegisterService(&LinkService_ServiceDesc, srv)
}

// handler decodes the wire struct into the typed request before the
// interceptors run, so they see the typed message.
func handler[Req, Resp any](method string, call func(LinkServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}

		req := new(Req)
		if err := FromStruct(in, req); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}

		invoke := func(ctx context.Context, req interface{}) (interface{}, error) {
			resp, err := call(srv.(LinkServiceServer), ctx, req.(*Req))
			if err != nil {
				return nil, err
			}

			out, err := ToStruct(resp)
			if err != nil {
				return nil, status.Error(codes.Internal, err.Error())
			}

			return out, nil
		}

		if interceptor == nil {
			return invoke(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}

		return interceptor(ctx, req, info, invoke)
	}
}

// LinkService_ServiceDesc is the grpc.ServiceDesc for LinkService service.
var LinkService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "linkstore.v1.LinkService",
	HandlerType: (*LinkServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateRecord",
			Handler:    handler(LinkService_CreateRecord_FullMethodName, LinkServiceServer.CreateRecord),
		},
		{
			MethodName: "GetRecord",
			Handler:    handler(LinkService_GetRecord_FullMethodName, LinkServiceServer.GetRecord),
		},
		{
			MethodName: "DeleteRecord",
			Handler:    handler(LinkService_DeleteRecord_FullMethodName, LinkServiceServer.DeleteRecord),
		},
		{
			MethodName: "AddLinks",
			Handler:    handler(LinkService_AddLinks_FullMethodName, LinkServiceServer.AddLinks),
		},
		{
			MethodName: "RemoveLinks",
			Handler:    handler(LinkService_RemoveLinks_FullMethodName, LinkServiceServer.RemoveLinks),
		},
		{
			MethodName: "ListLinks",
			Handler:    handler(LinkService_ListLinks_FullMethodName, LinkServiceServer.ListLinks),
		},
		{
			MethodName: "DefineIndex",
			Handler:    handler(LinkService_DefineIndex_FullMethodName, LinkServiceServer.DefineIndex),
		},
		{
			MethodName: "QueryIndex",
			Handler:    handler(LinkService_QueryIndex_FullMethodName, LinkServiceServer.QueryIndex),
		},
		{
			MethodName: "AuditTrees",
			Handler:    handler(LinkService_AuditTrees_FullMethodName, LinkServiceServer.AuditTrees),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "linkstore/v1/linkstore.proto",
}
