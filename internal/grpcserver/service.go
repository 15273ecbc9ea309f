package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"webtoonhub/pkg/models"
)

const serviceName = "webtoonhub.v1.CatalogService"

type ListWebtoonsRequest struct {
	UserID string `json:"user_id"`
	Q      string `json:"q,omitempty"`
	Status string `json:"status,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Limit  int32  `json:"limit,omitempty"`
	Offset int32  `json:"offset,omitempty"`
}

type ListWebtoonsResponse struct {
	Total  int32            `json:"total"`
	Limit  int32            `json:"limit"`
	Offset int32            `json:"offset"`
	Items  []models.Webtoon `json:"items"`
}

type GetWebtoonRequest struct {
	UserID string `json:"user_id"`
	ID     string `json:"id"`
}

type GetWebtoonResponse struct {
	Webtoon *models.Webtoon `json:"webtoon"`
}

type GetStatsRequest struct {
	UserID string `json:"user_id"`
}

type GetStatsResponse struct {
	Total    int32            `json:"total"`
	ByStatus map[string]int32 `json:"by_status"`
}

// CatalogServer is the read-only catalog API.
type CatalogServer interface {
	ListWebtoons(context.Context, *ListWebtoonsRequest) (*ListWebtoonsResponse, error)
	GetWebtoon(context.Context, *GetWebtoonRequest) (*GetWebtoonResponse, error)
	GetStats(context.Context, *GetStatsRequest) (*GetStatsResponse, error)
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&CatalogServiceDesc, srv)
}

var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListWebtoons", Handler: listWebtoonsHandler},
		{MethodName: "GetWebtoon", Handler: getWebtoonHandler},
		{MethodName: "GetStats", Handler: getStatsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "webtoonhub/catalog",
}

func unary[Req any, Resp any](
	method string,
	call func(CatalogServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	listWebtoonsHandler = unary("ListWebtoons", CatalogServer.ListWebtoons)
	getWebtoonHandler   = unary("GetWebtoon", CatalogServer.GetWebtoon)
	getStatsHandler     = unary("GetStats", CatalogServer.GetStats)
)

// CatalogClient calls CatalogServer over the JSON codec.
type CatalogClient struct {
	cc grpc.ClientConnInterface
}

func NewCatalogClient(cc grpc.ClientConnInterface) *CatalogClient {
	return &CatalogClient{cc: cc}
}

func (c *CatalogClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}

func (c *CatalogClient) ListWebtoons(ctx context.Context, in *ListWebtoonsRequest, opts ...grpc.CallOption) (*ListWebtoonsResponse, error) {
	out := new(ListWebtoonsResponse)
	if err := c.invoke(ctx, "ListWebtoons", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogClient) GetWebtoon(ctx context.Context, in *GetWebtoonRequest, opts ...grpc.CallOption) (*GetWebtoonResponse, error) {
	out := new(GetWebtoonResponse)
	if err := c.invoke(ctx, "GetWebtoon", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogClient) GetStats(ctx context.Context, in *GetStatsRequest, opts ...grpc.CallOption) (*GetStatsResponse, error) {
	out := new(GetStatsResponse)
	if err := c.invoke(ctx, "GetStats", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
