package grpcserver

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"webtoonhub/internal/webtoon"
)

type Server struct {
	Repo *webtoon.Repo
}

func NewServer(repo *webtoon.Repo) *Server {
	return &Server{Repo: repo}
}

func (s *Server) ListWebtoons(ctx context.Context, req *ListWebtoonsRequest) (*ListWebtoonsResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id required")
	}

	query := webtoon.ListQuery{
		AuthorID: userID,
		Q:        strings.TrimSpace(req.Q),
		Status:   strings.TrimSpace(req.Status),
		Tag:      strings.TrimSpace(req.Tag),
		Limit:    int(req.Limit),
		Offset:   int(req.Offset),
	}
	if query.Limit <= 0 || query.Limit > 100 {
		query.Limit = 20
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	total, err := s.Repo.Count(ctx, query)
	if err != nil {
		return nil, status.Error(codes.Internal, "count failed")
	}
	items, err := s.Repo.List(ctx, query)
	if err != nil {
		return nil, status.Error(codes.Internal, "list failed")
	}

	return &ListWebtoonsResponse{
		Total:  int32(total),
		Limit:  int32(query.Limit),
		Offset: int32(query.Offset),
		Items:  items,
	}, nil
}

func (s *Server) GetWebtoon(ctx context.Context, req *GetWebtoonRequest) (*GetWebtoonResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	id := strings.TrimSpace(req.ID)
	if userID == "" || id == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id and id required")
	}

	w, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, status.Error(codes.Internal, "get failed")
	}
	if w == nil || w.AuthorID != userID {
		return nil, status.Error(codes.NotFound, "not found")
	}
	return &GetWebtoonResponse{Webtoon: w}, nil
}

func (s *Server) GetStats(ctx context.Context, req *GetStatsRequest) (*GetStatsResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id required")
	}

	counts, err := s.Repo.StatusCounts(ctx, userID)
	if err != nil {
		return nil, status.Error(codes.Internal, "stats failed")
	}

	resp := &GetStatsResponse{ByStatus: make(map[string]int32, len(counts))}
	for st, n := range counts {
		resp.Total += int32(n)
		if st == "" {
			st = "none"
		}
		resp.ByStatus[st] += int32(n)
	}
	return resp, nil
}

// LoggingInterceptor logs each unary call with its code and latency.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("grpc call",
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("took", time.Since(start)))
		return resp, err
	}
}
