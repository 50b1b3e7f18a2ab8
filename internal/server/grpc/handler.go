package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmitrijs2005/moodkeeper/internal/common"
	pb "github.com/dmitrijs2005/moodkeeper/internal/proto"
)

// toStatus maps service errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pb.ErrMalformedMessage),
		errors.Is(err, common.ErrorValidation),
		errors.Is(err, common.ErrUnknownCollection):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func caller(ctx context.Context) (string, error) {
	id, ok := userIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "no user in context")
	}
	return id, nil
}

func (s *GRPCServer) Create(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	req, err := pb.ParseCreateRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}
	id, err := s.documents.Create(ctx, userID, req.Collection, req.Fields)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(id), nil
}

func (s *GRPCServer) Update(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	req, err := pb.ParseUpdateRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.documents.Update(ctx, userID, req.Collection, req.ID, req.Fields); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) QueryByUser(ctx context.Context, in *structpb.Struct) (*structpb.ListValue, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	req, err := pb.ParseQueryRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}
	docs, err := s.documents.QueryByUser(ctx, userID, req.Collection, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}

	out := make([]pb.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, pb.Document{ID: d.ID, Fields: d.Fields})
	}
	list, err := pb.MarshalDocuments(out)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return list, nil
}

// Ping reports whether the server can reach its database. It needs no token.
func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	if err := s.documents.Ping(ctx); err != nil {
		s.logger.Warn(ctx, "ping failed", "error", err)
		return nil, status.Error(codes.Unavailable, "database unavailable")
	}
	return wrapperspb.String(pb.PingOK), nil
}
