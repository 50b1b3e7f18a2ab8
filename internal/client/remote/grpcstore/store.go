// Package grpcstore adapts the RemoteStore gRPC service to remote.Store.
package grpcstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/moodkeeper/internal/client/remote"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
	pb "github.com/dmitrijs2005/moodkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

type Store struct {
	conn        *grpc.ClientConn
	client      pb.RemoteStoreClient
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *Store) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// Dial connects to the server at endpoint. The connection is lazy, so an
// unreachable server only shows up on the first call.
func Dial(endpoint, accessToken string, opts ...grpc.DialOption) (*Store, error) {
	s := &Store{accessToken: accessToken}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %q: %w", endpoint, err)
	}
	s.conn = conn
	s.client = pb.NewRemoteStoreClient(conn)
	return s, nil
}

func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	req, err := pb.CreateRequest{Collection: collection, Fields: fields}.Marshal()
	if err != nil {
		return "", fmt.Errorf("encode create request: %w", err)
	}
	resp, err := s.client.Create(ctx, req)
	if err != nil {
		return "", mapError(err)
	}
	if resp.GetValue() == "" {
		return "", errors.New("server returned an empty document id")
	}
	return resp.GetValue(), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	req, err := pb.UpdateRequest{Collection: collection, ID: id, Fields: fields}.Marshal()
	if err != nil {
		return fmt.Errorf("encode update request: %w", err)
	}
	if _, err := s.client.Update(ctx, req); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) QueryByUser(ctx context.Context, collection, userID string) ([]remote.Document, error) {
	req, err := pb.QueryRequest{Collection: collection, UserID: userID}.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode query request: %w", err)
	}
	resp, err := s.client.QueryByUser(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	docs, err := pb.ParseDocuments(resp)
	if err != nil {
		return nil, err
	}
	result := make([]remote.Document, 0, len(docs))
	for _, d := range docs {
		result = append(result, remote.Document{ID: d.ID, Fields: d.Fields})
	}
	return result, nil
}

func (s *Store) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &emptypb.Empty{})
	if err != nil {
		return mapError(err)
	}
	if resp.GetValue() != pb.PingOK {
		return remote.ErrUnavailable
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", remote.ErrUnavailable, err)
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", remote.ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", remote.ErrUnavailable, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", remote.ErrNotFound, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
