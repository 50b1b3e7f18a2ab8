// Package grpc exposes the documents service as the RemoteStore gRPC
// service.
package grpc

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	pb "github.com/dmitrijs2005/moodkeeper/internal/proto"
	"github.com/dmitrijs2005/moodkeeper/internal/server/documents"
)

// DocumentService is what the handlers need from documents.Service.
type DocumentService interface {
	Create(ctx context.Context, caller, collection string, fields map[string]any) (string, error)
	Update(ctx context.Context, caller, collection, id string, fields map[string]any) error
	QueryByUser(ctx context.Context, caller, collection, userID string) ([]documents.Document, error)
	Ping(ctx context.Context) error
}

type GRPCServer struct {
	pb.UnimplementedRemoteStoreServer
	address   string
	documents DocumentService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, ds DocumentService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		documents: ds,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	pb.RegisterRemoteStoreServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// Serve reports ErrServerStopped when ctx was done before it started.
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
