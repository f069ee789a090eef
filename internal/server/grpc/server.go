package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

// Server owns a grpc.Server and its listener lifecycle.
type Server struct {
	addr string
	srv  *grpc.Server
}

func New(addr string, srv *grpc.Server) *Server {
	return &Server{addr: addr, srv: srv}
}

func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve blocks until ctx is done. Streams still open after
// shutdownTimeout are cut with Stop.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)

	go func() {
		slog.Info("grpc listen", "addr", lis.Addr().String())
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		stopped := make(chan struct{})
		go func() {
			s.srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			slog.Warn("grpc graceful stop timed out")
			s.srv.Stop()
		}
		return nil
	case err := <-errCh:
		return err
	}
}
