package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"
)

type stubServer struct {
	listenErr error
	stopCh    chan struct{}
	shutdowns atomic.Int32
}

func newStubServer() *stubServer {
	return &stubServer{stopCh: make(chan struct{})}
}

func (s *stubServer) ListenAndServe() error {
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.stopCh
	return http.ErrServerClosed
}

func (s *stubServer) Shutdown(ctx context.Context) error {
	s.shutdowns.Add(1)
	close(s.stopCh)
	return nil
}

var _ suture.Service = (*HTTPService)(nil)

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	srv := newStubServer()
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
	assert.Equal(t, int32(1), srv.shutdowns.Load())
	assert.Equal(t, "http-server", svc.String())
}

func TestHTTPServiceListenFailure(t *testing.T) {
	srv := newStubServer()
	srv.listenErr = errors.New("address already in use")

	err := NewHTTPService(srv, 0).Serve(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
}

type countingWorker struct {
	started atomic.Int32
}

func (w *countingWorker) Serve(ctx context.Context) error {
	w.started.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (w *countingWorker) String() string { return "counting-worker" }

func TestTreeRunsWorkersUntilCancelled(t *testing.T) {
	tree := NewTree("test", TreeConfig{ShutdownTimeout: time.Second})
	w := &countingWorker{}
	tree.AddWorker(w)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	require.Eventually(t, func() bool { return w.started.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}
