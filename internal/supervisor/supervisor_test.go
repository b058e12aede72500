package supervisor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	listenErr error
	stop      chan struct{}
	shutdowns atomic.Int32
}

func newFakeServer(listenErr error) *fakeServer {
	return &fakeServer{listenErr: listenErr, stop: make(chan struct{})}
}

func (s *fakeServer) ListenAndServe() error {
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.stop
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(context.Context) error {
	if s.shutdowns.Add(1) == 1 {
		close(s.stop)
	}
	return nil
}

func TestHTTPServiceShutsDownOnCancel(t *testing.T) {
	srv := newFakeServer(nil)
	svc := NewHTTPService(srv, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
	assert.Equal(t, int32(1), srv.shutdowns.Load())
	assert.Equal(t, "http-server", svc.String())
}

func TestHTTPServiceReportsListenError(t *testing.T) {
	svc := NewHTTPService(newFakeServer(errors.New("address already in use")), 0)
	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
}

type countingService struct {
	runs atomic.Int32
}

func (c *countingService) Serve(ctx context.Context) error {
	c.runs.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (c *countingService) String() string { return "counting" }

func TestSupervisorRunsServices(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	root := New("test", Config{FailureBackoff: 10 * time.Millisecond}, logger)
	svc := &countingService{}
	root.Add(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := root.ServeBackground(ctx)
	require.Eventually(t, func() bool { return svc.runs.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-errCh
}
