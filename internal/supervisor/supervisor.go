// Package supervisor 进程内服务的 suture 监督树：同步队列与 HTTP 服务在这里启动与重启
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/thejerf/suture/v4"
)

// Config 监督树参数，零值使用默认值
type Config struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.FailureDecay <= 0 {
		c.FailureDecay = 30
	}
	if c.FailureBackoff <= 0 {
		c.FailureBackoff = 15 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// New 创建根监督者，事件写入 logrus
func New(name string, cfg Config, logger *logrus.Logger) *suture.Supervisor {
	cfg = cfg.withDefaults()
	return suture.New(name, suture.Spec{
		EventHook: func(e suture.Event) {
			entry := logger.WithFields(logrus.Fields(e.Map()))
			switch e.(type) {
			case suture.EventServicePanic, suture.EventServiceTerminate:
				entry.Error(e.String())
			case suture.EventBackoff, suture.EventStopTimeout:
				entry.Warn(e.String())
			default:
				entry.Info(e.String())
			}
		},
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
}

// HTTPServer *http.Server 的生命周期方法
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService 把阻塞的 ListenAndServe 包装成 suture.Service
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP服务异常退出: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP服务关闭失败: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string {
	return "http-server"
}
