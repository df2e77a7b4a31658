package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// defaultConnectTimeout bounds a shared connection attempt.
const defaultConnectTimeout = 30 * time.Second

// ConnectFunc establishes a verified connection to the cluster.
type ConnectFunc func(ctx context.Context) (ESClient, error)

// LazyClient is the process-wide session to the cluster. The underlying
// client is created and verified on first use; concurrent first callers share
// a single in-flight connection attempt. The attempt does not inherit the
// cancellation of whichever caller started it; each caller stops waiting when
// its own context ends. A failed attempt is not cached, so the next call
// tries again.
type LazyClient struct {
	baseURL        string
	connect        ConnectFunc
	connectTimeout time.Duration
	logger         *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	conn  ESClient
}

// NewLazyClient returns a LazyClient that connects with cfg and verifies the
// connection by calling Info.
func NewLazyClient(cfg ClientConfig, logger *zap.Logger) *LazyClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	lc := NewLazyClientWith(cfg.BaseURL, func(ctx context.Context) (ESClient, error) {
		c, err := NewDefaultClient(cfg)
		if err != nil {
			return nil, err
		}
		info, err := c.Info(ctx)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connection check: %w", err)
		}
		logger.Info("connected to cluster",
			zap.String("cluster_name", info.ClusterName),
			zap.String("version", info.Version.Number))
		return c, nil
	}, logger)
	if cfg.RequestTimeout > 0 {
		lc.connectTimeout = cfg.RequestTimeout
	}
	return lc
}

// NewLazyClientWith builds a LazyClient around a custom connect function.
func NewLazyClientWith(baseURL string, connect ConnectFunc, logger *zap.Logger) *LazyClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LazyClient{
		baseURL:        baseURL,
		connect:        connect,
		connectTimeout: defaultConnectTimeout,
		logger:         logger,
	}
}

// Client returns the shared connection, establishing it if needed.
func (l *LazyClient) Client(ctx context.Context) (ESClient, error) {
	l.mu.RLock()
	c := l.conn
	l.mu.RUnlock()
	if c != nil {
		return c, nil
	}

	ch := l.group.DoChan("connect", func() (any, error) {
		l.mu.RLock()
		existing := l.conn
		l.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.connectTimeout)
		defer cancel()

		l.logger.Info("connecting to cluster", zap.String("url", l.baseURL))
		conn, err := l.connect(cctx)
		if err != nil {
			l.logger.Warn("cluster connection failed", zap.Error(err))
			return nil, err
		}

		l.mu.Lock()
		l.conn = conn
		l.mu.Unlock()
		return conn, nil
	})

	select {
	case <-ctx.Done():
		return nil, &TransportError{Err: fmt.Errorf("connect: %w", ctx.Err())}
	case res := <-ch:
		if res.Err != nil {
			return nil, &TransportError{Err: fmt.Errorf("connect: %w", res.Err)}
		}
		return res.Val.(ESClient), nil
	}
}

// Close drops the shared connection. A later call reconnects.
func (l *LazyClient) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if closer, ok := l.conn.(interface{ Close() }); ok {
		closer.Close()
		l.logger.Info("cluster connection closed")
	}
	l.conn = nil
}

// BaseURL returns the configured cluster URL without connecting.
func (l *LazyClient) BaseURL() string {
	return l.baseURL
}

func (l *LazyClient) Info(ctx context.Context) (*ClusterInfo, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Info(ctx)
}

func (l *LazyClient) Ping(ctx context.Context) error {
	c, err := l.Client(ctx)
	if err != nil {
		return err
	}
	return c.Ping(ctx)
}

func (l *LazyClient) ListIndices(ctx context.Context) ([]IndexInfo, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.ListIndices(ctx)
}

func (l *LazyClient) GetMapping(ctx context.Context, index string) (map[string]any, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.GetMapping(ctx, index)
}

func (l *LazyClient) PutMapping(ctx context.Context, index string, body map[string]any) error {
	c, err := l.Client(ctx)
	if err != nil {
		return err
	}
	return c.PutMapping(ctx, index, body)
}

func (l *LazyClient) GetIndexSettings(ctx context.Context, index string) (*IndexSettingValues, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.GetIndexSettings(ctx, index)
}

func (l *LazyClient) PutSettings(ctx context.Context, index string, settings map[string]any) error {
	c, err := l.Client(ctx)
	if err != nil {
		return err
	}
	return c.PutSettings(ctx, index, settings)
}

func (l *LazyClient) PutAlias(ctx context.Context, index, alias string) error {
	c, err := l.Client(ctx)
	if err != nil {
		return err
	}
	return c.PutAlias(ctx, index, alias)
}

func (l *LazyClient) Search(ctx context.Context, index string, body map[string]any, cacheDisabled bool) (*SearchResponse, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Search(ctx, index, body, cacheDisabled)
}

func (l *LazyClient) ValidateQuery(ctx context.Context, index string, query map[string]any) (*ValidateResponse, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.ValidateQuery(ctx, index, query)
}

func (l *LazyClient) Exists(ctx context.Context, index string) (bool, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return false, err
	}
	return c.Exists(ctx, index)
}

func (l *LazyClient) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	c, err := l.Client(ctx)
	if err != nil {
		return err
	}
	return c.CreateIndex(ctx, index, body)
}

func (l *LazyClient) IndexDocument(ctx context.Context, index string, doc any) (string, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return "", err
	}
	return c.IndexDocument(ctx, index, doc)
}

func (l *LazyClient) Bulk(ctx context.Context, index string, docs []any) error {
	c, err := l.Client(ctx)
	if err != nil {
		return err
	}
	return c.Bulk(ctx, index, docs)
}

func (l *LazyClient) GetLifecyclePolicy(ctx context.Context, name string) (map[string]any, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.GetLifecyclePolicy(ctx, name)
}

func (l *LazyClient) DeleteIndex(ctx context.Context, names []string) error {
	c, err := l.Client(ctx)
	if err != nil {
		return err
	}
	return c.DeleteIndex(ctx, names)
}

func (l *LazyClient) Inference(ctx context.Context, inferenceID, input string) (string, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return "", err
	}
	return c.Inference(ctx, inferenceID, input)
}
