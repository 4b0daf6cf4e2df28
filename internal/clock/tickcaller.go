package clock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"tickflow/internal/consts"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
)

// TickCaller 时钟每步推进后的同步回调，返回该步执行的信号数
type TickCaller interface {
	Tick(ctx context.Context, now time.Time) (int, error)
}

// TickFunc 进程内直连调度器用
type TickFunc func(ctx context.Context, now time.Time) (int, error)

func (f TickFunc) Tick(ctx context.Context, now time.Time) (int, error) {
	return f(ctx, now)
}

// HTTPTicker 跨进程tick：POST {now} 到调度端点，带模拟时间头，
// 等响应里的executed_count
type HTTPTicker struct {
	url    string
	client *http.Client
}

func NewHTTPTicker(url string) *HTTPTicker {
	return &HTTPTicker{
		url: url,
		// 超时交给每步的context控制
		client: &http.Client{},
	}
}

// Target 配置查询用的tick目标描述
func (t *HTTPTicker) Target() string { return t.url }

type tickRequest struct {
	Now string `json:"now"`
}

type tickResponse struct {
	ExecutedCount int `json:"executed_count"`
}

func (t *HTTPTicker) Tick(ctx context.Context, now time.Time) (int, error) {
	raw, err := json.Marshal(tickRequest{Now: now.UTC().Format(time.RFC3339)})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(consts.SimulationTimeHeader, now.UTC().Format(time.RFC3339))

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, ecode.TimeoutErr, "tick "+t.url)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, errors.WithCode(ecode.InternalErr, "tick %s: status %d: %s", t.url, resp.StatusCode, truncate(body, 200))
	}
	var out tickResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("tick %s: bad response: %w", t.url, err)
	}
	return out.ExecutedCount, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
