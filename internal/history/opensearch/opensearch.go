package opensearch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/loykin/claudewrap/internal/history"
)

// Sink indexes events into OpenSearch (or Elasticsearch) over its REST API.
// Each event becomes one document POSTed to baseURL/index/_doc.
type Sink struct {
	client  *resty.Client
	baseURL string
	index   string
}

func New(baseURL, index string) *Sink {
	baseURL = strings.TrimRight(baseURL, "/")
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5*time.Second).
		SetHeader("Content-Type", "application/json")
	return &Sink{client: c, baseURL: baseURL, index: index}
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(e).
		SetPathParam("index", s.index).
		Post("/{index}/_doc")
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("opensearch sink status %d", resp.StatusCode())
	}
	return nil
}
