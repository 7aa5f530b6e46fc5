package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/d60-Lab/pumproom/internal/query"
)

// ElasticOptions scroll 搜索客户端配置
type ElasticOptions struct {
	Address      string
	Username     string
	Password     string
	APIKey       string
	Index        string
	AccountField string
	PageSize     int
	KeepAlive    time.Duration
	// Timeout 单次请求等待响应头的上限；scroll 分页进行，不限制整个查询
	Timeout      time.Duration
	Transport    http.RoundTripper
}

// Elastic 用 scroll API 翻页读取索引
type Elastic struct {
	client       *elasticsearch.Client
	index        string
	accountField string
	pageSize     int
	keepAlive    time.Duration
}

func NewElastic(opts ElasticOptions) (*Elastic, error) {
	transport := opts.Transport
	if transport == nil && opts.Timeout > 0 {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = opts.Timeout
		transport = t
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{opts.Address},
		Username:  opts.Username,
		Password:  opts.Password,
		APIKey:    opts.APIKey,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: %w", err)
	}
	e := &Elastic{
		client:       client,
		index:        opts.Index,
		accountField: opts.AccountField,
		pageSize:     opts.PageSize,
		keepAlive:    opts.KeepAlive,
	}
	if e.index == "" {
		e.index = "_all"
	}
	if e.accountField == "" {
		e.accountField = "user.name"
	}
	if e.pageSize <= 0 {
		e.pageSize = 500
	}
	if e.keepAlive <= 0 {
		e.keepAlive = time.Minute
	}
	return e, nil
}

func (e *Elastic) Platform() string { return PlatformElasticsearch }

func (e *Elastic) Capabilities() query.Capabilities {
	return query.Capabilities{Accounts: true, SearchTerms: true, TimeFrame: true}
}

func (e *Elastic) Search(ctx context.Context, q query.ReservoirQuery) ([]Record, error) {
	return collect(ctx, e, q)
}

type scrollPage struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			Index  string         `json:"_index"`
			ID     string         `json:"_id"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *Elastic) Stream(ctx context.Context, q query.ReservoirQuery, emit func(Record) error) error {
	body, err := json.Marshal(BuildElasticQuery(e.accountField, q))
	if err != nil {
		return err
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(body)),
		e.client.Search.WithSize(e.pageSize),
		e.client.Search.WithScroll(e.keepAlive),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch: search: %w", err)
	}
	page, err := decodePage(res)
	if err != nil {
		return err
	}

	scrollID := page.ScrollID
	defer func() {
		if scrollID == "" {
			return
		}
		// 即使 ctx 已取消也要释放服务端 scroll 上下文
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if res, err := e.client.ClearScroll(
			e.client.ClearScroll.WithContext(cctx),
			e.client.ClearScroll.WithScrollID(scrollID),
		); err == nil {
			res.Body.Close()
		}
	}()

	for len(page.Hits.Hits) > 0 {
		for _, h := range page.Hits.Hits {
			rec := Record{"_id": h.ID, "_index": h.Index}
			for k, v := range h.Source {
				rec[k] = v
			}
			if err := emit(rec); err != nil {
				return err
			}
		}
		res, err := e.client.Scroll(
			e.client.Scroll.WithContext(ctx),
			e.client.Scroll.WithScrollID(scrollID),
			e.client.Scroll.WithScroll(e.keepAlive),
		)
		if err != nil {
			return fmt.Errorf("elasticsearch: scroll: %w", err)
		}
		if page, err = decodePage(res); err != nil {
			return err
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}
	return nil
}

func decodePage(res *esapi.Response) (scrollPage, error) {
	defer res.Body.Close()
	var page scrollPage
	if res.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return page, &StatusError{Platform: PlatformElasticsearch, Code: res.StatusCode, Body: string(raw)}
	}
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return page, fmt.Errorf("elasticsearch: decode: %w", err)
	}
	return page, nil
}

// BuildElasticQuery 按查询条件生成 bool 查询
func BuildElasticQuery(accountField string, q query.ReservoirQuery) map[string]any {
	var must, filter []any
	if len(q.SearchTerms) > 0 {
		quoted := make([]string, len(q.SearchTerms))
		for i, t := range q.SearchTerms {
			quoted[i] = `"` + strings.ReplaceAll(t, `"`, `\"`) + `"`
		}
		must = append(must, map[string]any{
			"query_string": map[string]any{"query": strings.Join(quoted, " OR ")},
		})
	}
	if len(q.Accounts) > 0 {
		filter = append(filter, map[string]any{
			"terms": map[string]any{accountField: q.Accounts},
		})
	}
	if !q.TimeFrame.IsZero() {
		rng := map[string]any{}
		if !q.TimeFrame.Start.IsZero() {
			rng["gte"] = q.TimeFrame.Start.UTC().Format(time.RFC3339)
		}
		if !q.TimeFrame.End.IsZero() {
			rng["lte"] = q.TimeFrame.End.UTC().Format(time.RFC3339)
		}
		filter = append(filter, map[string]any{"range": map[string]any{"@timestamp": rng}})
	}
	boolQ := map[string]any{}
	if len(must) > 0 {
		boolQ["must"] = must
	}
	if len(filter) > 0 {
		boolQ["filter"] = filter
	}
	return map[string]any{
		"query": map[string]any{"bool": boolQ},
		"sort":  []string{"_doc"},
	}
}
