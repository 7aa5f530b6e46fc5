package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	vt "github.com/VirusTotal/vt-go"

	"github.com/d60-Lab/pumproom/internal/query"
)

const (
	PlatformVirusTotal    = "virustotal"
	PlatformElasticsearch = "elasticsearch"
	PlatformSplunk        = "splunk"
)

// VirusTotal 通过 vt-go 调用 v3 intelligence search
type VirusTotal struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limit   int
}

func NewVirusTotal(client *http.Client, baseURL, apiKey string, limit int) *VirusTotal {
	if client == nil {
		client = http.DefaultClient
	}
	if limit <= 0 {
		limit = 40
	}
	return &VirusTotal{http: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, limit: limit}
}

func (v *VirusTotal) Platform() string { return PlatformVirusTotal }

func (v *VirusTotal) Capabilities() query.Capabilities {
	return query.Capabilities{SearchTerms: true}
}

func (v *VirusTotal) Search(ctx context.Context, q query.ReservoirQuery) ([]Record, error) {
	if len(q.SearchTerms) == 0 {
		return nil, query.ErrEmpty
	}
	u, err := url.Parse(v.baseURL + "/api/v3/intelligence/search")
	if err != nil {
		return nil, fmt.Errorf("virustotal: base url: %w", err)
	}
	params := url.Values{}
	params.Set("query", strings.Join(q.SearchTerms, " OR "))
	u.RawQuery = params.Encode()

	// vt-go 不接受 ctx，由 transport 注入
	client := vt.NewClient(v.apiKey, vt.WithHTTPClient(&http.Client{
		Timeout:   v.http.Timeout,
		Transport: &vtTransport{ctx: ctx, next: v.http.Transport},
	}))
	it, err := client.Iterator(u, vt.IteratorBatchSize(v.limit), vt.IteratorLimit(v.limit))
	if err != nil {
		return nil, fmt.Errorf("virustotal: %w", err)
	}
	defer it.Close()

	out := make([]Record, 0, v.limit)
	for it.Next() {
		rec, err := vtRecord(it.Get())
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("virustotal: %w", err)
	}
	return out, nil
}

func vtRecord(obj *vt.Object) (Record, error) {
	raw, err := obj.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("virustotal: encode object: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("virustotal: decode object: %w", err)
	}
	return rec, nil
}

// vtTransport 给请求挂上 ctx，非 2xx 直接转成 StatusError，429 得以保留
type vtTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t *vtTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(req.WithContext(t.ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		return nil, readStatusError(PlatformVirusTotal, resp)
	}
	return resp, nil
}
