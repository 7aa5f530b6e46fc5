package platform

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/d60-Lab/pumproom/internal/query"
)

// SplunkOptions export 搜索客户端配置
type SplunkOptions struct {
	BaseURL      string
	Token        string
	Username     string
	Password     string
	Index        string
	AccountField string
}

// Splunk 通过流式 export 接口执行 SPL
type Splunk struct {
	http *http.Client
	opts SplunkOptions
}

func NewSplunk(client *http.Client, opts SplunkOptions) *Splunk {
	if client == nil {
		client = http.DefaultClient
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.AccountField == "" {
		opts.AccountField = "user"
	}
	return &Splunk{http: client, opts: opts}
}

func (s *Splunk) Platform() string { return PlatformSplunk }

func (s *Splunk) Capabilities() query.Capabilities {
	return query.Capabilities{Accounts: true, SearchTerms: true, TimeFrame: true}
}

func (s *Splunk) Search(ctx context.Context, q query.ReservoirQuery) ([]Record, error) {
	return collect(ctx, s, q)
}

// exportLine output_mode=json 的一行输出
type exportLine struct {
	Preview  bool           `json:"preview"`
	Result   map[string]any `json:"result"`
	LastRow  bool           `json:"lastrow"`
	Messages []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"messages"`
}

func (s *Splunk) Stream(ctx context.Context, q query.ReservoirQuery, emit func(Record) error) error {
	form := url.Values{}
	form.Set("search", BuildSPL(s.opts.Index, s.opts.AccountField, q))
	form.Set("output_mode", "json")
	if !q.TimeFrame.Start.IsZero() {
		form.Set("earliest_time", strconv.FormatInt(q.TimeFrame.Start.Unix(), 10))
	}
	if !q.TimeFrame.End.IsZero() {
		form.Set("latest_time", strconv.FormatInt(q.TimeFrame.End.Unix(), 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.BaseURL+"/services/search/jobs/export", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.opts.Token)
	} else if s.opts.Username != "" {
		req.SetBasicAuth(s.opts.Username, s.opts.Password)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("splunk: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readStatusError(PlatformSplunk, resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var row exportLine
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return fmt.Errorf("splunk: decode: %w", err)
		}
		for _, m := range row.Messages {
			if m.Type == "FATAL" || m.Type == "ERROR" {
				return fmt.Errorf("splunk: %s", m.Text)
			}
		}
		if row.Preview || row.Result == nil {
			continue
		}
		if err := emit(Record(row.Result)); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("splunk: read: %w", err)
	}
	return nil
}

// BuildSPL 按查询条件拼出 search 命令
func BuildSPL(index, accountField string, q query.ReservoirQuery) string {
	parts := []string{"search"}
	if index != "" {
		parts = append(parts, "index="+quoteSPL(index))
	}
	if len(q.SearchTerms) > 0 {
		parts = append(parts, orGroup(q.SearchTerms, func(t string) string { return quoteSPL(t) }))
	}
	if len(q.Accounts) > 0 {
		parts = append(parts, orGroup(q.Accounts, func(a string) string { return accountField + "=" + quoteSPL(a) }))
	}
	return strings.Join(parts, " ")
}

func orGroup(items []string, render func(string) string) string {
	rendered := make([]string, len(items))
	for i, it := range items {
		rendered[i] = render(it)
	}
	if len(rendered) == 1 {
		return rendered[0]
	}
	return "(" + strings.Join(rendered, " OR ") + ")"
}

func quoteSPL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
