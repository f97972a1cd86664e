// Package restapi implements entity.Client against a JSON REST API.
//
// Entity kinds map to collection paths via entity.KindPath, so kind
// "order_lines" talks to "/order-lines". Create POSTs the payload, Find
// GETs with criteria flattened into query parameters (nested criteria use
// dotted keys), Update PATCHes, Delete DELETEs. Responses decode with
// json.Number so numeric id attributes keep their wire representation.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"resty.dev/v3"

	"github.com/seedbed/seedbed/internal/entity"
)

// Options configures the REST client.
type Options struct {
	BaseURL string
	Token   string            // sent as a bearer Authorization header when set
	Headers map[string]string // extra headers on every request
	Timeout time.Duration
}

// Client is a REST-backed entity.Client.
type Client struct {
	rc      *resty.Client
	baseURL string
}

var _ entity.Client = (*Client)(nil)

// New builds a client over a pooled transport. Callers own Close.
func New(opts Options) *Client {
	rc := resty.New().
		SetTransport(cleanhttp.DefaultPooledTransport()).
		SetBaseURL(opts.BaseURL).
		SetHeader("Accept", "application/json")
	if opts.Token != "" {
		rc.SetAuthToken(opts.Token)
	}
	if len(opts.Headers) > 0 {
		rc.SetHeaders(opts.Headers)
	}
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}
	return &Client{rc: rc, baseURL: opts.BaseURL}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.rc.Close()
	return nil
}

// Create POSTs data to the kind's collection and decodes the created
// entity. The response must carry an id attribute.
func (c *Client) Create(ctx context.Context, kind string, data map[string]any) (*entity.Handle, error) {
	res, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(data).
		Post("/" + entity.KindPath(kind))
	if err != nil {
		return nil, &entity.RequestError{Op: "create", Kind: kind, Err: err}
	}
	if !res.IsSuccess() {
		return nil, &entity.RequestError{Op: "create", Kind: kind, Status: res.StatusCode(), Body: res.String()}
	}

	attrs, err := decodeObject(res.Bytes())
	if err != nil {
		return nil, &entity.RequestError{Op: "create", Kind: kind, Status: res.StatusCode(), Err: err}
	}
	h, err := entity.HandleFromAttrs(attrs)
	if err != nil {
		return nil, &entity.RequestError{Op: "create", Kind: kind, Status: res.StatusCode(), Err: err}
	}
	return h, nil
}

// Find GETs the kind's collection with criteria as query parameters. The
// response may be a bare JSON array or an object with an "items" array.
// Zero matches returns an empty slice; deciding whether that is fatal is
// the caller's business.
func (c *Client) Find(ctx context.Context, kind string, criteria map[string]any) ([]*entity.Handle, error) {
	res, err := c.rc.R().
		SetContext(ctx).
		SetQueryParams(flattenCriteria(criteria)).
		Get("/" + entity.KindPath(kind))
	if err != nil {
		return nil, &entity.RequestError{Op: "find", Kind: kind, Err: err}
	}
	if !res.IsSuccess() {
		return nil, &entity.RequestError{Op: "find", Kind: kind, Status: res.StatusCode(), Body: res.String()}
	}

	items, err := decodeItems(res.Bytes())
	if err != nil {
		return nil, &entity.RequestError{Op: "find", Kind: kind, Status: res.StatusCode(), Err: err}
	}
	handles := make([]*entity.Handle, 0, len(items))
	for _, attrs := range items {
		h, err := entity.HandleFromAttrs(attrs)
		if err != nil {
			return nil, &entity.RequestError{Op: "find", Kind: kind, Status: res.StatusCode(), Err: err}
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Update PATCHes the identified entity. An empty response body is
// accepted; the returned handle then carries only the submitted data.
func (c *Client) Update(ctx context.Context, kind string, id string, data map[string]any) (*entity.Handle, error) {
	res, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(data).
		Patch("/" + entity.KindPath(kind) + "/" + id)
	if err != nil {
		return nil, &entity.RequestError{Op: "update", Kind: kind, Err: err}
	}
	if !res.IsSuccess() {
		return nil, &entity.RequestError{Op: "update", Kind: kind, Status: res.StatusCode(), Body: res.String()}
	}

	body := res.Bytes()
	if len(bytes.TrimSpace(body)) == 0 {
		return &entity.Handle{ID: id, Attrs: data}, nil
	}
	attrs, err := decodeObject(body)
	if err != nil {
		return nil, &entity.RequestError{Op: "update", Kind: kind, Status: res.StatusCode(), Err: err}
	}
	if _, ok := attrs["id"]; !ok {
		attrs["id"] = id
	}
	h, err := entity.HandleFromAttrs(attrs)
	if err != nil {
		return nil, &entity.RequestError{Op: "update", Kind: kind, Status: res.StatusCode(), Err: err}
	}
	return h, nil
}

// Delete removes the identified entity.
func (c *Client) Delete(ctx context.Context, kind string, id string) error {
	res, err := c.rc.R().
		SetContext(ctx).
		Delete("/" + entity.KindPath(kind) + "/" + id)
	if err != nil {
		return &entity.RequestError{Op: "delete", Kind: kind, Err: err}
	}
	if !res.IsSuccess() {
		return &entity.RequestError{Op: "delete", Kind: kind, Status: res.StatusCode(), Body: res.String()}
	}
	return nil
}

// Ping GETs the base URL and reports the status code and round-trip time.
func (c *Client) Ping(ctx context.Context) (int, time.Duration, error) {
	start := time.Now()
	res, err := c.rc.R().SetContext(ctx).Get("")
	elapsed := time.Since(start)
	if err != nil {
		return 0, elapsed, fmt.Errorf("ping %s: %w", c.baseURL, err)
	}
	return res.StatusCode(), elapsed, nil
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response object: %w", err)
	}
	return out, nil
}

func decodeItems(body []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode find response: %w", err)
	}

	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		items, ok := v["items"].([]any)
		if !ok {
			return nil, fmt.Errorf("find response is neither an array nor an items object")
		}
		list = items
	default:
		return nil, fmt.Errorf("find response is neither an array nor an items object")
	}

	out := make([]map[string]any, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("find response item %d is not an object", i)
		}
		out = append(out, obj)
	}
	return out, nil
}

// flattenCriteria renders criteria as query parameters. Nested maps
// flatten to dotted keys; scalars format by type.
func flattenCriteria(criteria map[string]any) map[string]string {
	out := make(map[string]string, len(criteria))
	var flatten func(prefix string, m map[string]any)
	flatten = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if nested, ok := v.(map[string]any); ok {
				flatten(key, nested)
				continue
			}
			out[key] = queryValue(v)
		}
	}
	flatten("", criteria)
	return out
}

func queryValue(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case json.Number:
		return n.String()
	case bool:
		return strconv.FormatBool(n)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", n)
	}
}
