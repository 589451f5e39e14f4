package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Pacer spaces calls against the rate-limited catalog API. Wait blocks
// until the next call is allowed or the context is done.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RESTClient talks JSON over HTTP to a catalog endpoint. It maps remote
// failures onto the typed errors in this package so the retry policy can
// classify them without knowing about HTTP.
type RESTClient struct {
	base  string
	token string
	hc    *http.Client
	pacer Pacer
}

// NewRESTClient creates a client for the catalog at base (e.g.
// "https://catalog.example.com"). token, timeout and pacer are optional;
// a zero timeout falls back to 30s.
func NewRESTClient(base, token string, timeout time.Duration, pacer Pacer) *RESTClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RESTClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		hc:    &http.Client{Timeout: timeout},
		pacer: pacer,
	}
}

type wireAsset struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type wireAssetList struct {
	Assets        []wireAsset `json:"assets"`
	NextPageToken string      `json:"nextPageToken"`
}

type wireError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *RESTClient) GetNode(ctx context.Context, path string) (Node, error) {
	var asset wireAsset
	if err := c.do(ctx, http.MethodGet, "get", path, c.assetURL(path), nil, &asset); err != nil {
		return Node{}, err
	}
	return Node{Path: asset.Name, Kind: KindFromType(asset.Type)}, nil
}

func (c *RESTClient) ListChildren(ctx context.Context, parent string) ([]Node, error) {
	var nodes []Node
	pageToken := ""
	for {
		u := c.assetURL(parent) + ":listAssets"
		if pageToken != "" {
			u += "?pageToken=" + url.QueryEscape(pageToken)
		}
		var page wireAssetList
		if err := c.do(ctx, http.MethodGet, "list", parent, u, nil, &page); err != nil {
			return nil, err
		}
		for _, a := range page.Assets {
			nodes = append(nodes, Node{Path: a.Name, Kind: KindFromType(a.Type)})
		}
		if page.NextPageToken == "" {
			return nodes, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *RESTClient) DeleteNode(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, "delete", path, c.assetURL(path), nil, nil)
}

// CreateContainer creates a folder at path. The catalog distinguishes
// folder flavors only at creation time; this client always creates plain
// folders, which hold any child kind.
func (c *RESTClient) CreateContainer(ctx context.Context, path string, _ Kind) error {
	body := map[string]string{"type": "FOLDER"}
	return c.do(ctx, http.MethodPost, "create", path, c.assetURL(path), body, nil)
}

func (c *RESTClient) CopyNode(ctx context.Context, src, dst string) error {
	body := map[string]string{"destinationName": dst}
	return c.do(ctx, http.MethodPost, "copy", src, c.assetURL(src)+":copy", body, nil)
}

func (c *RESTClient) RenameNode(ctx context.Context, src, dst string) error {
	body := map[string]string{"destinationName": dst}
	return c.do(ctx, http.MethodPost, "rename", src, c.assetURL(src)+":rename", body, nil)
}

func (c *RESTClient) assetURL(path string) string {
	return c.base + "/v1/" + strings.TrimLeft(path, "/")
}

func (c *RESTClient) do(ctx context.Context, method, op, path, u string, body, out any) error {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return fmt.Errorf("%s %s: %w", op, path, err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", op, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &RemoteError{Op: op, Path: path, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.remoteError(op, path, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &RemoteError{Op: op, Path: path, StatusCode: resp.StatusCode, Message: "decode response: " + err.Error()}
		}
	}
	return nil
}

// remoteError maps an HTTP failure onto the package's typed errors.
func (c *RESTClient) remoteError(op, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	msg := strings.TrimSpace(string(raw))
	status := ""
	var we wireError
	if err := json.Unmarshal(raw, &we); err == nil && we.Error.Message != "" {
		msg = we.Error.Message
		status = we.Error.Status
	}

	re := &RemoteError{Op: op, Path: path, StatusCode: resp.StatusCode, Message: msg}
	lower := strings.ToLower(msg)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		re.Err = ErrNotFound
	case resp.StatusCode == http.StatusForbidden:
		re.Err = ErrPermissionDenied
	case resp.StatusCode == http.StatusTooManyRequests:
		re.Err = ErrRateLimited
	case resp.StatusCode == http.StatusConflict:
		re.Err = ErrAlreadyExists
	case status == "FAILED_PRECONDITION",
		strings.Contains(lower, "delete its children"),
		strings.Contains(lower, "not empty"):
		re.Err = ErrNotEmpty
	case status == "RESOURCE_EXHAUSTED", strings.Contains(lower, "quota"):
		re.Err = ErrRateLimited
	}
	return re
}
