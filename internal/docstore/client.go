package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	requestTimeout = 2 * time.Minute
	pageSize       = 1000
)

var _ Store = (*Client)(nil)

// Client is an HTTP client for a paperless-ngx compatible document API.
// Tag name to id lookups are cached for the lifetime of the client.
type Client struct {
	baseURL   string
	token     string
	finishTag string
	client    *http.Client

	mu     sync.Mutex
	tagIDs map[string]int
}

func NewClient(baseURL, token, finishTag string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		finishTag: finishTag,
		client:    &http.Client{Timeout: requestTimeout},
		tagIDs:    make(map[string]int),
	}
}

func (c *Client) ListUntagged(ctx context.Context) ([]int, error) {
	finishID, err := c.EnsureTag(ctx, c.finishTag)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("tags__id__none", strconv.Itoa(finishID))
	return c.listIDs(ctx, params)
}

func (c *Client) ListTagged(ctx context.Context, tag string) ([]int, error) {
	tagID, err := c.EnsureTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	finishID, err := c.EnsureTag(ctx, c.finishTag)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("tags__id__all", strconv.Itoa(tagID))
	params.Set("tags__id__none", strconv.Itoa(finishID))
	return c.listIDs(ctx, params)
}

type documentPage struct {
	Count   int    `json:"count"`
	Next    string `json:"next"`
	Results []struct {
		ID int `json:"id"`
	} `json:"results"`
}

func (c *Client) listIDs(ctx context.Context, params url.Values) ([]int, error) {
	params.Set("ordering", "id")
	params.Set("page_size", strconv.Itoa(pageSize))
	params.Set("fields", "id")

	ids := []int{}
	next := fmt.Sprintf("%s/api/documents/?%s", c.baseURL, params.Encode())
	for next != "" {
		var page documentPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, r := range page.Results {
			ids = append(ids, r.ID)
		}
		next = page.Next
	}
	return ids, nil
}

type documentReply struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Tags    []int  `json:"tags"`
}

func (c *Client) Get(ctx context.Context, id int) (*Document, error) {
	var reply documentReply
	if err := c.getJSON(ctx, fmt.Sprintf("%s/api/documents/%d/", c.baseURL, id), &reply); err != nil {
		return nil, err
	}
	return &Document{ID: reply.ID, Title: reply.Title, Content: reply.Content, Tags: reply.Tags}, nil
}

func (c *Client) Download(ctx context.Context, id int) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("%s/api/documents/%d/download/", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "downloading document %d", id)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrDocumentNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading document %d failed: %s", id, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) UpdateContent(ctx context.Context, id int, content string) error {
	return c.patchDocument(ctx, id, map[string]any{"content": content})
}

func (c *Client) AddTag(ctx context.Context, id int, tag string) error {
	tagID, err := c.EnsureTag(ctx, tag)
	if err != nil {
		return err
	}

	doc, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, t := range doc.Tags {
		if t == tagID {
			return nil
		}
	}
	return c.patchDocument(ctx, id, map[string]any{"tags": append(doc.Tags, tagID)})
}

func (c *Client) RemoveTag(ctx context.Context, id int, tag string) error {
	tagID, err := c.EnsureTag(ctx, tag)
	if err != nil {
		return err
	}

	doc, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	tags := make([]int, 0, len(doc.Tags))
	found := false
	for _, t := range doc.Tags {
		if t == tagID {
			found = true
			continue
		}
		tags = append(tags, t)
	}
	if !found {
		return nil
	}
	return c.patchDocument(ctx, id, map[string]any{"tags": tags})
}

type tagPage struct {
	Results []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"results"`
}

func (c *Client) EnsureTag(ctx context.Context, name string) (int, error) {
	c.mu.Lock()
	if id, ok := c.tagIDs[name]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	var page tagPage
	lookup := fmt.Sprintf("%s/api/tags/?name__iexact=%s", c.baseURL, url.QueryEscape(name))
	if err := c.getJSON(ctx, lookup, &page); err != nil {
		return 0, err
	}
	for _, t := range page.Results {
		if strings.EqualFold(t.Name, name) {
			c.cacheTag(name, t.ID)
			return t.ID, nil
		}
	}

	// tag does not exist yet, create it
	var created struct {
		ID int `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/api/tags/", c.baseURL), map[string]any{"name": name}, &created); err != nil {
		return 0, errors.Wrapf(err, "creating tag %q", name)
	}
	c.cacheTag(name, created.ID)
	return created.ID, nil
}

func (c *Client) CountDocuments(ctx context.Context, tag string) (int, error) {
	params := url.Values{}
	params.Set("page_size", "1")
	if tag != "" {
		tagID, err := c.EnsureTag(ctx, tag)
		if err != nil {
			return 0, err
		}
		params.Set("tags__id__all", strconv.Itoa(tagID))
	}

	var page documentPage
	if err := c.getJSON(ctx, fmt.Sprintf("%s/api/documents/?%s", c.baseURL, params.Encode()), &page); err != nil {
		return 0, err
	}
	return page.Count, nil
}

func (c *Client) cacheTag(name string, id int) {
	c.mu.Lock()
	c.tagIDs[name] = id
	c.mu.Unlock()
}

func (c *Client) patchDocument(ctx context.Context, id int, fields map[string]any) error {
	err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("%s/api/documents/%d/", c.baseURL, id), fields, nil)
	return errors.Wrapf(err, "updating document %d", id)
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	return c.doJSON(ctx, http.MethodGet, u, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrDocumentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s failed: %s: %s", method, u, resp.Status, errBody)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
