// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nightly lists the PyTorch nightly wheels published for a
// CUDA version and reports which were built on given days.
package nightly

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// DefaultBaseURL is the root of the nightly wheel index.
const DefaultBaseURL = "https://download.pytorch.org/whl/nightly/"

type cacheKey struct {
	endpoint, tag string
}

// A Cache memoizes wheel listings by index endpoint and CUDA version
// tag for the lifetime of the process. A Cache is safe for concurrent
// use. Entries are never invalidated.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey][]string
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey][]string)}
}

// Get returns a copy of the cached listing for (endpoint, tag).
func (c *Cache) Get(endpoint, tag string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	urls, ok := c.entries[cacheKey{endpoint, tag}]
	if !ok {
		return nil, false
	}
	return append([]string(nil), urls...), true
}

// Put records urls as the listing for (endpoint, tag).
func (c *Cache) Put(endpoint, tag string, urls []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{endpoint, tag}] = append([]string(nil), urls...)
}

// A Fetcher retrieves nightly wheel listings.
type Fetcher struct {
	// Client is the HTTP client to use. If nil,
	// http.DefaultClient is used.
	Client *http.Client

	// BaseURL is the root of the index. If "",
	// DefaultBaseURL is used.
	BaseURL string

	// Cache, if non-nil, memoizes listings.
	Cache *Cache
}

func (f *Fetcher) httpClient() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) baseURL() string {
	base := f.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// List returns the absolute URLs of every wheel in the nightly index
// for the CUDA version tag cuda, such as "cu113" or "cpu".
func (f *Fetcher) List(ctx context.Context, cuda string) ([]string, error) {
	base := f.baseURL()
	if f.Cache != nil {
		if urls, ok := f.Cache.Get(base, cuda); ok {
			return urls, nil
		}
	}

	dir := base + cuda + "/"
	req, err := http.NewRequestWithContext(ctx, "GET", dir+"torch_nightly.html", nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: %s", req.URL, resp.Status)
	}
	urls, err := ParseIndex(resp.Body, dir)
	if err != nil {
		return nil, err
	}
	if f.Cache != nil {
		f.Cache.Put(base, cuda, urls)
	}
	return urls, nil
}

// ParseIndex returns the text of every <a> element in the HTML read
// from r, URL-unescaped and joined to base.
func ParseIndex(r io.Reader, base string) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var urls []string
	var walk func(*html.Node) error
	walk = func(n *html.Node) error {
		if n.Type == html.ElementNode && n.Data == "a" {
			text, err := url.PathUnescape(nodeText(n))
			if err != nil {
				return err
			}
			urls = append(urls, base+text)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(doc); err != nil {
		return nil, err
	}
	return urls, nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
