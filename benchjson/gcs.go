// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchjson

import (
	"context"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ParseGCSPath splits a "gs://bucket/prefix" location into its bucket
// and object prefix. ok is false if location is not a gs:// URL.
func ParseGCSPath(location string) (bucket, prefix string, ok bool) {
	rest := strings.TrimPrefix(location, "gs://")
	if rest == location || rest == "" {
		return "", "", false
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, true
}

// NewGCSClient returns a Cloud Storage client. If token is non-empty,
// it is used as an OAuth2 bearer token; otherwise the client uses
// Application Default Credentials.
func NewGCSClient(ctx context.Context, token string) (*storage.Client, error) {
	var opts []option.ClientOption
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		opts = append(opts, option.WithTokenSource(ts))
	}
	return storage.NewClient(ctx, opts...)
}

// GCS returns a Source for the result files under prefix in a Cloud
// Storage bucket. Objects in nested "directories" are not included.
func GCS(client *storage.Client, bucket, prefix string) Source {
	return &gcsSource{bucket: client.Bucket(bucket), prefix: prefix}
}

type gcsSource struct {
	bucket *storage.BucketHandle
	prefix string
}

func (g *gcsSource) List(ctx context.Context) ([]string, error) {
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: g.prefix, Delimiter: "/"})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		// Synthetic directory entries have only a Prefix.
		if attrs.Name == "" || !strings.HasSuffix(attrs.Name, ".json") || attrs.Size == 0 {
			continue
		}
		names = append(names, attrs.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (g *gcsSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return g.bucket.Object(name).NewReader(ctx)
}
