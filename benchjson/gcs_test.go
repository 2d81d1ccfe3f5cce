// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchjson

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
)

// fakeGCS serves the JSON object listing and the object downloads of a
// single bucket.
type fakeGCS struct {
	bucket   string
	prefixes []string          // "directories" under the listed prefix
	objects  map[string]string // object name -> content
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/storage/v1/b/"+f.bucket+"/o" {
		prefix := r.URL.Query().Get("prefix")
		type item struct {
			Bucket string `json:"bucket"`
			Name   string `json:"name"`
			Size   uint64 `json:"size,string"`
		}
		var items []item
		for name, content := range f.objects {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			items = append(items, item{f.bucket, name, uint64(len(content))})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"kind":     "storage#objects",
			"prefixes": f.prefixes,
			"items":    items,
		})
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/"+f.bucket+"/")
	content, ok := f.objects[name]
	if !ok || name == r.URL.Path {
		http.NotFound(w, r)
		return
	}
	io.WriteString(w, content)
}

func TestGCSSource(t *testing.T) {
	fake := &fakeGCS{
		bucket:   "bkt",
		prefixes: []string{"runs/nested/"},
		objects: map[string]string{
			"runs/b.json":     run("test_x_cpu[a-b-c]", 2),
			"runs/a.json":     run("test_x_cpu[a-b-c]", 1),
			"runs/empty.json": "",
			"runs/notes.txt":  "not a result file",
			"other/c.json":    run("test_x_cpu[a-b-c]", 3),
		},
	}
	ts := httptest.NewServer(fake)
	defer ts.Close()

	ctx := context.Background()
	client, err := storage.NewClient(ctx, option.WithEndpoint(ts.URL+"/storage/v1/"), option.WithoutAuthentication())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	src := GCS(client, "bkt", "runs/")
	names, err := src.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"runs/a.json", "runs/b.json"}, names); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}

	rc, err := src.Open(ctx, "runs/a.json")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	snap, err := Decode(rc, "runs/a.json")
	rc.Close()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"test_x_cpu[a-b-c]"}, snap.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}

	sets, err := (&Files{Source: src}).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var medians []float64
	for _, rs := range sets {
		o, _ := rs.Lookup("test_x_cpu[a-b-c]")
		medians = append(medians, o.Median())
	}
	if diff := cmp.Diff([]float64{1, 2}, medians); diff != "" {
		t.Errorf("medians mismatch (-want +got):\n%s", diff)
	}
}
