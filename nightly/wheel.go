// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nightly

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// A Wheel is the decomposed file name of a wheel, such as
// torch-1.13.0.dev20220801+cu113-cp37-cp37m-linux_x86_64.whl.
type Wheel struct {
	URL      string
	Name     string // "torch"
	Version  string // "1.13.0.dev20220801+cu113"
	PyVer    string // "cp37"
	Platform string // "linux_x86_64"
}

// ParseWheel decomposes the base name of url. The platform is the last
// '-' separated field of the name without its extension.
func ParseWheel(url string) (Wheel, error) {
	base := path.Base(url)
	base = strings.TrimSuffix(base, path.Ext(base))
	fs := strings.Split(base, "-")
	if len(fs) < 3 {
		return Wheel{}, fmt.Errorf("malformed wheel name %q", path.Base(url))
	}
	return Wheel{
		URL:      url,
		Name:     fs[0],
		Version:  fs[1],
		PyVer:    fs[2],
		Platform: fs[len(fs)-1],
	}, nil
}

// NormalizedVersion returns "<name>-<version>" with any local version
// label, written as "+..." or "%2B...", removed.
func (w Wheel) NormalizedVersion() string {
	v := w.Name + "-" + w.Version
	if i := strings.Index(v, "%2B"); i >= 0 {
		v = v[:i]
	}
	if i := strings.Index(v, "+"); i >= 0 {
		v = v[:i]
	}
	return v
}

// Match reports whether the wheel at url was built on day (YYYYMMDD)
// for the Python tag pyver and a platform containing platform. Each
// test is a substring match, so empty arguments match anything. Names
// that are not wheels never match.
func Match(url, day, pyver, platform string) bool {
	w, err := ParseWheel(url)
	if err != nil {
		return false
	}
	return strings.Contains(w.Version, day) &&
		strings.Contains(w.PyVer, pyver) &&
		strings.Contains(w.Platform, platform)
}

// RecentDays returns n days in YYYYMMDD form, starting with today and
// going backwards.
func RecentDays(today time.Time, n int) []string {
	days := make([]string, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, today.AddDate(0, 0, -i).Format("20060102"))
	}
	return days
}

// ByDay groups the urls matching pyver and platform by the day in days
// they were built. Days with no matching wheel map to an empty list.
func ByDay(urls, days []string, pyver, platform string) map[string][]string {
	res := make(map[string][]string, len(days))
	for _, day := range days {
		res[day] = []string{}
		for _, u := range urls {
			if Match(u, day, pyver, platform) {
				res[day] = append(res[day], u)
			}
		}
	}
	return res
}
