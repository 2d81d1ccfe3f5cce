// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Checknightly reports which PyTorch nightly wheels were published on
// each of the last few days.
//
// Usage:
//
//	checknightly -cuda version [-pyver tag] [-os platform] [-days n]
//
// For example,
//
//	checknightly -cuda cu113 -pyver cp38
//
// lists the CUDA 11.3 wheels for Python 3.8 on Linux built in the last
// five days, grouped by build day.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/torchbench/benchstab/nightly"
)

var (
	flagCUDA    = flag.String("cuda", "", "CUDA `version` the wheels are built against, such as cu113 (required)")
	flagPyVer   = flag.String("pyver", "cp37", "Python `tag` the wheels are built for")
	flagOS      = flag.String("os", "linux", "`platform` the wheels are built for")
	flagDays    = flag.Int("days", 5, "check the last `n` days")
	flagBaseURL = flag.String("index", nightly.DefaultBaseURL, "nightly index `url`")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: checknightly -cuda version [options]\n")
	fmt.Fprintf(os.Stderr, "options:\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetPrefix("checknightly: ")
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()
	if *flagCUDA == "" || flag.NArg() != 0 || *flagDays < 1 {
		flag.Usage()
	}

	f := &nightly.Fetcher{
		Client:  &http.Client{Timeout: time.Minute},
		BaseURL: *flagBaseURL,
		Cache:   nightly.NewCache(),
	}
	urls, err := f.List(context.Background(), *flagCUDA)
	if err != nil {
		log.Fatal(err)
	}

	days := nightly.RecentDays(time.Now(), *flagDays)
	byDay := nightly.ByDay(urls, days, *flagPyVer, *flagOS)
	for _, day := range days {
		fmt.Println(day)
		for _, u := range byDay[day] {
			fmt.Printf("\t- %s\n", path.Base(u))
		}
	}
}
