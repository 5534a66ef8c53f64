package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	get(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/state")
}

func portalsCmd(args []string) {
	fs := flag.NewFlagSet("portals", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	dim := fs.String("dimension", "", "dimension filter")
	addr := fs.String("address", "", "four comma separated block ids")
	_ = fs.Parse(args)

	q := url.Values{}
	if *dim != "" {
		q.Set("dimension", *dim)
	}
	if *addr != "" {
		q.Set("address", *addr)
	}
	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/portals"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	get(u)
}

func get(u string) {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
