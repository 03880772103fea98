// Command mockctl drives the control surface of a running mock FCM server.
//
//	mockctl [-addr host:port] [-http] configure -file errors.json [-replace]
//	mockctl reset
//	mockctl activity
//	mockctl tokens
package main

import (
	"bytes"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

type client struct {
	base string
	http *http.Client
}

func main() {
	addr := flag.String("addr", "localhost:8443", "Server address")
	plain := flag.Bool("http", false, "Use plain HTTP instead of HTTPS")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	scheme := "https"
	if *plain {
		scheme = "http"
	}
	c := &client{
		base: fmt.Sprintf("%s://%s", scheme, *addr),
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				// The server generates a self-signed certificate.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	var err error
	switch cmd {
	case "configure":
		err = c.configure(args)
	case "reset":
		err = c.do(http.MethodPost, "/reset", nil)
	case "activity":
		err = c.do(http.MethodGet, "/activity", nil)
	case "tokens":
		err = c.do(http.MethodGet, "/error-tokens", nil)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: mockctl [flags] configure|reset|activity|tokens [args]\n")
	flag.PrintDefaults()
}

func (c *client) configure(args []string) error {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	file := fs.String("file", "", "JSON file with a list of error entries ('-' for stdin)")
	replace := fs.Bool("replace", false, "Replace the whole registry instead of merging")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	var body []byte
	var err error
	if *file == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(*file)
	}
	if err != nil {
		return err
	}

	if *replace {
		return c.do(http.MethodPut, "/error-tokens?replace=true", body)
	}
	return c.do(http.MethodPost, "/error-tokens", body)
}

func (c *client) do(method, path string, body []byte) error {
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
