// Command httpget fetches a URL and prints the response body.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/IvanTurko/depthstream-go/internal/logx"
	"github.com/IvanTurko/depthstream-go/rest"
)

const defaultURL = "https://api.coinstats.app/public/v1/coins/dogecoin"

type headerFlags []string

func (h *headerFlags) String() string { return strings.Join(*h, ", ") }

func (h *headerFlags) Set(v string) error {
	if !strings.Contains(v, ":") {
		return fmt.Errorf("header %q is not in Name: value form", v)
	}
	*h = append(*h, v)
	return nil
}

type options struct {
	url     string
	headers []string
	timeout time.Duration
}

func main() {
	var (
		opts     options
		headers  headerFlags
		logLevel string
	)
	flag.StringVar(&opts.url, "url", defaultURL, "address to fetch")
	flag.Var(&headers, "H", "request header in Name: value form (repeatable)")
	flag.DurationVar(&opts.timeout, "timeout", 3*time.Second, "request timeout")
	flag.StringVar(&logLevel, "log-level", "info", "log level")
	flag.Parse()

	if len(headers) == 0 {
		headers = headerFlags{"Accept: text/plain"}
	}
	opts.headers = headers

	logger := logx.New(logLevel)
	defer logger.Sync()

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		logger.Error("request failed", zap.String("url", opts.url), zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	svc := rest.NewGetService().URL(opts.url).Timeout(opts.timeout)
	for _, h := range opts.headers {
		name, value, _ := strings.Cut(h, ":")
		svc.Header(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, resp.Body)
	return err
}
