// Command httpfetch fetches a URL with browser-like headers and writes the
// decoded body to stdout or to a file.
//
//	httpfetch [flags] <url>
//
// Settings can also come from a config file (--config), from HTTPFETCH_
// prefixed environment variables or from a .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/adamwoolhether/httpfetch/config"
	"github.com/adamwoolhether/httpfetch/fetch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "httpfetch: %s\n", describe(err))
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("httpfetch", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: httpfetch [flags] <url>")
		flags.PrintDefaults()
	}

	configPath := flags.String("config", "", "path to a config file")
	output := flags.StringP("output", "o", "", "save the body to this file instead of stdout")
	flags.Bool("accept-anything", false, "send Accept: */*")
	flags.Bool("dnt", false, "send DNT: 1")
	flags.Bool("upgrade-insecure", false, "send Upgrade-Insecure-Requests: 1")
	flags.Bool("te-trailers", false, "send TE: trailers")
	flags.String("cookie", "", "Cookie header value")
	flags.String("origin", "", "Origin header value")
	flags.String("referer", "", "Referer header value")
	flags.Duration("timeout", 0, "overall request timeout (default 30s)")
	flags.Int("throttle-rps", 0, "requests per second per host, 0 disables throttling")
	flags.Int("throttle-burst", 0, "throttle burst size")
	flags.Bool("http2", true, "negotiate HTTP/2 over TLS")
	flags.String("log-level", "", "debug, info, warn or error (default info)")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return errors.New("exactly one url is required")
	}
	address := flags.Arg(0)

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := cfg.Logger(stderr)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	f, err := fetch.Build(cfg.Options(log)...)
	if err != nil {
		return fmt.Errorf("build fetcher: %w", err)
	}

	if *output != "" {
		if err := f.Download(ctx, address, cfg.Request(), *output, fetch.WithProgress(time.Second)); err != nil {
			return err
		}
		log.Info("saved", "url", address, "path", *output)
		return nil
	}

	resp, err := f.Stream(ctx, address, cfg.Request())
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Close(); err != nil {
			log.Error("failed to close response body", "error", err)
		}
	}()

	if _, err := io.Copy(stdout, resp.Body); err != nil {
		return fmt.Errorf("writing body: %w", err)
	}

	return nil
}

// describe prefixes classified fetch failures with their kind.
func describe(err error) string {
	var se *fetch.StatusError
	switch {
	case errors.As(err, &se):
		return fmt.Sprintf("[%s] %v", se.Kind, err)
	case fetch.IsTransport(err):
		return fmt.Sprintf("[transport] %v", err)
	case errors.Is(err, fetch.ErrUnsupportedEncoding):
		return fmt.Sprintf("[encoding] %v", err)
	default:
		return err.Error()
	}
}
