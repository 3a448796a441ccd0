// Command statusload opens many concurrent subscriptions to the bot status
// stream and reports connection and event counts.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	events      atomic.Int64
	badPayloads atomic.Int64
}

func main() {
	var (
		targetURL   = pflag.String("url", "http://localhost:8080/status/stream", "status stream URL")
		connections = pflag.Int("conns", 100, "number of concurrent subscriptions")
		duration    = pflag.Duration("dur", 60*time.Second, "test duration (0 runs until interrupted)")
		rampUp      = pflag.Duration("ramp", time.Second, "spread connection starts across this window")
	)
	pflag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if *connections <= 0 {
		logger.Fatal("invalid connection count", zap.Int("conns", *connections))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     *connections + 10,
			MaxIdleConnsPerHost: *connections + 10,
			DisableCompression:  true,
			DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		},
	}

	logger.Info("starting status load",
		zap.String("url", *targetURL),
		zap.Int("conns", *connections),
		zap.Duration("duration", *duration))

	var (
		c     counters
		wg    sync.WaitGroup
		start = time.Now()
		step  = *rampUp / time.Duration(*connections)
	)

	go report(ctx, logger, &c, start)

	for i := 0; i < *connections && ctx.Err() == nil; i++ {
		if i > 0 && step > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(step):
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, *targetURL, &c)
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d events=%d bad_payloads=%d elapsed=%s events/s=%.2f\n",
		c.connected.Load(), c.connectErrs.Load(), c.streamErrs.Load(), c.events.Load(), c.badPayloads.Load(),
		elapsed.Truncate(time.Millisecond), float64(c.events.Load())/elapsed.Seconds())
}

func subscribe(ctx context.Context, client *http.Client, url string, c *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.connectErrs.Add(1)
		return
	}
	c.connected.Add(1)

	_, err = consume(resp.Body, func(ok bool) {
		if ok {
			c.events.Add(1)
		} else {
			c.badPayloads.Add(1)
		}
	})
	if err != nil && ctx.Err() == nil {
		c.streamErrs.Add(1)
	}
}

func report(ctx context.Context, l *zap.Logger, c *counters, start time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Info("status",
				zap.Int64("connected", c.connected.Load()),
				zap.Int64("connect_errs", c.connectErrs.Load()),
				zap.Int64("stream_errs", c.streamErrs.Load()),
				zap.Int64("events", c.events.Load()),
				zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
		}
	}
}
