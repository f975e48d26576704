// Command chartdump fetches raw Yahoo Finance chart payloads for a set of
// tickers and streams them to one JSON file. It exists for debugging
// provider normalization: the saved payloads are what the yahoo provider
// parses.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"stockpulse/internal/aggregate"
	"stockpulse/internal/config"
	"stockpulse/internal/httpx"
)

type httpStatusErr struct {
	code int
	body string
}

func (e *httpStatusErr) Error() string { return fmt.Sprintf("http %d: %s", e.code, e.body) }

func main() {
	var (
		tickersFlag = flag.String("tickers", "", "comma-separated tickers (default: popular universe)")
		outPath     = flag.String("out", "chart_dump.json", "output JSON file path")
		rng         = flag.String("range", "30d", "chart range, e.g. 1d, 30d")
		concurrency = flag.Int("concurrency", 4, "number of parallel requests")
		timeoutSec  = flag.Int("timeout", 20, "HTTP timeout seconds")
		maxRetries  = flag.Int("retries", 3, "max retries on 429/5xx")
		rpm         = flag.Int("rpm", 0, "max requests per minute (0 = unlimited)")
	)
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	tickers := aggregate.PopularTickers
	if *tickersFlag != "" {
		tickers = nil
		for _, t := range strings.Split(*tickersFlag, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tickers = append(tickers, strings.ToUpper(t))
			}
		}
	}
	log.Printf("tickers: %d", len(tickers))

	hc := httpx.New(time.Duration(*timeoutSec) * time.Second)

	outFile, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("create out: %v", err)
	}
	defer outFile.Close()
	bw := bufio.NewWriterSize(outFile, 1<<20)
	defer bw.Flush()

	_, _ = bw.WriteString("{")
	first := true
	var writeMu sync.Mutex

	var tokenCh <-chan time.Time
	if *rpm > 0 {
		t := time.NewTicker(time.Minute / time.Duration(*rpm))
		defer t.Stop()
		tokenCh = t.C
	}

	fetch := func(ctx context.Context, ticker string) (json.RawMessage, error) {
		u := fmt.Sprintf("%s/%s?interval=1d&range=%s", cfg.Yahoo.Endpoint, ticker, *rng)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if tokenCh != nil {
			<-tokenCh
		}
		resp, err := hc.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
			return nil, &httpStatusErr{code: resp.StatusCode, body: string(b)}
		}
		return io.ReadAll(resp.Body)
	}

	fetchRetry := func(ctx context.Context, ticker string) (json.RawMessage, error) {
		attempt := 0
		for {
			raw, err := fetch(ctx, ticker)
			if err == nil {
				return raw, nil
			}
			if hs, ok := err.(*httpStatusErr); ok {
				if hs.code == 429 || (hs.code >= 500 && hs.code < 600) {
					if attempt < *maxRetries {
						time.Sleep(time.Duration(250*(1<<attempt)) * time.Millisecond)
						attempt++
						continue
					}
				}
			}
			return nil, err
		}
	}

	jobs := make(chan string, *concurrency*2)
	wg := sync.WaitGroup{}
	worker := func() {
		defer wg.Done()
		for ticker := range jobs {
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutSec)*time.Second)
			raw, err := fetchRetry(ctx, ticker)
			cancel()
			if err != nil {
				log.Printf("%s: %v", ticker, err)
				continue
			}
			key, _ := json.Marshal(ticker)
			writeMu.Lock()
			if !first {
				_, _ = bw.WriteString(",")
			}
			first = false
			_, _ = bw.Write(key)
			_, _ = bw.WriteString(":")
			_, _ = bw.Write(raw)
			writeMu.Unlock()
		}
	}

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go worker()
	}
	for _, t := range tickers {
		jobs <- t
	}
	close(jobs)
	wg.Wait()

	_, _ = bw.WriteString("}")
	if err := bw.Flush(); err != nil {
		log.Fatalf("flush: %v", err)
	}
	log.Printf("done: wrote %s", *outPath)
}
