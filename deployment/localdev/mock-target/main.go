package main

import (
	"flag"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// mock-target is a local stand-in for the monitored service. It answers with
// a configurable base latency plus jitter, and a /spike toggle that makes
// responses slow so anomaly detection can be exercised end to end.
func main() {
	var (
		addr    = flag.String("addr", ":8080", "listen address")
		baseMS  = flag.Int("base-ms", 100, "base response latency in milliseconds")
		spikeMS = flag.Int("spike-ms", 5000, "response latency while spiking")
	)
	flag.Parse()

	var spiking atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/spike", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next := !spiking.Load()
		if v := r.URL.Query().Get("on"); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "invalid on parameter", http.StatusBadRequest)
				return
			}
			next = parsed
		}
		spiking.Store(next)
		log.Printf("spike mode: %t", next)
		_, _ = w.Write([]byte(strconv.FormatBool(next)))
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		delay := time.Duration(*baseMS) * time.Millisecond
		if spiking.Load() {
			delay = time.Duration(*spikeMS) * time.Millisecond
		}
		// A little jitter keeps the latency window from degenerating.
		delay += time.Duration(rand.Intn(10)) * time.Millisecond
		time.Sleep(delay)
		_, _ = w.Write([]byte("ok"))
	})

	log.Printf("mock target listening on %s (base %dms, spike %dms)", *addr, *baseMS, *spikeMS)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal(err)
	}
}
