package internal

import (
	"encoding/json"
	"fmt"
	"net/http"

	"chat-relay/observability"
)

// StartDebugServer exposes the relay counters and process self-metrics as
// JSON on /stats. It listens on all interfaces so an operator can reach it
// over the network, and it never blocks the caller.
func StartDebugServer(monitor *observability.Monitor, port int) {
	mux := http.NewServeMux()

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(monitor.Snapshot())
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}
