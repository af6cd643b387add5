// SPDX-License-Identifier: MPL-2.0

// Package statusapi serves a read-only JSON snapshot of a running host's
// module registry over HTTP: loaded modules, their dependency edges, and
// pending reload/unload queues. It is local introspection only, exposed
// for operators and for the CLI's "modules list" command to query a
// running daemon; it does not implement any form of remote control.
package statusapi

import (
	"encoding/json"
	"net/http"

	"github.com/modhost/modhost/internal/hostlog"
	"github.com/modhost/modhost/internal/modhost"
)

// NewHandler returns an http.Handler serving GET /status as a JSON
// encoding of host.Status(). Any other method or path is 404.
func NewHandler(host *modhost.Host, log *hostlog.Logger) http.Handler {
	if log == nil {
		log = hostlog.NewNop()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(host.Status()); err != nil {
			log.Errorf("statusapi: encode status: %v", err)
		}
	})
	return mux
}
