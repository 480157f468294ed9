package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewMux(opt Options) *http.ServeMux {
	opt = opt.withDefaults()
	h := &handlers{opt: opt, log: opt.Logger.Named("http")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET "+opt.route("/provider/{name}"), h.handleProvider)
	mux.HandleFunc("GET "+opt.route("/profile/{name}"), h.handleProfile)
	mux.HandleFunc("GET "+opt.route("/update"), h.handleUpdate)
	mux.HandleFunc("GET "+opt.route("/status"), h.handleStatus)
	return mux
}
