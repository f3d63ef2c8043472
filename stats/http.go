package stats

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/b2gm/lodmap/log"
)

// StartHttpPProf serves the pprof handlers and, if s is not nil, the run
// metrics on /metrics.
func StartHttpPProf(bind string, s *Statistics, l log.Logger) {
	if s != nil {
		http.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	go func() {
		l.Println("[error] http:", http.ListenAndServe(bind, nil))
	}()
}
