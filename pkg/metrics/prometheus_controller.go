package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iota-uz/functree/pkg/application"
)

const DefaultPath = "/debug/prometheus"

type PrometheusController struct {
	path    string
	handler http.Handler
}

// NewPrometheusController serves the default registry, where the functree_*
// collectors are registered through promauto.
func NewPrometheusController(path string) application.Controller {
	return NewPrometheusControllerFor(path, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewPrometheusControllerFor serves gatherer and counts scrapes on reg.
func NewPrometheusControllerFor(path string, reg prometheus.Registerer, gatherer prometheus.Gatherer) application.Controller {
	if path == "" {
		path = DefaultPath
	}
	handler := promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	}))
	return &PrometheusController{path: path, handler: handler}
}

func (c *PrometheusController) Key() string {
	return c.path
}

func (c *PrometheusController) Register(r *mux.Router) {
	r.Handle(c.path, c.handler).Methods(http.MethodGet)
}
