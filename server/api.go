package server

import (
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

// Maximum size of a POSTed detection batch
const maxBatchBytes = 1024 * 1024

func (s *Server) setupHttpRoutes() error {
	logEveryRequest := false
	router := httprouter.New()

	handle := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			if logEveryRequest {
				s.Log.Infof("HTTP %v %v", method, r.URL.Path)
			}
			handle(w, r, params)
		})
	}

	// We create a unique rate limiter for each endpoint, so we don't need httprate.KeyByEndpoint
	ratelimited := func(method, route string, handle httprouter.Handle) {
		limited := httprate.Limit(s.Config.Server.RateLimit, s.Config.Server.RateWindow.D(), httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)
	handle("GET", "/api/status", s.httpStatus)

	ratelimited("POST", "/api/detections", s.httpPostDetections)
	handle("GET", "/api/detections", s.httpGetDetections)
	handle("DELETE", "/api/detections", s.httpClearDetections)
	handle("GET", "/api/stats", s.httpStats)

	// The routes of the first detection API, which ESP32 clients still post to
	ratelimited("POST", "/detections", s.httpPostDetections)
	handle("GET", "/detections", s.httpGetDetections)
	handle("DELETE", "/detections", s.httpClearDetections)
	handle("GET", "/stats", s.httpStats)

	handle("GET", "/api/camera/:cameraID/snapshot", s.httpCameraSnapshot)
	handle("GET", "/api/ws/detections", s.httpDetectionsWebSocket)

	router.Handler("GET", "/metrics", s.Metrics.Handler())

	s.httpRouter = router
	return nil
}
