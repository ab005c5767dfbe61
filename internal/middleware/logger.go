package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/sirupsen/logrus"
	"github.com/tomasen/realip"
)

var log = logrus.WithField("package", "middleware")

// Logger logs every request with its client ip, status and duration.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		l := log.WithFields(logrus.Fields{
			"method":     r.Method,
			"uri":        r.RequestURI,
			"ip":         realip.FromRequest(r),
			"request_id": middleware.GetReqID(r.Context()),
			"status":     ww.Status(),
			"duration":   time.Since(start),
		})

		if ww.Status() >= http.StatusInternalServerError {
			l.Error("request failed")
			return
		}

		l.Debug("request served")
	})
}
