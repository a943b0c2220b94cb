package middleware

import (
	"fmt"
	"net/http"

	"github.com/omni/bridge-node/presenter/http/render"
)

func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}
				render.Error(w, r, fmt.Errorf("recovered error from the http handler: %w", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
