package render

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/omni/bridge-node/logging"
)

func JSON(w http.ResponseWriter, r *http.Request, status int, res interface{}) {
	buf, err := marshal(r, res)
	if err != nil {
		Error(w, r, fmt.Errorf("failed to marshal JSON result: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(buf); err != nil {
		logging.LoggerFromContext(r.Context()).WithError(err).Warn("can't write http response")
	}
}

func marshal(r *http.Request, res interface{}) ([]byte, error) {
	if pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty")); pretty {
		buf, err := json.MarshalIndent(res, "", "  ")
		return append(buf, '\n'), err
	}
	buf, err := json.Marshal(res)
	return append(buf, '\n'), err
}

func Error(w http.ResponseWriter, r *http.Request, err error) {
	ErrorWithStatus(w, r, http.StatusInternalServerError, err)
}

func ErrorWithStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	logger := logging.LoggerFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("request handling failed")
	} else {
		logger.WithError(err).Debug("bad request")
	}
	http.Error(w, err.Error(), status)
}
