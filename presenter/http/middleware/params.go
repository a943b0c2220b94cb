package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/omni/bridge-node/presenter/http/render"
)

type ctxKey int

const (
	chainCtxKey ctxKey = iota
	blockRangeCtxKey
	limitCtxKey
)

const (
	DefaultLimit = 20
	MaxLimit     = 1000
)

var (
	ErrInvalidBlockRange = errors.New("invalid block range parameters")
	ErrInvalidLimit      = errors.New("invalid limit parameter")
)

type BlockRange struct {
	Start uint64
	End   uint64
}

func GetChainMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), chainCtxKey, chi.URLParam(r, "chain"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func Chain(ctx context.Context) string {
	chain, _ := ctx.Value(chainCtxKey).(string)
	return chain
}

func GetBlockRangeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		start, err := strconv.ParseUint(query.Get("start"), 10, 64)
		if err != nil {
			render.ErrorWithStatus(w, r, http.StatusBadRequest, fmt.Errorf("failed to parse start: %v: %w", err, ErrInvalidBlockRange))
			return
		}
		end, err := strconv.ParseUint(query.Get("end"), 10, 64)
		if err != nil {
			render.ErrorWithStatus(w, r, http.StatusBadRequest, fmt.Errorf("failed to parse end: %v: %w", err, ErrInvalidBlockRange))
			return
		}
		if start == 0 || start > end {
			render.ErrorWithStatus(w, r, http.StatusBadRequest, fmt.Errorf("start should be positive and not greater than end: %w", ErrInvalidBlockRange))
			return
		}

		ctx := context.WithValue(r.Context(), blockRangeCtxKey, BlockRange{Start: start, End: end})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetBlockRange(ctx context.Context) BlockRange {
	rng, _ := ctx.Value(blockRangeCtxKey).(BlockRange)
	return rng
}

func GetLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := uint64(DefaultLimit)
		if str := r.URL.Query().Get("limit"); str != "" {
			var err error
			limit, err = strconv.ParseUint(str, 10, 64)
			if err != nil || limit == 0 || limit > MaxLimit {
				render.ErrorWithStatus(w, r, http.StatusBadRequest, fmt.Errorf("limit should be in range 1-%d: %w", MaxLimit, ErrInvalidLimit))
				return
			}
		}

		ctx := context.WithValue(r.Context(), limitCtxKey, limit)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetLimit(ctx context.Context) uint64 {
	if limit, ok := ctx.Value(limitCtxKey).(uint64); ok {
		return limit
	}
	return DefaultLimit
}
