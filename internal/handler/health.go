package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/attaboy/payouts/internal/infra"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type healthBody struct {
	Status   string           `json:"status"`
	Database string           `json:"database"`
	Pool     infra.PoolStatus `json:"pool"`
	Cache    string           `json:"cache,omitempty"`
}

// HealthHandler reports database health and, when configured, Redis health.
// Redis is advisory: the view cache degrades to misses, so a failed ping
// is reported but does not make the service unhealthy.
func HealthHandler(pool *pgxpool.Pool, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := healthBody{Status: "healthy", Database: "ok"}

		if rdb != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			body.Cache = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				body.Cache = "degraded"
			}
		}

		status, err := infra.HealthCheck(r.Context(), pool)
		body.Pool = status
		if err != nil {
			body.Status = "unhealthy"
			body.Database = err.Error()
			RespondJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		RespondJSON(w, http.StatusOK, body)
	}
}
