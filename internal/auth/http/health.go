package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// probeTimeout bounds each readiness check so a hung dependency reports
// as an error instead of stalling the probe.
const probeTimeout = 2 * time.Second

var errNoSigningKeys = errors.New("no keys loaded")

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Returns 200 while the process serves HTTP. Dependencies are not checked.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get]
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, health("ok", startTime, version, nil))
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Checks the database, the signing keys and, when configured, the Redis refresh lease store.
//	@Description	Any failing check answers 503 with status "degraded".
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Router			/readyz [get]
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	keys *jwtx.KeySet,
	lockCheck func(context.Context) error,
) http.HandlerFunc {
	signer := func(context.Context) error {
		if !keys.IsReady() {
			return errNoSigningKeys
		}
		return nil
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		checks := &authsdk.HealthChecks{
			Database: probe(ctx, "database", st.Ping),
			Signer:   probe(ctx, "signer", signer),
		}
		if lockCheck != nil {
			checks.Lock = probe(ctx, "lock", lockCheck)
		}

		status, code := "ok", http.StatusOK
		for _, c := range []string{checks.Database, checks.Signer, checks.Lock} {
			if c != "" && c != "ok" {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		httpx.WriteJSON(w, code, health(status, startTime, version, checks))
	}
}

// probe runs one check and renders it as "ok" or "error: ...".
func probe(ctx context.Context, name string, check func(context.Context) error) string {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := check(ctx); err != nil {
		slogx.FromContext(ctx).Warn("readiness check failed", "check", name, "error", err)
		return "error: " + err.Error()
	}
	return "ok"
}

func health(status string, startTime time.Time, version string, checks *authsdk.HealthChecks) authsdk.HealthResponse {
	return authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(startTime).Round(time.Second).String(),
		Version: version,
		Checks:  checks,
	}
}
