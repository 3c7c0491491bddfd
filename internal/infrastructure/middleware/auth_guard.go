package middleware

import (
	"encoding/json"
	"net/http"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/infrastructure/auth"
	"archie-core-integrations-layer/internal/infrastructure/metrics"

	"github.com/rs/zerolog"
)

// AuthGuard runs the API key check and then the session check on every
// request, honoring the route's policy. The first failing check rejects the
// request and the later one never runs.
type AuthGuard struct {
	apiKey  auth.Verifier
	session auth.Verifier
	logger  zerolog.Logger
}

// NewAuthGuard creates a new auth guard
func NewAuthGuard(apiKey, session auth.Verifier, logger zerolog.Logger) *AuthGuard {
	return &AuthGuard{
		apiKey:  apiKey,
		session: session,
		logger:  logger,
	}
}

// Check runs the checks required by policy. It returns the results of every
// check that ran or was skipped, the session identity (if any), and the first
// authentication error.
func (g *AuthGuard) Check(r *http.Request, policy RoutePolicy) ([]domain.CredentialCheckResult, *domain.Identity, error) {
	results := make([]domain.CredentialCheckResult, 0, 2)
	var identity *domain.Identity

	steps := []struct {
		verifier auth.Verifier
		skip     bool
	}{
		{g.apiKey, policy.SkipAPIKeyAuth},
		{g.session, policy.SkipSessionAuth},
	}
	for _, step := range steps {
		if step.skip {
			results = append(results, domain.CredentialCheckResult{
				Verifier: step.verifier.Kind(),
				Outcome:  domain.OutcomeSkipped,
			})
			continue
		}

		id, err := step.verifier.Verify(r)
		if err != nil {
			results = append(results, domain.CredentialCheckResult{
				Verifier: step.verifier.Kind(),
				Outcome:  domain.OutcomeInvalid,
			})
			metrics.RecordAuthCheck(string(step.verifier.Kind()), string(domain.OutcomeInvalid))
			return results, nil, err
		}

		results = append(results, domain.CredentialCheckResult{
			Verifier: step.verifier.Kind(),
			Outcome:  domain.OutcomeValid,
			Identity: id,
		})
		metrics.RecordAuthCheck(string(step.verifier.Kind()), string(domain.OutcomeValid))
		if id != nil {
			identity = id
		}
	}
	return results, identity, nil
}

// Middleware returns the guard bound to one route's policy
func (g *AuthGuard) Middleware(route string, policy RoutePolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			results, identity, err := g.Check(r, policy)
			if err != nil {
				g.logger.Warn().
					Err(err).
					Str("route", route).
					Str("method", r.Method).
					Msg("Rejected unauthenticated request")
				writeAuthError(w, err)
				return
			}

			if policy.Unauthenticated() {
				metrics.UnauthenticatedRequestsTotal.WithLabelValues(route).Inc()
				g.logger.Debug().
					Str("route", route).
					Str("method", r.Method).
					Msg("Serving request without credential checks")
			}

			ctx := domain.WithCredentialChecks(r.Context(), results)
			if identity != nil {
				ctx = domain.WithIdentity(ctx, identity)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="integrations"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"kind":  string(domain.KindAuth),
	})
}
