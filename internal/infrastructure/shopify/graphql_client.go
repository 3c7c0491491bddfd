package shopify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/infrastructure/metrics"
	"archie-core-integrations-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// RetryConfig holds the pacing and retry tunables of the GraphQL client
type RetryConfig struct {
	// SafetyMargin is the minimum projected budget required before a call is issued
	SafetyMargin float64
	// MaxWait bounds every pacing delay and the throttle backoff
	MaxWait time.Duration
	// TransportRetryBackoff is the pause before the single transport retry
	TransportRetryBackoff time.Duration
	// QueryCost and MutationCost estimate the cost of a call before it is issued
	QueryCost    float64
	MutationCost float64
}

// DefaultRetryConfig returns the default tunables
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		SafetyMargin:          50,
		MaxWait:               20 * time.Second,
		TransportRetryBackoff: time.Second,
		QueryCost:             1,
		MutationCost:          10,
	}
}

// GraphQLClient issues Admin API GraphQL calls while keeping within the
// shop's token bucket. Throttle state is tracked per credential.
type GraphQLClient struct {
	transport ports.GraphQLTransport
	throttle  *ThrottleTracker
	config    RetryConfig
	clock     Clock
	logger    zerolog.Logger
}

// ClientOption customizes a GraphQLClient
type ClientOption func(*GraphQLClient)

// WithClock replaces the wall clock
func WithClock(clock Clock) ClientOption {
	return func(c *GraphQLClient) {
		c.clock = clock
	}
}

// WithThrottleTracker shares a tracker between clients
func WithThrottleTracker(tracker *ThrottleTracker) ClientOption {
	return func(c *GraphQLClient) {
		c.throttle = tracker
	}
}

// NewGraphQLClient creates a rate-limited GraphQL client
func NewGraphQLClient(transport ports.GraphQLTransport, config RetryConfig, logger zerolog.Logger, opts ...ClientOption) *GraphQLClient {
	c := &GraphQLClient{
		transport: transport,
		throttle:  NewThrottleTracker(),
		config:    config,
		clock:     realClock{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute issues one GraphQL operation. It paces the call against the
// projected budget, retries once after a throttling rejection and once after
// a transport failure, and returns the parsed response. Only two throttling
// rejections in a row give up.
func (c *GraphQLClient) Execute(ctx context.Context, credential ports.PlatformCredential, request ports.GraphQLRequest) (*ports.GraphQLResponse, error) {
	operation := operationType(request.Query)
	estimated := c.config.QueryCost
	if operation == string(ast.Mutation) {
		estimated = c.config.MutationCost
	}

	log := c.logger.With().
		Str("tenantId", credential.TenantID).
		Str("shop", credential.Shop).
		Str("operation", operation).
		Logger()

	throttled := false
	transportRetried := false
	for {
		if err := c.pace(ctx, credential, estimated, log); err != nil {
			return nil, err
		}

		start := c.clock.Now()
		resp, err := c.transport.Do(ctx, credential, request)
		elapsed := c.clock.Now().Sub(start).Seconds()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			metrics.RecordGraphQLRequest(operation, "transport_error", elapsed)
			terr := &domain.TransportError{Err: err}
			if transportRetried {
				return nil, terr
			}
			transportRetried = true
			throttled = false
			log.Warn().Err(err).Dur("backoff", c.config.TransportRetryBackoff).Msg("GraphQL transport failed, retrying once")
			if err := c.clock.Sleep(ctx, c.config.TransportRetryBackoff); err != nil {
				return nil, err
			}
			continue
		}

		if resp.Cost != nil {
			c.throttle.Observe(credential.Key(), resp.Cost.ThrottleStatus, c.clock.Now())
			metrics.ThrottleAvailable.WithLabelValues(string(credential.Platform)).Set(resp.Cost.ThrottleStatus.CurrentlyAvailable)
		}

		switch {
		case isThrottled(resp):
			metrics.RecordGraphQLRequest(operation, "throttled", elapsed)
			metrics.RecordRateLimitHit(string(credential.Platform), "server")
			wait := c.backoffFor(resp, estimated)
			if throttled {
				log.Warn().Dur("retryAfter", wait).Msg("GraphQL call throttled twice in a row, giving up")
				return nil, &domain.RateLimitError{RetryAfter: wait}
			}
			throttled = true
			if wait > c.config.MaxWait {
				return nil, &domain.RateLimitError{Timeout: true, RetryAfter: wait}
			}
			log.Info().Dur("backoff", wait).Msg("GraphQL call throttled, backing off")
			if err := c.clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			metrics.RecordGraphQLRequest(operation, "unauthorized", elapsed)
			return nil, fmt.Errorf("%w: status %d", domain.ErrPlatformUnauthorized, resp.StatusCode)

		case resp.StatusCode >= http.StatusInternalServerError:
			metrics.RecordGraphQLRequest(operation, "server_error", elapsed)
			terr := &domain.TransportError{StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
			if transportRetried {
				return nil, terr
			}
			transportRetried = true
			throttled = false
			log.Warn().Int("status", resp.StatusCode).Dur("backoff", c.config.TransportRetryBackoff).Msg("GraphQL server error, retrying once")
			if err := c.clock.Sleep(ctx, c.config.TransportRetryBackoff); err != nil {
				return nil, err
			}
			continue

		case resp.StatusCode >= http.StatusBadRequest:
			metrics.RecordGraphQLRequest(operation, "client_error", elapsed)
			return nil, &domain.TransportError{StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}

		case len(resp.Errors) > 0:
			metrics.RecordGraphQLRequest(operation, "graphql_error", elapsed)
			return nil, &domain.TransportError{StatusCode: resp.StatusCode, Err: &GraphQLErrors{Errors: resp.Errors}}
		}

		metrics.RecordGraphQLRequest(operation, "ok", elapsed)
		return resp, nil
	}
}

// pace blocks until the projected budget covers the safety margin
func (c *GraphQLClient) pace(ctx context.Context, credential ports.PlatformCredential, estimated float64, log zerolog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	required := math.Max(c.config.SafetyMargin, estimated)
	deadline := c.clock.Now().Add(c.config.MaxWait)
	for {
		now := c.clock.Now()
		wait := c.throttle.Reserve(credential.Key(), required, estimated, now)
		if wait <= 0 {
			return nil
		}
		if now.Add(wait).After(deadline) {
			metrics.RecordRateLimitHit(string(credential.Platform), "timeout")
			return &domain.RateLimitError{Timeout: true, RetryAfter: wait}
		}

		log.Debug().Dur("wait", wait).Float64("required", required).Msg("Pacing GraphQL call")
		metrics.RecordRateLimitWait(string(credential.Platform), wait.Seconds())
		if err := c.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// backoffFor computes the wait after a throttling rejection. The reported
// budget is used when present, then Retry-After, then the transport backoff.
func (c *GraphQLClient) backoffFor(resp *ports.GraphQLResponse, estimated float64) time.Duration {
	if resp.Cost != nil && resp.Cost.ThrottleStatus.RestoreRate > 0 {
		cost := estimated
		if resp.Cost.RequestedQueryCost > 0 {
			cost = resp.Cost.RequestedQueryCost
		}
		now := c.clock.Now()
		wait, ok := domain.NewThrottleState(resp.Cost.ThrottleStatus, now).WaitFor(cost, now)
		if ok && wait > 0 {
			return wait
		}
	}
	if resp.Header != nil {
		if seconds, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && seconds > 0 {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	return c.config.TransportRetryBackoff
}

func isThrottled(resp *ports.GraphQLResponse) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	for _, e := range resp.Errors {
		if e.Code() == "THROTTLED" {
			return true
		}
	}
	return false
}

// operationType returns the type of the first operation in query, or "query"
// when the document cannot be parsed
func operationType(query string) string {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil || doc == nil || len(doc.Operations) == 0 {
		return string(ast.Query)
	}
	return string(doc.Operations[0].Operation)
}

// GraphQLErrors is a non-throttling errors array returned by the API
type GraphQLErrors struct {
	Errors []ports.GraphQLError
}

func (e *GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		msgs = append(msgs, ge.Message)
	}
	return "graphql errors: " + strings.Join(msgs, "; ")
}
