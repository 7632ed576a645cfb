package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/access"
	"github.com/trezcool/kumbukumbu/core/org"
	"github.com/trezcool/kumbukumbu/core/user"
)

const contextMembershipKey = "membership"

// orgMiddleware lets the request through only when the context user is a member of the :org organization.
func orgMiddleware(guard access.Authorizer, users *user.Service, orgs *org.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, users)
			if err != nil {
				return err
			}
			p, err := orgs.Principal(ctx.Request().Context(), usr.ID)
			if err != nil {
				return errors.Wrap(err, "loading principal")
			}
			m, err := guard.Authorize(p, ctx.Param("org"))
			if err != nil {
				return err
			}
			ctx.Set(contextMembershipKey, m)
			return next(ctx)
		}
	}
}

func getContextMembership(ctx echo.Context) (org.Membership, error) {
	if m, ok := ctx.Get(contextMembershipKey).(org.Membership); ok {
		return m, nil
	}
	return org.Membership{}, core.ErrAccessDenied
}

// contextScope is the scope of the request: the :org organization, the :parent entity and the context user.
func contextScope(ctx echo.Context) (core.Scope, error) {
	m, err := getContextMembership(ctx)
	if err != nil {
		return core.Scope{}, err
	}
	return core.Scope{OrganizationID: m.OrganizationID, ParentID: ctx.Param("parent"), ActorID: m.UserID}, nil
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kumbukumbu",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kumbukumbu",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *httpMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)
		if err != nil {
			// let the error handler write the response so that its status is known
			ctx.Error(err)
		}
		route := ctx.Path()
		if route == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(ctx.Request().Method, route, strconv.Itoa(ctx.Response().Status)).Inc()
		m.duration.WithLabelValues(ctx.Request().Method, route).Observe(time.Since(start).Seconds())
		return nil
	}
}
