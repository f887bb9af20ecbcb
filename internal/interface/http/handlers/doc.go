// Package handlers contains reusable HTTP building blocks for the API server.
//
// This package provides:
//   - Health check interfaces and implementations
//   - User authentication from the gateway header
//   - Rate limiting and other middleware
//
// # Health Checks
//
// CompositeHealthChecker runs named checks in parallel. Required checks gate
// readiness; optional ones only mark the service degraded:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("database", handlers.NewDatabaseCheck(conn))
//	checker.AddOptionalCheck("cache", handlers.NewCacheCheck(cache))
//	checker.AddCheck("migrations", handlers.NewMigrationCheck(migrator.Pending))
//
//	status := checker.Check(ctx)
//
// # Authentication
//
// Authentication happens at the gateway, which forwards the user id in the
// X-User-ID header. UserFromRequest validates it:
//
//	uid, err := handlers.UserFromRequest(r)
//	if err != nil {
//	    // 401 NOT_AUTHORIZED
//	}
//
// # Middleware
//
//	limiter := handlers.NewRateLimiter(120, time.Minute)
//	h := handlers.Chain(
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(64<<10),
//	)(mux)
package handlers
