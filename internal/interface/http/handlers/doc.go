// Package handlers contains HTTP handler interfaces, health checks,
// and middleware shared by the HTTP server.
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health
// checks that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("database", handlers.NewDatabaseCheck(db))
//	checker.AddCheck("cache", handlers.NewCacheCheck(cache))
//	checker.AddCheck("mastery_engine", handlers.NewUpstreamCheck("mastery engine", engineClient))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("health check failed: %s", status.Message)
//	}
//
// # Authentication
//
// TokenAuth verifies bearer tokens against the directory service and
// injects the resolved identity into the request context. RequireStaff
// gates teacher-facing routes behind the staff role:
//
//	auth := handlers.NewTokenAuth(directoryClient)
//	protected := handlers.ChainHandler(
//	    myHandler,
//	    auth.Middleware,
//	    handlers.RequireStaff,
//	)
//
// # Middleware
//
// Apply security middleware early in the chain, authentication before
// authorization, and request size limits on every ingestion route. The
// websocket upgrade route must not run behind TimeoutMiddleware.
package handlers
