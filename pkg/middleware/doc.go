// Package middleware provides HTTP middleware for authentication, request
// logging, and rate limiting.
//
// # Authentication
//
// Authenticator resolves "Authorization: Bearer <token>" headers through the
// session manager and stores the principal in the request context:
//
//	authn := middleware.NewAuthenticator(sessions)
//	protected.Use(authn.Require)   // 401 without a valid token
//	public.Use(authn.Optional)     // anonymous when the token is missing or invalid
//
// Handlers read the caller with auth.PrincipalFromContext.
//
// # Rate Limiting
//
// Credential endpoints are throttled per client IP. RateLimiter keeps token
// buckets in process; DistributedRateLimiter counts fixed windows in Redis
// so every replica shares the budget:
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, middleware.LoginRateLimitConfig(20), "")
//	router.Handle("/auth/login", middleware.RateLimit(limiter, "login")(loginHandler))
//
// Rejected requests receive 429 with a Retry-After header. When the limiter
// itself fails the request is allowed and a warning is logged.
//
// # Request Logging
//
// RequestLogger puts the service logger and a request field set into the
// request context. The authenticator records username and role there, and
// the API router records the plugin id, so each completed request is logged
// with those fields next to its status and latency.
package middleware
