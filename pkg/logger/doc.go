// Package logger builds *slog.Logger instances for quotakit services and
// provides attribute helpers that keep field names consistent across packages.
//
// New applies functional options on top of production-safe defaults (JSON,
// info level, stdout). Context extractors attach values
// stored in a context.Context to every record:
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "quotad"),
//	    logger.WithContextExtractors(tenantFromContext),
//	)
//	log.InfoContext(ctx, "limit reached",
//	    logger.TenantID(tenantID),
//	    logger.Resource(quota.Tracking),
//	    logger.Period(quota.Daily),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
