// Package quota meters consumption of rate-limited resources per tenant and
// enforces plan-derived daily and monthly allowances.
//
// The package is built from small, replaceable parts:
//
//   - Catalog and PlanResolver: the closed, versioned table of plans and their limits
//   - TenantResolver: which plan a tenant is on and whether billing is active
//   - CounterStore: atomic per-tenant, per-resource, per-period counters
//   - Evaluate: the pure percentage and tier calculation
//   - Notifier: at-most-once threshold notifications per tier per reset cycle
//   - Service: the enforcement gate (Authorize, RecordConsumption, GetUsageSnapshot)
//   - Resetter: the background process that rolls counters over at UTC boundaries
//
// Basic usage:
//
//	catalog, err := quota.LoadCatalogFile("plans.yaml")
//	if err != nil {
//	    return err
//	}
//
//	store := quota.NewMemoryStore()
//	dispatcher := quota.NewAsyncDispatcher(quota.NewLogPublisher(logger))
//	defer dispatcher.Close(ctx)
//
//	svc := quota.NewService(catalog, tenants, store,
//	    quota.WithNotifier(quota.NewNotifier(store, dispatcher)),
//	    quota.WithLogger(logger),
//	)
//
//	decision, err := svc.Authorize(ctx, tenantID, quota.Tracking)
//	if err != nil || !decision.Allowed {
//	    // feature paused until decision.ResetAt
//	}
//
//	// perform the metered call, then
//	_ = svc.RecordConsumption(ctx, tenantID, quota.Tracking)
//
// Service.Run combines the two steps: it authorizes, calls fn and records
// one unit only when fn succeeds.
//
// # Partial writes
//
// A consumption touches one counter per period. When some periods were
// written and others failed, RecordConsumptionN returns a
// *PartialWriteError. Retrying the whole call would count the written
// periods twice, so retry only the failed ones:
//
//	err := svc.RecordConsumptionN(ctx, tenantID, quota.AIGeneration, 3)
//	var partial *quota.PartialWriteError
//	if errors.As(err, &partial) {
//	    err = svc.RecordConsumptionIn(ctx, tenantID, quota.AIGeneration, 3, partial.Failed...)
//	}
//
// With WithSpool, increments that keep failing are queued and redelivered in
// the background instead, and count as written.
//
// # Resets
//
// Counters roll over lazily on the next Increment after a boundary. The
// Resetter also sweeps stale counters so snapshots read zero without
// traffic, and drops notification records of finished cycles:
//
//	resetter := quota.NewResetter(store, store, quota.WithCheckInterval(time.Minute))
//	g.Go(resetter.Run(ctx))
//
// Storage backends for PostgreSQL, Redis and MongoDB live in the pgstore,
// redisstore and mongostore subpackages. All of them pass the conformance
// suite in quotatest.
package quota
