// Package mongo manages the MongoDB client used by the document-backed
// counter store.
//
// Config is read from MONGODB_* environment variables. New retries the
// initial connection and ping, and Healthcheck wraps a ping for the
// /healthz endpoint.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := mongostore.New(db)
//	if err := store.EnsureIndexes(ctx); err != nil {
//		return err
//	}
package mongo
