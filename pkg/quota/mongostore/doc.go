// Package mongostore implements quota.Store on MongoDB.
//
// Counters live in the usage_counters collection, one document per
// (tenant, resource, period). Increment is a single upserting
// findOneAndUpdate with an aggregation pipeline, so the rollover check and the
// addition happen in one atomic document update. Notification records live
// in quota_notifications, where a unique index grants every tier of a cycle
// exactly once.
//
// Call EnsureIndexes once at startup.
package mongostore
