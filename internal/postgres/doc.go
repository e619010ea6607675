// Package postgres provides PostgreSQL implementations of the store
// interfaces: quota counters, the durable outbox queue, the send history
// log, and circuit breaker events. All implementations accept a store.DBTX
// so they work inside or outside a transaction.
package postgres
