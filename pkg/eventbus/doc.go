// Package eventbus publishes quota threshold events to message brokers.
//
// RabbitMQPublisher sends persistent JSON messages to a durable queue and
// KafkaPublisher writes JSON messages keyed by tenant id, so every event of a
// tenant lands in the same partition. Both implement quota.Publisher and are
// meant to sit behind a quota.AsyncDispatcher, which owns retries.
package eventbus
