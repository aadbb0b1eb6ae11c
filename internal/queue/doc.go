// Package queue carries transfer requests from the transport layer to workers.
//
// A [Job] is published through a [Publisher] and received from a [Consumer].
// [AMQPBroker] uses a durable RabbitMQ queue with persistent JSON messages and
// manual acks; [LocalBroker] is an in-process channel used when no broker is
// configured and in tests.
//
// [Dispatcher] is what the CLI and HTTP server call: it validates a request,
// claims the session for a new handle in the [progress.Store] so a session runs
// one job at a time, and publishes the job. Each handle's final status is
// recorded when its job ends, so an old handle never reports on a newer job. [Worker] consumes jobs with a fixed pool of goroutines and
// runs each one through an engine built by an [EngineFactory].
package queue
