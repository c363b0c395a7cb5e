// Package sensor connects the physical pulse sensor to the event store.
//
// The sensor hardware is external; the Source interface abstracts the
// transport carrying its events (the provided implementation subscribes
// over MQTT). The Ingestor is the long-lived ingestion loop: it receives
// timestamps from the Source and records them through the pulse store,
// dropping (with an explicit log and counter) only when bounded write
// retries are exhausted, and stopping the process on fatal store errors.
package sensor
