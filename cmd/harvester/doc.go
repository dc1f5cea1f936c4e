// Package main hosts the hotel harvester entrypoint.
//
// A run loads the city list (a JSON array of objects whose "code" field is
// the city code), queues every valid code, declares the queue closed and lets
// a fixed pool of workers drain it. Each worker looks the city up against the
// remote hotel search API, retrying transport failures with linear backoff,
// and appends one line per city to the results file. Cities with hotels also
// get a summary line. Records can be mirrored to Pub/Sub and Postgres, and
// the results can be merged with the source and exported to a local
// directory or a GCS bucket once the pool has drained.
//
// Configuration comes from an optional YAML file (-config) and HARVESTER_*
// environment variables, e.g. HARVESTER_LOOKUP_URL, HARVESTER_POOL_SIZE,
// HARVESTER_METRICS_PORT. SIGINT/SIGTERM stop the pool between items.
//
// Run locally: go run ./cmd/harvester -config config.yaml
package main
