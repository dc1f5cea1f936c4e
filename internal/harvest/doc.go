// Package harvest defines the domain types, error kinds and collaborator
// interfaces shared by the queue, lookup, sink, worker and dispatcher packages.
//
// A run drains a list of city codes through a fixed pool of workers. Each
// worker looks the city up against the remote hotel API (with retries),
// then appends a ResultRecord to the results destination. The lookup itself
// also appends a CitySummary to the summary destination whenever the city
// has at least one hotel.
package harvest
