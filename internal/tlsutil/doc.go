// Package tlsutil builds the hardened TLS settings shared by the backend,
// model and retrieval HTTP clients and the Redis connection.
package tlsutil
