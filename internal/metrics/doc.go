// Copyright (c) Companion Authors.
// Licensed under the MIT License.

/*
Package metrics exposes Prometheus metrics for the companion runtime.

# Overview

Collector registers every metric on a caller-provided Registerer under one
namespace. Its methods are nil-safe so components can take an optional
*Collector.

# Metrics

  - turns_total{kind,status} and turn_duration_seconds{kind}
  - collaborator_calls_total{operation,status} and
    collaborator_call_duration_seconds{operation}
  - profile_regenerations_total{status}
  - catalog_degraded_buttons
  - cache_hits_total{catalog} and cache_misses_total{catalog}
  - http_requests_total{method,path,status},
    http_request_duration_seconds{method,path} and bridge_connections
  - db_query_duration_seconds{operation}

Status labels are "ok" or the lowercased error code of the failure.
*/
package metrics
