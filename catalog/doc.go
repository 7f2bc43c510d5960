// Package catalog holds the session-scoped reference data of the flow:
// predefined (scripted) messages and agent instructions. Both catalogs are
// loaded once and are read-only afterwards.
package catalog
