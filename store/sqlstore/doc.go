// Package sqlstore implements api.Client on a local SQL database through
// gorm. It backs the companion when no remote service is configured and
// supports sqlite (pure Go), postgres and mysql via internal/database.
//
// Catalogs are seeded from a YAML file with LoadSeedFile and Seed.
package sqlstore
