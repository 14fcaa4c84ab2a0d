// Package helper provides fixtures for the postgres engine's integration tests:
// unique identifiers, person documents and the insertion of entity versions into the test table.
package helper
