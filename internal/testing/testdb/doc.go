// Package testdb provides SurrealDB test databases for repository and
// end-to-end tests.
//
// When TEST_DB_HOST is set, tests connect to that server. Otherwise a single
// SurrealDB container is started with testcontainers for the test binary;
// without Docker the calling test is skipped. Short mode skips as well.
//
//	func TestSomething(t *testing.T) {
//	    tdb := testdb.New(t) // unique namespace, migrations applied
//	    repo := repository.NewUserRepository(tdb.DB)
//	    ...
//	}
//
// Each TestDB lives in its own namespace, which is removed on cleanup.
package testdb
