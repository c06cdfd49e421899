// Package stdx holds tiny generic helpers that have no better home.
package stdx

// Must0 panics if the provided error is not nil. It is intended for
// initialization paths where an error means the program cannot run.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v when err is nil and panics otherwise.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
