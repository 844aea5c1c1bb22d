package model

// indexer interface is designed to give every decision variable of an instance a contiguous column and vice versa
type indexer interface {
	// Returns the column of the selection variable of a route
	RouteColumn(route int) int
	// Returns the column of the duration slack variable
	SlackColumn() int
	// Returns the route selected by column, ok is false for the slack column
	Route(column int) (route int, ok bool)
	// Returns the total number of columns
	Columns() int
}

func newIndexer(routes int) indexer {
	return &indexerImplementation{routes: routes}
}
