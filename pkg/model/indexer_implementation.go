package model

// Routes take columns [0, routes) and the slack takes the column right after them
type indexerImplementation struct {
	routes int
}

func (indexer *indexerImplementation) RouteColumn(route int) int {
	return route
}

func (indexer *indexerImplementation) SlackColumn() int {
	return indexer.routes
}

func (indexer *indexerImplementation) Route(column int) (int, bool) {
	return column, column >= 0 && column < indexer.routes
}

func (indexer *indexerImplementation) Columns() int {
	return indexer.routes + 1
}
