package db

// timeLayout is the text format of every stored timestamp. Values are UTC so that
// lexical comparison matches SQLite's datetime().
const timeLayout = "2006-01-02 15:04:05"

// SQL query fragments used across multiple functions
const (
	// sqlTimeFilterClause is used to filter queries by a datetime window
	sqlTimeFilterClause = "AND timestamp >= datetime('now', ?)"
	// sqlSlotFilterClause restricts a query to one slot when the argument is positive
	sqlSlotFilterClause = "AND (? <= 0 OR slot = ?)"
)
