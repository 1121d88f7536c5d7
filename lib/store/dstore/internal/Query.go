package internal

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGet       QueryType = iota // Retrieve an entry by key.
	QueryTHGet                       // Retrieve a named field of an entry.
	QueryTHas                        // Check if a key exists.
	QueryTKeys                       // Enumerate keys by prefix.
	QueryTGetDBInfo                  // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTHGet:
		return "HGet"
	case QueryTHas:
		return "Has"
	case QueryTKeys:
		return "Keys"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or StaleRead
type Query struct {
	Type  QueryType // The type of Query to perform.
	Key   string    // The key (or prefix for QueryTKeys) of the Query (empty for some queries).
	Field string    // The field for QueryTHGet.
}

// QueryResult is the result of a QueryTGet or QueryTHGet operation.
// All other query results are primitive types or predefined structs (bool, []string, db.DatabaseInfo).
type QueryResult struct {
	Ok    bool
	Value []byte
}
