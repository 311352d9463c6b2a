// Package queryir is the abstract filter language over a session's tact log.
//
// A Query names one session epoch and an optional Predicate. Predicates
// inspect the facts a tact signified and its position in the log; they
// never look at working memory. Backends (see querysql) translate the IR
// into their own query language.
//
// SEALED INTERFACES:
//
// Predicate is sealed with a marker method. Only types in this package
// implement it, so backends can switch exhaustively:
//
//	switch p := pred.(type) {
//	case Signified:
//	case Published:
//	case TactRange:
//	case And:
//	}
//
// FILTER SYNTAX:
//
// ParseFilter reads the comma-separated form used on the command line:
//
//	R1.condition=false          signified value equals a JSON literal
//	R1.condition=null           signified value is unknown
//	R2.condition.left?          path was published with any value
//	tact=2..4                   tact number within an inclusive range
//	tact=3                      a single tact
//
// Values that are not valid JSON are taken as bare strings. Terms are
// conjoined; there is no OR, and values cannot contain commas.
package queryir
