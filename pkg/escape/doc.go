// Package escape sanitizes untrusted strings before they are embedded into
// an LDAP distinguished name (RFC 4514) or an LDAP search filter (RFC 4515).
//
// All functions are pure and total: they never fail, never allocate shared
// state and may be called concurrently. They are not idempotent; escaping an
// already escaped string escapes the backslashes introduced by the first
// pass.
//
// FilterValues locates assertion values with a heuristic: a value is the
// run of characters after an '=' up to the next '(' or ')'. A parenthesis
// inside a value therefore ends the value and is left as filter syntax.
// Callers that build filters from a template should escape each value with
// FilterValue before substituting it instead.
package escape
