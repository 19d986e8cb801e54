// Package types holds the value types shared by the repository, service and
// HTTP layers: rows, error kinds and paging requests.
package types
