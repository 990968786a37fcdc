//go:build !windows

package diag

// NewResolver returns the resolver for this platform. Only Windows hosts
// IIS worker processes, so elsewhere nothing is resolved.
func NewResolver() Resolver {
	return NopResolver{}
}
