// Package domain contains core domain types for the Veltrix assistant.
package domain

// Role is the caller's role as asserted by the upstream auth gateway.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
)

// ParseRole maps a raw header value onto a known role. Unknown values are
// treated as customers.
func ParseRole(raw string) Role {
	if Role(raw) == RoleVendor {
		return RoleVendor
	}
	return RoleCustomer
}

// IsVendor returns true if the role grants access to vendor statistics.
func (r Role) IsVendor() bool {
	return r == RoleVendor
}
