package domain

// TenantID is the canonical internal identifier for a tenant. All textual
// variants of a tenant's domain resolve to the same TenantID.
type TenantID string

// TenantRecord is a tenant row as stored in the datastore.
type TenantRecord struct {
	ID   TenantID
	Host string
	Name string
}
