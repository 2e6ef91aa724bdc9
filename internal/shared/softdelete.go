package shared

import "fmt"

// NotDeleted builds the soft-delete filter clause for an aliased table.
// Soft-deleted rows keep their data for audit but are excluded from every
// normal read.
func NotDeleted(alias string) string {
	if alias == "" {
		return "deleted_at IS NULL"
	}
	return fmt.Sprintf("%s.deleted_at IS NULL", alias)
}
