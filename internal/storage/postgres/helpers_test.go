package postgres

import (
	"context"
	"fmt"
)

// TruncateForTest removes all rows from every table.
// It is intended for use in tests only. The method is defined in the
// postgres package (not the _test package) so it has access to the
// unexported db field.
func (b *Backend) TruncateForTest(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, "TRUNCATE TABLE curation_items, published_documents, query_frequency, knowledge_index")
	if err != nil {
		return fmt.Errorf("postgres: failed to truncate tables: %w", err)
	}
	return nil
}
