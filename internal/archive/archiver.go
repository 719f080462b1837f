package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"clinicore/pkg/domain"
)

// ValidationArchiver writes completed validations to an archive store as
// JSON documents keyed by analysis and validation id.
type ValidationArchiver struct {
	store Store
}

// NewValidationArchiver constructs an archiver over store.
func NewValidationArchiver(store Store) *ValidationArchiver {
	return &ValidationArchiver{store: store}
}

// ArchiveValidation persists an immutable JSON snapshot of the completed
// validation.
func (a *ValidationArchiver) ArchiveValidation(ctx context.Context, validation domain.Validation) error {
	payload, err := json.Marshal(validation)
	if err != nil {
		return fmt.Errorf("encode validation %s: %w", validation.ID, err)
	}
	key := fmt.Sprintf("validations/%s/%s.json", validation.AnalysisID, validation.ID)
	if _, err := a.store.Put(ctx, key, payload, "application/json"); err != nil {
		return fmt.Errorf("archive validation %s: %w", validation.ID, err)
	}
	return nil
}
