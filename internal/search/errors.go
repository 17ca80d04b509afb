package search

import (
	"fmt"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/models"
)

// PartialWriteError reports that a document write succeeded but its embedding
// did not. Document is the persisted record. Its kind is always external service.
type PartialWriteError struct {
	Document *models.Document
	err      *apperr.Error
}

func newPartialWriteError(op string, doc *models.Document, cause error) *PartialWriteError {
	return &PartialWriteError{
		Document: doc,
		err: &apperr.Error{
			Kind: apperr.KindExternalService,
			Op:   op,
			Msg:  fmt.Sprintf("document %d saved but embedding failed", doc.ID),
			Err:  cause,
		},
	}
}

func (e *PartialWriteError) Error() string {
	return e.err.Error()
}

// Unwrap exposes the classified error and through it the cause.
func (e *PartialWriteError) Unwrap() error {
	return e.err
}
