package workflow

import (
	"errors"

	"github.com/mmdatafocus/gelato_backoffice/models"
)

var (
	ErrUnknownCategory       = models.ErrUnknownCategory
	ErrCatalogEntryNotFound  = errors.New("catalog entry not found")
	ErrNoPendingConference   = errors.New("no pending conference contains the product")
	ErrDuplicateCatalogEntry = errors.New("a catalog entry with the same name already exists in the category")
	ErrEmptyProductName      = errors.New("product name is required")
	ErrRunInProgress         = errors.New("a reconciliation run is already in progress for the store")
)
