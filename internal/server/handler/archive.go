package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

// ProfitArchiver uploads the realized ledger to object storage.
type ProfitArchiver interface {
	ArchiveRealized(ctx context.Context) (domain.ArchiveResult, error)
}

// ArchiveHandler serves the on-demand realized ledger archive.
type ArchiveHandler struct {
	archiver ProfitArchiver
	logger   *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler. A nil archiver makes the
// endpoint answer 503.
func NewArchiveHandler(archiver ProfitArchiver, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archiver: archiver,
		logger:   logHandler(logger, "archive"),
	}
}

// ArchiveProfits writes the realized ledger to object storage.
// POST /api/profits/archive
func (h *ArchiveHandler) ArchiveProfits(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusServiceUnavailable, "archive storage not configured")
		return
	}

	res, err := h.archiver.ArchiveRealized(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: archive profits failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to archive profits")
		return
	}

	writeJSON(w, http.StatusOK, res)
}
