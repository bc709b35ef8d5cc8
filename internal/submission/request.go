package submission

import (
	"strings"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// BuildRequest maps a draft into the creation payload. Outcomes become one
// entry each; the uploaded filename, if any, is attached.
func BuildRequest(d domain.MarketDraft, imageFilename string) (domain.CreateMarketRequest, error) {
	if d.Deadline == nil || d.Deadline.IsZero() {
		return domain.CreateMarketRequest{}, &domain.PreconditionError{Message: MsgDeadlineRequired}
	}

	outcomes := d.FilledOutcomes()
	entries := make([]domain.OutcomeEntry, 0, len(outcomes))
	for _, o := range outcomes {
		entries = append(entries, domain.OutcomeEntry{Title: o})
	}

	req := domain.CreateMarketRequest{
		Title:            strings.TrimSpace(d.Title),
		Description:      d.Description,
		CategoryID:       d.CategoryID,
		EndDate:          d.Deadline.UTC(),
		Outcomes:         entries,
		Image:            imageFilename,
		Reference:        strings.TrimSpace(d.Reference),
		InitialLiquidity: d.InitialLiquidity,
		OracleID:         d.OracleID,
		Fee:              d.Fee,
	}
	if d.StartAt != nil && !d.StartAt.IsZero() {
		s := d.StartAt.UTC()
		req.StartAt = &s
	}
	return req, nil
}
