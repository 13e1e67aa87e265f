package postgres

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-pricing/internal/domain/adjustment"
	"github.com/xenking/commerce-pricing/internal/domain/money"
)

// adjustmentRecord is the JSONB row shape for one adjustment.
type adjustmentRecord struct {
	Type       string           `json:"type"`
	Label      string           `json:"label"`
	Amount     decimal.Decimal  `json:"amount"`
	Currency   string           `json:"currency"`
	SourceID   string           `json:"source_id,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
	Included   bool             `json:"included,omitempty"`
}

func encodeAdjustments(adjs []adjustment.Adjustment) ([]byte, error) {
	records := make([]adjustmentRecord, len(adjs))
	for i, a := range adjs {
		records[i] = adjustmentRecord{
			Type:     a.Type(),
			Label:    a.Label(),
			Amount:   a.Amount().Amount(),
			Currency: a.Amount().Currency(),
			SourceID: a.SourceID(),
			Included: a.Included(),
		}
		if pct := a.Percentage(); pct.Valid {
			records[i].Percentage = &pct.Decimal
		}
	}
	out, err := json.Marshal(records)
	if err != nil {
		return nil, errors.Wrap(err, "marshal adjustments")
	}
	return out, nil
}

func decodeAdjustments(reg adjustment.Registry, data []byte) ([]adjustment.Adjustment, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var records []adjustmentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "unmarshal adjustments")
	}
	out := make([]adjustment.Adjustment, 0, len(records))
	for _, rec := range records {
		params := adjustment.Params{
			Type:     rec.Type,
			Label:    rec.Label,
			Amount:   money.New(rec.Amount, rec.Currency),
			SourceID: rec.SourceID,
			Included: rec.Included,
		}
		if rec.Percentage != nil {
			params.Percentage = decimal.NullDecimal{Decimal: *rec.Percentage, Valid: true}
		}
		a, err := adjustment.New(reg, params)
		if err != nil {
			return nil, errors.Wrapf(err, "rebuild %s adjustment", rec.Type)
		}
		out = append(out, a)
	}
	return out, nil
}
