// Package catalog turns externally supplied piece lists and panel inventories
// into validated model types. Bad records are dropped and reported so that
// one typo in a cut list does not sink the whole batch.
package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/piwi3910/PanelCut/internal/model"
)

// MaxUnits bounds the number of piece units one run may expand to, summed
// over every piece's quantity.
const MaxUnits = 100_000

// idNamespace seeds the name-based UUIDs handed to records that arrive without an ID.
var idNamespace = uuid.MustParse("6f1c8e0a-3b7d-5c2e-9a41-0d5e7b2f8c13")

// RawPiece is a piece record as it arrives from a cut list, job file or API call.
type RawPiece struct {
	ID         string  `json:"id,omitempty"`
	Label      string  `json:"label,omitempty"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Quantity   int     `json:"quantity"`
	Grain      string  `json:"grain,omitempty"`
	ProjectRef string  `json:"projectRef,omitempty"`
	Material   string  `json:"material,omitempty"`
}

// RawPanel is a stock panel record as it arrives from an inventory source.
type RawPanel struct {
	ID            string  `json:"id,omitempty"`
	Label         string  `json:"label,omitempty"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	Thickness     float64 `json:"thickness,omitempty"`
	Material      string  `json:"material,omitempty"`
	PricePerArea  float64 `json:"pricePerArea"`
	StockQuantity int     `json:"stockQuantity"`
	Grain         string  `json:"grain,omitempty"`
}

// Result holds the records that passed validation and the errors for those that did not.
type Result struct {
	Pieces []model.Piece
	Panels []model.Panel
	Errors []*model.Error
}

// Err combines the record errors into a single error, or nil when every record was valid.
func (r Result) Err() error {
	var err error
	for _, e := range r.Errors {
		err = multierr.Append(err, e)
	}
	return err
}

// Normalize validates raw pieces and panels. Records that fail validation are
// excluded from the returned slices and reported in Result.Errors in input order.
func Normalize(rawPieces []RawPiece, rawPanels []RawPanel) Result {
	res := Result{
		Pieces: make([]model.Piece, 0, len(rawPieces)),
		Panels: make([]model.Panel, 0, len(rawPanels)),
	}

	seen := make(map[string]bool, len(rawPieces))
	units := 0
	for i, raw := range rawPieces {
		p, err := normalizePiece(i, raw)
		if err == nil && seen[p.ID] {
			err = duplicate(pieceRecord(i, p.ID), p.ID)
		}
		if err == nil {
			err = checkUnits(pieceRecord(i, p.ID), units, p.Quantity)
		}
		if err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		seen[p.ID] = true
		units += p.Quantity
		res.Pieces = append(res.Pieces, p)
	}

	seen = make(map[string]bool, len(rawPanels))
	for i, raw := range rawPanels {
		p, err := normalizePanel(i, raw)
		if err == nil && seen[p.ID] {
			err = duplicate(panelRecord(i, p.ID), p.ID)
		}
		if err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		seen[p.ID] = true
		res.Panels = append(res.Panels, p)
	}
	return res
}

func normalizePiece(i int, raw RawPiece) (model.Piece, *model.Error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = generatedID("piece", i, raw.Label, raw.Width, raw.Height, float64(raw.Quantity), raw.Grain)
	}
	record := pieceRecord(i, id)

	grain, err := model.ParseGrain(raw.Grain)
	if err != nil {
		return model.Piece{}, &model.Error{Code: model.CodeInvalidGrain, Record: record, Field: "grain", Message: err.Error()}
	}
	p := model.Piece{
		ID:         id,
		Label:      strings.TrimSpace(raw.Label),
		Width:      raw.Width,
		Height:     raw.Height,
		Quantity:   raw.Quantity,
		Grain:      grain,
		ProjectRef: strings.TrimSpace(raw.ProjectRef),
		Material:   strings.TrimSpace(raw.Material),
	}
	if e := checkPiece(record, p); e != nil {
		return model.Piece{}, e
	}
	return p, nil
}

func normalizePanel(i int, raw RawPanel) (model.Panel, *model.Error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = generatedID("panel", i, raw.Label, raw.Width, raw.Height, float64(raw.StockQuantity), raw.Grain)
	}
	record := panelRecord(i, id)

	grain, err := model.ParseGrain(raw.Grain)
	if err != nil {
		return model.Panel{}, &model.Error{Code: model.CodeInvalidGrain, Record: record, Field: "grain", Message: err.Error()}
	}
	p := model.Panel{
		ID:            id,
		Label:         strings.TrimSpace(raw.Label),
		Width:         raw.Width,
		Height:        raw.Height,
		Thickness:     raw.Thickness,
		Material:      strings.TrimSpace(raw.Material),
		PricePerArea:  raw.PricePerArea,
		StockQuantity: raw.StockQuantity,
		Grain:         grain,
	}
	if e := checkPanel(record, p); e != nil {
		return model.Panel{}, e
	}
	return p, nil
}

// Verify re-checks already normalized pieces and panels. The engine calls it
// before packing; any failure here rejects the whole run.
func Verify(pieces []model.Piece, panels []model.Panel) error {
	var err error
	seen := make(map[string]bool, len(pieces))
	units := 0
	for i, p := range pieces {
		record := pieceRecord(i, p.ID)
		switch {
		case strings.TrimSpace(p.ID) == "":
			err = multierr.Append(err, &model.Error{Code: model.CodeInvalidDimensions, Record: record, Field: "id", Message: "missing id"})
		case seen[p.ID]:
			err = multierr.Append(err, duplicate(record, p.ID))
		}
		seen[p.ID] = true
		if !p.Grain.Valid() {
			err = multierr.Append(err, &model.Error{Code: model.CodeInvalidGrain, Record: record, Field: "grain", Message: fmt.Sprintf("unknown grain direction %d", int(p.Grain))})
		}
		if e := checkPiece(record, p); e != nil {
			err = multierr.Append(err, e)
		} else if e := checkUnits(record, units, p.Quantity); e != nil {
			err = multierr.Append(err, e)
		} else {
			units += p.Quantity
		}
	}

	seen = make(map[string]bool, len(panels))
	for i, p := range panels {
		record := panelRecord(i, p.ID)
		switch {
		case strings.TrimSpace(p.ID) == "":
			err = multierr.Append(err, &model.Error{Code: model.CodeInvalidDimensions, Record: record, Field: "id", Message: "missing id"})
		case seen[p.ID]:
			err = multierr.Append(err, duplicate(record, p.ID))
		}
		seen[p.ID] = true
		if !p.Grain.Valid() {
			err = multierr.Append(err, &model.Error{Code: model.CodeInvalidGrain, Record: record, Field: "grain", Message: fmt.Sprintf("unknown grain direction %d", int(p.Grain))})
		}
		if e := checkPanel(record, p); e != nil {
			err = multierr.Append(err, e)
		}
	}
	return err
}

// Expand turns every piece into Quantity independent units, keeping input
// order. Callers pass pieces that passed Verify, so the total stays within
// MaxUnits.
func Expand(pieces []model.Piece) []model.PieceUnit {
	n := 0
	for _, p := range pieces {
		n += p.Quantity
	}
	units := make([]model.PieceUnit, 0, n)
	for _, p := range pieces {
		for u := 0; u < p.Quantity; u++ {
			units = append(units, model.PieceUnit{Piece: p, Unit: u})
		}
	}
	return units
}

func checkPiece(record string, p model.Piece) *model.Error {
	if e := checkLength(record, "width", p.Width); e != nil {
		return e
	}
	if e := checkLength(record, "height", p.Height); e != nil {
		return e
	}
	if p.Quantity < 1 || p.Quantity > MaxUnits {
		return &model.Error{Code: model.CodeInvalidDimensions, Record: record, Field: "quantity", Message: fmt.Sprintf("quantity must be between 1 and %d, got %d", MaxUnits, p.Quantity)}
	}
	return nil
}

// checkUnits rejects a quantity that would take the running unit total past
// MaxUnits. Both operands are at most MaxUnits, so the sum cannot overflow.
func checkUnits(record string, total, qty int) *model.Error {
	if total+qty <= MaxUnits {
		return nil
	}
	return &model.Error{Code: model.CodeInvalidDimensions, Record: record, Field: "quantity", Message: fmt.Sprintf("quantity %d takes the job past %d piece units", qty, MaxUnits)}
}

func checkPanel(record string, p model.Panel) *model.Error {
	if e := checkLength(record, "width", p.Width); e != nil {
		return e
	}
	if e := checkLength(record, "height", p.Height); e != nil {
		return e
	}
	if p.Thickness < 0 || !finite(p.Thickness) {
		return &model.Error{Code: model.CodeInvalidDimensions, Record: record, Field: "thickness", Message: fmt.Sprintf("thickness must be non-negative, got %v", p.Thickness)}
	}
	if p.StockQuantity < 0 {
		return &model.Error{Code: model.CodeInvalidDimensions, Record: record, Field: "stockQuantity", Message: fmt.Sprintf("stock must be non-negative, got %d", p.StockQuantity)}
	}
	if p.PricePerArea < 0 || !finite(p.PricePerArea) {
		return &model.Error{Code: model.CodeInvalidPrice, Record: record, Field: "pricePerArea", Message: fmt.Sprintf("price must be non-negative, got %v", p.PricePerArea)}
	}
	return nil
}

func checkLength(record, field string, v float64) *model.Error {
	if v > 0 && finite(v) {
		return nil
	}
	return &model.Error{Code: model.CodeInvalidDimensions, Record: record, Field: field, Message: fmt.Sprintf("%s must be positive, got %v", field, v)}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func duplicate(record, id string) *model.Error {
	return &model.Error{Code: model.CodeDuplicateID, Record: record, Field: "id", Message: fmt.Sprintf("id %q already used", id)}
}

func pieceRecord(i int, id string) string {
	if id == "" {
		return fmt.Sprintf("piece[%d]", i)
	}
	return fmt.Sprintf("piece[%d] %s", i, id)
}

func panelRecord(i int, id string) string {
	if id == "" {
		return fmt.Sprintf("panel[%d]", i)
	}
	return fmt.Sprintf("panel[%d] %s", i, id)
}

// generatedID derives a stable ID from the record's position and content.
func generatedID(kind string, i int, label string, w, h, qty float64, grain string) string {
	parts := []string{
		kind,
		strconv.Itoa(i),
		label,
		strconv.FormatFloat(w, 'g', -1, 64),
		strconv.FormatFloat(h, 'g', -1, 64),
		strconv.FormatFloat(qty, 'g', -1, 64),
		grain,
	}
	return kind + "-" + uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "|"))).String()[:8]
}
