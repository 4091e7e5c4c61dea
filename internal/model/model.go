package model

import (
	"fmt"
	"slices"
	"strings"
)

// Grain represents the grain direction of a piece or panel.
type Grain int

const (
	GrainNone       Grain = iota // No grain constraint, can rotate freely
	GrainHorizontal              // Grain runs along the width
	GrainVertical                // Grain runs along the height
)

func (g Grain) String() string {
	switch g {
	case GrainHorizontal:
		return "HORIZONTAL"
	case GrainVertical:
		return "VERTICAL"
	default:
		return "NONE"
	}
}

// Valid reports whether g is one of the enumerated grain directions.
func (g Grain) Valid() bool {
	return g == GrainNone || g == GrainHorizontal || g == GrainVertical
}

// ParseGrain converts a grain direction name into a Grain. Matching is
// case-insensitive and accepts the single-letter forms used on cut lists.
func ParseGrain(s string) (Grain, error) {
	switch normalizeName(s) {
	case "", "NONE", "N", "-":
		return GrainNone, nil
	case "HORIZONTAL", "H":
		return GrainHorizontal, nil
	case "VERTICAL", "V":
		return GrainVertical, nil
	default:
		return GrainNone, fmt.Errorf("unknown grain direction %q", s)
	}
}

func (g Grain) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid grain direction %d", int(g))
	}
	return []byte(g.String()), nil
}

func (g *Grain) UnmarshalText(text []byte) error {
	parsed, err := ParseGrain(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// CanPlaceWithGrain reports which orientations a piece may take on a panel.
// Grainless pieces rotate freely. A piece with grain keeps its orientation and
// can only go on a panel with the same grain or no grain at all.
func CanPlaceWithGrain(piece, panel Grain) (canNormal, canRotated bool) {
	if piece == GrainNone {
		return true, true
	}
	if panel == GrainNone || panel == piece {
		return true, false
	}
	return false, false
}

func normalizeName(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// Piece represents a required rectangular piece to be cut.
type Piece struct {
	ID         string  `json:"id"`
	Label      string  `json:"label,omitempty"`
	Width      float64 `json:"width"`  // mm
	Height     float64 `json:"height"` // mm
	Quantity   int     `json:"quantity"`
	Grain      Grain   `json:"grain"`
	ProjectRef string  `json:"projectRef,omitempty"`
	Material   string  `json:"material,omitempty"` // empty matches any panel
}

// Area returns the area of one unit of the piece in mm².
func (p Piece) Area() float64 {
	return p.Width * p.Height
}

// DisplayName returns the label, or the ID when the piece has no label.
func (p Piece) DisplayName() string {
	if p.Label != "" {
		return p.Label
	}
	return p.ID
}

// PieceUnit is one physical unit of a piece after quantity expansion.
type PieceUnit struct {
	Piece Piece
	Unit  int // zero-based index within the piece's quantity
}

// Panel represents a stock panel type available in the inventory.
type Panel struct {
	ID            string  `json:"id"`
	Label         string  `json:"label,omitempty"`
	Width         float64 `json:"width"`     // mm
	Height        float64 `json:"height"`    // mm
	Thickness     float64 `json:"thickness"` // mm
	Material      string  `json:"material,omitempty"`
	PricePerArea  float64 `json:"pricePerArea"` // currency per m²
	StockQuantity int     `json:"stockQuantity"`
	Grain         Grain   `json:"grain"`
}

// Area returns the panel area in mm².
func (p Panel) Area() float64 {
	return p.Width * p.Height
}

// AreaM2 returns the panel area in m².
func (p Panel) AreaM2() float64 {
	return p.Area() / 1e6
}

// Price returns the cost of one panel instance.
func (p Panel) Price() float64 {
	return p.AreaM2() * p.PricePerArea
}

// MaterialMatches reports whether a piece of the given material may be cut
// from this panel. An empty material on either side matches anything.
func (p Panel) MaterialMatches(material string) bool {
	if material == "" || p.Material == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(material), strings.TrimSpace(p.Material))
}

// Rect is an axis-aligned rectangle in panel coordinates (mm from the top-left corner).
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Area() float64 {
	return r.Width * r.Height
}

func (r Rect) Right() float64 {
	return r.X + r.Width
}

func (r Rect) Bottom() float64 {
	return r.Y + r.Height
}

// FreeRect is a candidate placement region owned by one open panel instance.
type FreeRect struct {
	Rect
	Instance int // ordinal of the owning panel instance
	Index    int // position in the instance's free-rectangle arena
}

// Placement represents a single piece unit placed on a panel instance.
type Placement struct {
	PieceID         string  `json:"pieceId"`
	Label           string  `json:"label,omitempty"`
	Unit            int     `json:"unit"`
	PanelInstanceID string  `json:"panelInstanceId"`
	X               float64 `json:"x"`      // Position from left edge (mm)
	Y               float64 `json:"y"`      // Position from top edge (mm)
	Width           float64 `json:"width"`  // Placed width, after rotation
	Height          float64 `json:"height"` // Placed height, after rotation
	Rotated         bool    `json:"rotated"`
}

// Rect returns the rectangle occupied by the placement.
func (p Placement) Rect() Rect {
	return Rect{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
}

func (p Placement) Area() float64 {
	return p.Width * p.Height
}

// Cut is a single straight guillotine cut.
type Cut struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Horizontal bool    `json:"horizontal"`
}

func (c Cut) Length() float64 {
	if c.Horizontal {
		return c.X2 - c.X1
	}
	return c.Y2 - c.Y1
}

// CuttingPlan is the layout of one opened panel instance.
type CuttingPlan struct {
	PanelTypeID     string      `json:"panelTypeId"`
	PanelInstanceID string      `json:"panelInstanceId"`
	PanelLabel      string      `json:"panelLabel,omitempty"`
	Material        string      `json:"material,omitempty"`
	PanelWidth      float64     `json:"panelWidth"`
	PanelHeight     float64     `json:"panelHeight"`
	Placements      []Placement `json:"placements"`
	Cuts            []Cut       `json:"cuts"`
	Offcuts         []Rect      `json:"offcuts,omitempty"`
	UsedArea        float64     `json:"usedArea"`
	PanelArea       float64     `json:"panelArea"`
	CuttingLength   float64     `json:"cuttingLength"`
	Efficiency      float64     `json:"efficiency"`
}

// Reason explains why a piece unit could not be placed.
type Reason string

const (
	ReasonPieceTooLarge     Reason = "PieceTooLarge"
	ReasonGrainMismatch     Reason = "GrainMismatch"
	ReasonMaterialMismatch  Reason = "MaterialMismatch"
	ReasonInsufficientStock Reason = "InsufficientStock"
	ReasonCancelled         Reason = "Cancelled"
)

// UnplacedPiece is a piece unit that is not part of any cutting plan.
type UnplacedPiece struct {
	PieceID string  `json:"pieceId"`
	Label   string  `json:"label,omitempty"`
	Unit    int     `json:"unit"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Reason  Reason  `json:"reason"`
}

// OptimizationResult holds the full solution of one optimization run.
type OptimizationResult struct {
	Strategy           Strategy        `json:"strategy"`
	KerfWidth          float64         `json:"kerfWidth"`
	Efficiency         float64         `json:"efficiency"`
	WastePercentage    float64         `json:"wastePercentage"`
	PanelsUsed         map[string]int  `json:"panelsUsed"`
	TotalCost          float64         `json:"totalCost"`
	TotalCuttingLength float64         `json:"totalCuttingLength"`
	ExecutionTimeMs    float64         `json:"executionTimeMs"`
	CuttingPlans       []CuttingPlan   `json:"cuttingPlans"`
	UnplacedPieces     []UnplacedPiece `json:"unplacedPieces"`
	Cached             bool            `json:"cached,omitempty"`
}

// PlacedCount returns the number of placed piece units.
func (r OptimizationResult) PlacedCount() int {
	n := 0
	for _, p := range r.CuttingPlans {
		n += len(p.Placements)
	}
	return n
}

// Complete reports whether every piece unit was placed.
func (r OptimizationResult) Complete() bool {
	return len(r.UnplacedPieces) == 0
}

// UnplacedByReason counts unplaced units per reason.
func (r OptimizationResult) UnplacedByReason() map[Reason]int {
	counts := make(map[Reason]int)
	for _, u := range r.UnplacedPieces {
		counts[u.Reason]++
	}
	return counts
}

// Clone returns a deep copy of the result.
func (r OptimizationResult) Clone() OptimizationResult {
	out := r
	if r.PanelsUsed != nil {
		out.PanelsUsed = make(map[string]int, len(r.PanelsUsed))
		for k, v := range r.PanelsUsed {
			out.PanelsUsed[k] = v
		}
	}
	if r.CuttingPlans != nil {
		out.CuttingPlans = make([]CuttingPlan, len(r.CuttingPlans))
		for i, p := range r.CuttingPlans {
			cp := p
			cp.Placements = slices.Clone(p.Placements)
			cp.Cuts = slices.Clone(p.Cuts)
			cp.Offcuts = slices.Clone(p.Offcuts)
			out.CuttingPlans[i] = cp
		}
	}
	out.UnplacedPieces = slices.Clone(r.UnplacedPieces)
	return out
}

// Settings holds engine configuration that is not part of a single request.
type Settings struct {
	EdgeTrim float64 `json:"edge_trim"` // Trim around panel edges in mm
	Workers  int     `json:"workers"`   // Parallel panel-type evaluations, 0 = GOMAXPROCS
}

func DefaultSettings() Settings {
	return Settings{
		EdgeTrim: 0,
		Workers:  0,
	}
}
