package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/piwi3910/PanelCut/internal/catalog"
	"github.com/piwi3910/PanelCut/internal/model"
)

// stockNamespace seeds the IDs given to inventory panels that arrive without one.
var stockNamespace = uuid.MustParse("2d8b4f61-7a0e-5c39-b1d4-93e6f0a5c7b2")

// Inventory is the workshop's panel stock, kept between jobs. Every panel in
// it carries an ID so that OptimizationResult.PanelsUsed can be mapped back.
type Inventory struct {
	Panels []catalog.RawPanel `json:"panels"`
}

// DefaultInventoryPath returns the default file path for the inventory file.
// This is located at ~/.panelcut/inventory.json.
func DefaultInventoryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".panelcut", "inventory.json"), nil
}

// SaveInventory writes the inventory to the specified JSON file.
// It creates parent directories if they do not exist.
func SaveInventory(path string, inv Inventory) error {
	if inv.Panels == nil {
		inv.Panels = []catalog.RawPanel{}
	}
	return writeJSON(path, inv)
}

// LoadInventory reads the inventory from the specified JSON file.
// A missing file yields an empty inventory.
func LoadInventory(path string) (Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Inventory{Panels: []catalog.RawPanel{}}, nil
		}
		return Inventory{}, err
	}
	var inv Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return Inventory{}, fmt.Errorf("failed to parse inventory %s: %w", path, err)
	}
	if inv.Panels == nil {
		inv.Panels = []catalog.RawPanel{}
	}
	for i := range inv.Panels {
		if strings.TrimSpace(inv.Panels[i].ID) == "" {
			inv.Panels[i].ID = stockID(inv.Panels[i])
		}
	}
	return inv, nil
}

// Merge adds panels whose ID is not yet in the inventory. Panels without an
// ID get one derived from their label and size, so re-importing the same
// sheet list adds nothing. It returns the number added.
func (inv *Inventory) Merge(panels []catalog.RawPanel) int {
	seen := make(map[string]bool, len(inv.Panels))
	for _, p := range inv.Panels {
		seen[strings.TrimSpace(p.ID)] = true
	}

	added := 0
	for _, p := range panels {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			p.ID = stockID(p)
		}
		if seen[p.ID] {
			continue
		}
		inv.Panels = append(inv.Panels, p)
		seen[p.ID] = true
		added++
	}
	return added
}

// Consume lowers the stock of each panel ID by the count used, never below zero.
// Typically fed from OptimizationResult.PanelsUsed after the panels are cut.
func (inv *Inventory) Consume(used map[string]int) {
	for i := range inv.Panels {
		n, ok := used[strings.TrimSpace(inv.Panels[i].ID)]
		if !ok {
			continue
		}
		inv.Panels[i].StockQuantity = max(0, inv.Panels[i].StockQuantity-n)
	}
}

// AddOffcuts stocks the reusable remnants of each cutting plan as new
// single-unit panels named <panel>-offcut-<n>, numbered past any offcut
// already in stock. Price, grain and thickness are taken from the inventory
// panel the plan was cut from. It returns the number added.
func (inv *Inventory) AddOffcuts(result model.OptimizationResult) int {
	source := make(map[string]catalog.RawPanel, len(inv.Panels))
	taken := make(map[string]bool, len(inv.Panels))
	for _, p := range inv.Panels {
		source[strings.TrimSpace(p.ID)] = p
		taken[strings.TrimSpace(p.ID)] = true
	}

	var offcuts []catalog.RawPanel
	for _, plan := range result.CuttingPlans {
		src := source[plan.PanelTypeID]
		grain, err := model.ParseGrain(src.Grain)
		if err != nil {
			grain = model.GrainNone
		}
		for _, p := range plan.OffcutPanels(src.PricePerArea, grain) {
			id := nextFreeID(plan.PanelTypeID+"-offcut-", taken)
			taken[id] = true
			offcuts = append(offcuts, catalog.RawPanel{
				ID:            id,
				Label:         p.Label,
				Width:         p.Width,
				Height:        p.Height,
				Thickness:     src.Thickness,
				Material:      p.Material,
				PricePerArea:  p.PricePerArea,
				StockQuantity: p.StockQuantity,
				Grain:         p.Grain.String(),
			})
		}
	}
	return inv.Merge(offcuts)
}

func nextFreeID(prefix string, taken map[string]bool) string {
	for n := 1; ; n++ {
		if id := prefix + strconv.Itoa(n); !taken[id] {
			return id
		}
	}
}

// stockID names an ID-less panel after its label and size.
func stockID(p catalog.RawPanel) string {
	key := fmt.Sprintf("%s|%gx%g", strings.ToLower(strings.TrimSpace(p.Label)), p.Width, p.Height)
	return "stock-" + uuid.NewSHA1(stockNamespace, []byte(key)).String()[:8]
}
