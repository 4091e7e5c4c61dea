// Package importer provides CSV and Excel import for piece lists and panel
// inventories. It supports automatic delimiter detection, flexible column
// mapping, and case-insensitive header recognition. Records come back raw;
// range and grain validation is left to the catalog.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/piwi3910/PanelCut/internal/catalog"
)

// Kind selects which record type a file holds.
type Kind int

const (
	KindPieces Kind = iota
	KindPanels
)

func (k Kind) String() string {
	if k == KindPanels {
		return "panels"
	}
	return "pieces"
}

// ImportResult holds the results of an import operation.
type ImportResult struct {
	Pieces   []catalog.RawPiece
	Panels   []catalog.RawPanel
	Errors   []string
	Warnings []string
}

// Column roles.
const (
	colID        = "id"
	colLabel     = "label"
	colWidth     = "width"
	colHeight    = "height"
	colQuantity  = "quantity"
	colGrain     = "grain"
	colMaterial  = "material"
	colProject   = "project"
	colThickness = "thickness"
	colPrice     = "price"
	colStock     = "stock"
)

// ColumnMapping maps column roles to their index in a row. Missing roles map to -1.
type ColumnMapping map[string]int

// Index returns the column for role, or -1.
func (m ColumnMapping) Index(role string) int {
	if i, ok := m[role]; ok {
		return i
	}
	return -1
}

// pieceAliases maps piece column roles to their accepted header names (all lowercase).
var pieceAliases = map[string][]string{
	colID:       {"id", "part id", "piece id", "ref"},
	colLabel:    {"label", "name", "part", "part name", "description", "desc", "piece", "item"},
	colWidth:    {"width", "w", "length", "len", "x"},
	colHeight:   {"height", "h", "depth", "d", "y"},
	colQuantity: {"quantity", "qty", "count", "num", "amount", "pcs", "pieces"},
	colGrain:    {"grain", "grain direction", "direction", "grain dir", "orientation"},
	colMaterial: {"material", "mat", "board"},
	colProject:  {"project", "project ref", "job", "order"},
}

// panelAliases maps panel column roles to their accepted header names (all lowercase).
var panelAliases = map[string][]string{
	colID:        {"id", "panel id", "sku", "code"},
	colLabel:     {"label", "name", "panel", "description", "desc"},
	colWidth:     {"width", "w", "length", "len"},
	colHeight:    {"height", "h", "depth", "d"},
	colThickness: {"thickness", "thk", "t"},
	colMaterial:  {"material", "mat"},
	colPrice:     {"price", "price/m2", "price per m2", "price per area", "cost", "cost/m2"},
	colStock:     {"stock", "qty", "quantity", "available", "count", "in stock"},
	colGrain:     {"grain", "grain direction", "direction", "orientation"},
}

// positional fallbacks when a file has no recognizable header.
var (
	piecePositions = []string{colLabel, colWidth, colHeight, colQuantity, colGrain, colMaterial}
	panelPositions = []string{colLabel, colWidth, colHeight, colStock, colThickness, colPrice, colMaterial, colGrain}
)

func aliasesFor(kind Kind) (map[string][]string, []string, []string) {
	if kind == KindPanels {
		return panelAliases, panelPositions, []string{colWidth, colHeight, colStock}
	}
	return pieceAliases, piecePositions, []string{colWidth, colHeight, colQuantity}
}

// DetectCSVDelimiter reads the file content and determines the most likely CSV delimiter.
// It tries comma, semicolon, tab, and pipe. The delimiter that produces the most
// consistent (non-one) column count across lines wins.
func DetectCSVDelimiter(data []byte) rune {
	candidates := []rune{',', ';', '\t', '|'}
	bestDelimiter := ','
	bestScore := 0

	for _, delim := range candidates {
		reader := csv.NewReader(bytes.NewReader(data))
		reader.Comma = delim
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		records, err := reader.ReadAll()
		if err != nil || len(records) < 1 {
			continue
		}

		firstCols := len(records[0])
		if firstCols < 2 {
			continue
		}

		score := 0
		for _, row := range records {
			if len(row) == firstCols {
				score++
			}
		}

		weighted := score*10 + firstCols
		if weighted > bestScore {
			bestScore = weighted
			bestDelimiter = delim
		}
	}

	return bestDelimiter
}

// DetectColumns examines a header row and returns a ColumnMapping for kind.
// It returns the mapping and true if a header was detected, or the default
// positional mapping and false otherwise.
func DetectColumns(row []string, kind Kind) (ColumnMapping, bool) {
	aliases, positions, _ := aliasesFor(kind)

	// Sorted roles keep detection independent of map order.
	roles := make([]string, 0, len(aliases))
	for role := range aliases {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	mapping := ColumnMapping{}
	for i, cell := range row {
		normalized := strings.ToLower(strings.TrimSpace(cell))
	match:
		for _, role := range roles {
			if _, taken := mapping[role]; taken {
				continue
			}
			for _, alias := range aliases[role] {
				if normalized == alias {
					mapping[role] = i
					break match
				}
			}
		}
	}

	// A lone match is more likely a data value such as "H" than a header.
	if len(mapping) < 2 {
		positional := ColumnMapping{}
		for i, role := range positions {
			positional[role] = i
		}
		return positional, false
	}
	return mapping, true
}

// getCell safely retrieves a trimmed cell value. Out-of-range or negative
// indices yield the empty string.
func getCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseFloatCell(row []string, mapping ColumnMapping, role, rowLabel string, required bool) (float64, string) {
	s := getCell(row, mapping.Index(role))
	if s == "" {
		if required {
			return 0, fmt.Sprintf("%s: Missing %s value", rowLabel, role)
		}
		return 0, ""
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Sprintf("%s: Invalid %s '%s'", rowLabel, role, s)
	}
	return v, ""
}

func parseIntCell(row []string, mapping ColumnMapping, role, rowLabel string) (int, string) {
	s := getCell(row, mapping.Index(role))
	if s == "" {
		return 0, fmt.Sprintf("%s: Missing %s value", rowLabel, role)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Sprintf("%s: Invalid %s '%s'", rowLabel, role, s)
	}
	return v, ""
}

// parsePieceRow extracts a raw piece. It returns the piece and an error message.
func parsePieceRow(row []string, mapping ColumnMapping, rowLabel string, count int) (catalog.RawPiece, string) {
	label := getCell(row, mapping.Index(colLabel))
	if label == "" {
		label = fmt.Sprintf("Piece %d", count+1)
	}
	width, msg := parseFloatCell(row, mapping, colWidth, rowLabel, true)
	if msg != "" {
		return catalog.RawPiece{}, msg
	}
	height, msg := parseFloatCell(row, mapping, colHeight, rowLabel, true)
	if msg != "" {
		return catalog.RawPiece{}, msg
	}
	qty, msg := parseIntCell(row, mapping, colQuantity, rowLabel)
	if msg != "" {
		return catalog.RawPiece{}, msg
	}
	return catalog.RawPiece{
		ID:         getCell(row, mapping.Index(colID)),
		Label:      label,
		Width:      width,
		Height:     height,
		Quantity:   qty,
		Grain:      getCell(row, mapping.Index(colGrain)),
		Material:   getCell(row, mapping.Index(colMaterial)),
		ProjectRef: getCell(row, mapping.Index(colProject)),
	}, ""
}

// parsePanelRow extracts a raw panel. It returns the panel and an error message.
func parsePanelRow(row []string, mapping ColumnMapping, rowLabel string, count int) (catalog.RawPanel, string) {
	label := getCell(row, mapping.Index(colLabel))
	if label == "" {
		label = fmt.Sprintf("Panel %d", count+1)
	}
	width, msg := parseFloatCell(row, mapping, colWidth, rowLabel, true)
	if msg != "" {
		return catalog.RawPanel{}, msg
	}
	height, msg := parseFloatCell(row, mapping, colHeight, rowLabel, true)
	if msg != "" {
		return catalog.RawPanel{}, msg
	}
	stock, msg := parseIntCell(row, mapping, colStock, rowLabel)
	if msg != "" {
		return catalog.RawPanel{}, msg
	}
	thickness, msg := parseFloatCell(row, mapping, colThickness, rowLabel, false)
	if msg != "" {
		return catalog.RawPanel{}, msg
	}
	price, msg := parseFloatCell(row, mapping, colPrice, rowLabel, false)
	if msg != "" {
		return catalog.RawPanel{}, msg
	}
	return catalog.RawPanel{
		ID:            getCell(row, mapping.Index(colID)),
		Label:         label,
		Width:         width,
		Height:        height,
		Thickness:     thickness,
		Material:      getCell(row, mapping.Index(colMaterial)),
		PricePerArea:  price,
		StockQuantity: stock,
		Grain:         getCell(row, mapping.Index(colGrain)),
	}, ""
}

// isEmptyRow returns true if the row has no meaningful content.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ImportFile imports records of kind from path, choosing the reader by file extension.
func ImportFile(path string, kind Kind) ImportResult {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xls":
		return ImportExcel(path, kind)
	case ".dxf":
		if kind == KindPieces {
			return ImportDXF(path)
		}
		return ImportResult{Errors: []string{"DXF files can only hold pieces"}}
	default:
		return ImportCSV(path, kind)
	}
}

// ImportCSV imports records from a CSV file.
// It automatically detects the delimiter and maps columns by header names.
func ImportCSV(path string, kind Kind) ImportResult {
	result := ImportResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open file: %v", err))
		return result
	}

	if len(bytes.TrimSpace(data)) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	delimiter := DetectCSVDelimiter(data)
	if delimiter != ',' {
		delimName := map[rune]string{';': "semicolon", '\t': "tab", '|': "pipe"}[delimiter]
		result.Warnings = append(result.Warnings, fmt.Sprintf("Detected %s delimiter", delimName))
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read CSV: %v", err))
		return result
	}

	return importFromRows(records, "Line", result.Warnings, kind)
}

// ImportCSVFromReader imports records from a CSV reader with a known delimiter.
func ImportCSVFromReader(reader io.Reader, delimiter rune, kind Kind) ImportResult {
	result := ImportResult{}

	csvReader := csv.NewReader(reader)
	csvReader.Comma = delimiter
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read CSV: %v", err))
		return result
	}

	return importFromRows(records, "Line", nil, kind)
}

// ImportExcel imports records from the first sheet of an Excel workbook.
func ImportExcel(path string, kind Kind) ImportResult {
	result := ImportResult{}

	f, err := excelize.OpenFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open Excel file: %v", err))
		return result
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		result.Errors = append(result.Errors, "Excel file has no sheets")
		return result
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read Excel data: %v", err))
		return result
	}

	return importFromRows(rows, "Row", nil, kind)
}

// importFromRows is the shared import logic for CSV and Excel data.
func importFromRows(rows [][]string, rowPrefix string, initialWarnings []string, kind Kind) ImportResult {
	result := ImportResult{
		Warnings: initialWarnings,
	}

	if len(rows) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	_, _, required := aliasesFor(kind)
	mapping, hasHeader := DetectColumns(rows[0], kind)
	startRow := 0
	if hasHeader {
		startRow = 1
		result.Warnings = append(result.Warnings, "Detected header row, skipping")

		var missing []string
		for _, role := range required {
			if mapping.Index(role) == -1 {
				missing = append(missing, role)
			}
		}
		if len(missing) > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("Required columns not found in header: %s", strings.Join(missing, ", ")))
			return result
		}
	} else if len(rows[0]) >= 3 {
		// Non-numeric width column: an unrecognized header, still positional.
		if _, err := strconv.ParseFloat(strings.TrimSpace(rows[0][1]), 64); err != nil {
			startRow = 1
			result.Warnings = append(result.Warnings, "Detected header row, skipping")
		}
	}

	for i := startRow; i < len(rows); i++ {
		row := rows[i]
		if isEmptyRow(row) {
			continue
		}
		rowLabel := fmt.Sprintf("%s %d", rowPrefix, i+1)

		switch kind {
		case KindPanels:
			panel, msg := parsePanelRow(row, mapping, rowLabel, len(result.Panels))
			if msg != "" {
				result.Errors = append(result.Errors, msg)
				continue
			}
			result.Panels = append(result.Panels, panel)
		default:
			piece, msg := parsePieceRow(row, mapping, rowLabel, len(result.Pieces))
			if msg != "" {
				result.Errors = append(result.Errors, msg)
				continue
			}
			result.Pieces = append(result.Pieces, piece)
		}
	}

	return result
}
