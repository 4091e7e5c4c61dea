package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"github.com/yofu/dxf"

	"github.com/piwi3910/PanelCut/internal/catalog"
)

// ─── DetectCSVDelimiter Tests ──────────────────────────────

func TestDetectCSVDelimiter(t *testing.T) {
	tests := []struct {
		name string
		data string
		want rune
	}{
		{"comma", "Label,Width,Height,Qty\nShelf,600,300,2\nDoor,400,800,1\n", ','},
		{"semicolon", "Label;Width;Height;Qty\nShelf;600;300;2\nDoor;400;800;1\n", ';'},
		{"tab", "Label\tWidth\tHeight\tQty\nShelf\t600\t300\t2\nDoor\t400\t800\t1\n", '\t'},
		{"pipe", "Label|Width|Height|Qty\nShelf|600|300|2\nDoor|400|800|1\n", '|'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectCSVDelimiter([]byte(tt.data)))
		})
	}
}

// ─── DetectColumns Tests ───────────────────────────────────

func TestDetectColumns_PieceHeaders(t *testing.T) {
	mapping, isHeader := DetectColumns([]string{"ID", "Part Name", "W", "H", "Pcs", "Direction", "Material"}, KindPieces)
	require.True(t, isHeader)
	assert.Equal(t, 0, mapping.Index(colID))
	assert.Equal(t, 1, mapping.Index(colLabel))
	assert.Equal(t, 2, mapping.Index(colWidth))
	assert.Equal(t, 3, mapping.Index(colHeight))
	assert.Equal(t, 4, mapping.Index(colQuantity))
	assert.Equal(t, 5, mapping.Index(colGrain))
	assert.Equal(t, 6, mapping.Index(colMaterial))
	assert.Equal(t, -1, mapping.Index(colProject))
}

func TestDetectColumns_PanelHeaders(t *testing.T) {
	mapping, isHeader := DetectColumns([]string{"SKU", "NAME", "WIDTH", "HEIGHT", "THK", "Price/m2", "Stock"}, KindPanels)
	require.True(t, isHeader)
	assert.Equal(t, 0, mapping.Index(colID))
	assert.Equal(t, 1, mapping.Index(colLabel))
	assert.Equal(t, 4, mapping.Index(colThickness))
	assert.Equal(t, 5, mapping.Index(colPrice))
	assert.Equal(t, 6, mapping.Index(colStock))
}

func TestDetectColumns_NoHeader(t *testing.T) {
	mapping, isHeader := DetectColumns([]string{"Shelf", "600", "300", "2", "H"}, KindPieces)
	assert.False(t, isHeader, "a single grain value is not a header")
	assert.Equal(t, 0, mapping.Index(colLabel))
	assert.Equal(t, 1, mapping.Index(colWidth))
	assert.Equal(t, 2, mapping.Index(colHeight))
	assert.Equal(t, 3, mapping.Index(colQuantity))
	assert.Equal(t, 4, mapping.Index(colGrain))
}

// ─── CSV Import Tests ──────────────────────────────────────

func TestImportCSVFromReader_Pieces(t *testing.T) {
	data := "ID,Label,Width,Height,Quantity,Grain,Material\nS1,Shelf,600,300,2,Horizontal,oak\n,Door,400,800,1,V,\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', KindPieces)

	assert.Empty(t, result.Errors)
	require.Len(t, result.Pieces, 2)
	assert.Equal(t, catalog.RawPiece{
		ID: "S1", Label: "Shelf", Width: 600, Height: 300, Quantity: 2, Grain: "Horizontal", Material: "oak",
	}, result.Pieces[0])
	assert.Equal(t, "V", result.Pieces[1].Grain, "grain is passed through for the catalog to validate")
	assert.Empty(t, result.Pieces[1].ID)
}

func TestImportCSVFromReader_Panels(t *testing.T) {
	data := "Name,Width,Height,Thickness,Price,Stock,Grain\nBirch 18,2800,2070,18,35.5,4,H\nMDF,2440,1220,,,10,\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', KindPanels)

	assert.Empty(t, result.Errors)
	require.Len(t, result.Panels, 2)
	assert.Equal(t, catalog.RawPanel{
		Label: "Birch 18", Width: 2800, Height: 2070, Thickness: 18, PricePerArea: 35.5, StockQuantity: 4, Grain: "H",
	}, result.Panels[0])
	assert.Zero(t, result.Panels[1].PricePerArea)
	assert.Equal(t, 10, result.Panels[1].StockQuantity)
	assert.Empty(t, result.Pieces)
}

func TestImportCSVFromReader_WithoutHeaders(t *testing.T) {
	result := ImportCSVFromReader(strings.NewReader("Shelf,600,300,2\nDoor,400,800,1\n"), ',', KindPieces)
	require.Len(t, result.Pieces, 2, "errors: %v", result.Errors)
	assert.Equal(t, "Shelf", result.Pieces[0].Label)
	assert.Equal(t, 600.0, result.Pieces[0].Width)
}

func TestImportCSVFromReader_ReorderedColumns(t *testing.T) {
	result := ImportCSVFromReader(strings.NewReader("Qty;Height;Width;Name\n2;300;600;Shelf\n"), ';', KindPieces)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Pieces, 1)
	assert.Equal(t, catalog.RawPiece{Label: "Shelf", Width: 600, Height: 300, Quantity: 2}, result.Pieces[0])
}

func TestImportCSVFromReader_RowErrors(t *testing.T) {
	data := "Label,Width,Height,Quantity\nGood,600,300,2\nBad,abc,300,2\nNoQty,600,300,\nAlsoGood,400,200,1\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', KindPieces)

	assert.Len(t, result.Pieces, 2)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "Line 3: Invalid width 'abc'", result.Errors[0])
	assert.Equal(t, "Line 4: Missing quantity value", result.Errors[1])
}

func TestImportCSVFromReader_RangeLeftToCatalog(t *testing.T) {
	data := "Label,Width,Height,Quantity\nShelf,-600,300,0\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', KindPieces)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Pieces, 1)

	normalized := catalog.Normalize(result.Pieces, nil)
	assert.Empty(t, normalized.Pieces)
	assert.NotEmpty(t, normalized.Errors)
}

func TestImportCSVFromReader_MissingRequiredColumn(t *testing.T) {
	result := ImportCSVFromReader(strings.NewReader("Label,Width,Grain\nShelf,600,H\n"), ',', KindPieces)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Required columns not found in header: height, quantity")

	result = ImportCSVFromReader(strings.NewReader("Label,Width,Height\nMDF,2440,1220\n"), ',', KindPanels)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "stock")
}

func TestImportCSVFromReader_EdgeCases(t *testing.T) {
	result := ImportCSVFromReader(strings.NewReader(""), ',', KindPieces)
	assert.NotEmpty(t, result.Errors, "empty input")

	result = ImportCSVFromReader(strings.NewReader("Label,Width,Height,Quantity\n"), ',', KindPieces)
	assert.Empty(t, result.Pieces)
	assert.Empty(t, result.Errors, "header-only input")

	result = ImportCSVFromReader(strings.NewReader("Label,Width,Height,Quantity\nShelf,600,300,2\n\n\nDoor,400,800,1\n"), ',', KindPieces)
	assert.Len(t, result.Pieces, 2, "empty rows are skipped")

	result = ImportCSVFromReader(strings.NewReader("Label , Width , Height , Quantity\n , 600.5 , 300.25 , 2 \n"), ',', KindPieces)
	require.Len(t, result.Pieces, 1, "errors: %v", result.Errors)
	assert.Equal(t, "Piece 1", result.Pieces[0].Label)
	assert.Equal(t, 600.5, result.Pieces[0].Width)
	assert.Equal(t, 300.25, result.Pieces[0].Height)
}

// ─── File Import Tests ──────────────────────────────────────

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportCSV_SemicolonFile(t *testing.T) {
	path := writeFile(t, "pieces.csv", "Label;Width;Height;Quantity\nShelf;600;300;2\nDoor;400;800;1\n")
	result := ImportCSV(path, KindPieces)

	assert.Len(t, result.Pieces, 2, "errors: %v", result.Errors)
	assert.Contains(t, result.Warnings, "Detected semicolon delimiter")
}

func TestImportCSV_Errors(t *testing.T) {
	result := ImportCSV("/nonexistent/path/file.csv", KindPieces)
	assert.NotEmpty(t, result.Errors)

	result = ImportCSV(writeFile(t, "empty.csv", "  \n"), KindPieces)
	assert.Equal(t, []string{"File is empty"}, result.Errors)
}

func TestImportFile_DispatchesByExtension(t *testing.T) {
	result := ImportFile(writeFile(t, "stock.txt", "Label,Width,Height,Stock\nMDF,2440,1220,3\n"), KindPanels)
	require.Len(t, result.Panels, 1)
	assert.Equal(t, 3, result.Panels[0].StockQuantity)

	result = ImportFile(writeFile(t, "stock.dxf", ""), KindPanels)
	assert.Equal(t, []string{"DXF files can only hold pieces"}, result.Errors)
}

// ─── Excel Import Tests ────────────────────────────────────

func createTestExcel(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pieces.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, cell := range row {
			cellRef, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cellRef, cell))
		}
	}
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestImportExcel_Pieces(t *testing.T) {
	path := createTestExcel(t, [][]interface{}{
		{"Qty", "Name", "Height", "Width", "Grain"},
		{2, "Shelf", 300, 600, "H"},
		{1, "Door", 800, 400, "none"},
	})

	result := ImportFile(path, KindPieces)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Pieces, 2)
	assert.Equal(t, catalog.RawPiece{Label: "Shelf", Width: 600, Height: 300, Quantity: 2, Grain: "H"}, result.Pieces[0])
}

func TestImportExcel_Panels(t *testing.T) {
	path := createTestExcel(t, [][]interface{}{
		{"Panel", "Width", "Height", "Stock", "Price"},
		{"Birch", 2800, 2070, 5, 35.5},
	})

	result := ImportExcel(path, KindPanels)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Panels, 1)
	assert.Equal(t, 35.5, result.Panels[0].PricePerArea)
	assert.Equal(t, 5, result.Panels[0].StockQuantity)
}

func TestImportExcel_Errors(t *testing.T) {
	result := ImportExcel("/nonexistent/file.xlsx", KindPieces)
	assert.NotEmpty(t, result.Errors)

	path := createTestExcel(t, [][]interface{}{
		{"Label", "Width", "Height", "Quantity"},
		{"Shelf", "abc", 300, 2},
	})
	result = ImportExcel(path, KindPieces)
	assert.Equal(t, []string{"Row 2: Invalid width 'abc'"}, result.Errors)
}

// ─── DXF Import Tests ──────────────────────────────────────

func TestImportDXF_Rectangles(t *testing.T) {
	d := dxf.NewDrawing()
	// Two equal polylines merge into one piece.
	for _, x := range []float64{0, 1000} {
		_, err := d.LwPolyline(true, []float64{x, 0}, []float64{x + 600, 0}, []float64{x + 600, 300}, []float64{x, 300})
		require.NoError(t, err)
	}
	// A rectangle drawn from loose lines.
	corners := [][2]float64{{0, 500}, {400, 500}, {400, 1300}, {0, 1300}}
	for i := range corners {
		a, b := corners[i], corners[(i+1)%len(corners)]
		_, err := d.Line(a[0], a[1], 0, b[0], b[1], 0)
		require.NoError(t, err)
	}
	// An open chain is ignored.
	_, err := d.Line(2000, 0, 0, 2100, 0, 0)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "pieces.dxf")
	require.NoError(t, d.SaveAs(path))

	result := ImportDXF(path)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Pieces, 2)
	assert.Equal(t, 600.0, result.Pieces[0].Width)
	assert.Equal(t, 300.0, result.Pieces[0].Height)
	assert.Equal(t, 2, result.Pieces[0].Quantity)
	assert.Equal(t, 400.0, result.Pieces[1].Width)
	assert.Equal(t, 800.0, result.Pieces[1].Height)
	assert.Equal(t, 1, result.Pieces[1].Quantity)
}

func TestImportDXF_FileNotFound(t *testing.T) {
	result := ImportDXF("/nonexistent/file.dxf")
	assert.NotEmpty(t, result.Errors)
}

func TestIsRectangle(t *testing.T) {
	rect := []point{{0, 0}, {10, 0}, {10, 5}, {0, 5}}
	assert.True(t, isRectangle(rect, dxfTolerance))

	lShape := []point{{0, 0}, {10, 0}, {10, 5}, {5, 5}, {5, 10}, {0, 10}}
	assert.False(t, isRectangle(lShape, dxfTolerance))

	triangle := []point{{0, 0}, {10, 0}, {0, 10}}
	assert.False(t, isRectangle(triangle, dxfTolerance))
}
