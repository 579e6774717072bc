package sheets

import (
	"fmt"
	"strings"

	"github.com/daviddao/crosslist/internal/platform"
	"github.com/daviddao/crosslist/internal/types"
	sh "google.golang.org/api/sheets/v4"
)

// Tracking sheet layout. Row 1 is the header; data starts on row 2.
// Platform columns sit at platform.Column() and the sold flag follows the
// last platform.
const (
	TrackingIDColumn = 0
	NameColumn       = 1

	firstDataRow = 2
	sheetTitle   = "ID管理"

	// SeedCount is how many tracking IDs `sheet init` seeds.
	SeedCount = 999
)

// SoldColumn is the zero-based column of the sold flag.
func SoldColumn() int {
	last := 0
	for _, p := range platform.All() {
		if p.Column() > last {
			last = p.Column()
		}
	}
	return last + 1
}

// ColumnLetter converts a zero-based column index to A1 letters.
func ColumnLetter(col int) string {
	var b []byte
	for col >= 0 {
		b = append([]byte{byte('A' + col%26)}, b...)
		col = col/26 - 1
	}
	return string(b)
}

// Cell returns the A1 address of a data row's column.
func Cell(col, index int) string {
	return fmt.Sprintf("%s%d", ColumnLetter(col), index+firstDataRow)
}

// SoldCell returns the A1 address of a data row's sold flag.
func SoldCell(index int) string {
	return Cell(SoldColumn(), index)
}

// DataRange covers every data row from the tracking ID to the sold flag.
func DataRange() string {
	return fmt.Sprintf("A%d:%s", firstDataRow, ColumnLetter(SoldColumn()))
}

// TrackingIDRange covers the tracking ID column of every data row.
func TrackingIDRange() string {
	col := ColumnLetter(TrackingIDColumn)
	return fmt.Sprintf("%s%d:%s", col, firstDataRow, col)
}

// SeedRange is where `sheet init` writes the initial tracking IDs.
func SeedRange() string {
	col := ColumnLetter(TrackingIDColumn)
	return fmt.Sprintf("%s%d:%s%d", col, firstDataRow, col, firstDataRow+SeedCount-1)
}

// SeedTrackingIDs returns c00001..c00999 as a single column.
func SeedTrackingIDs() [][]string {
	ids := make([]string, SeedCount)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%05d", i+1)
	}
	return [][]string{ids}
}

// ParseRows converts DataRange values into tracking rows. Sheets drops
// trailing empty cells, so short rows are treated as empty.
func ParseRows(values [][]string) []types.TrackingRow {
	rows := make([]types.TrackingRow, len(values))
	for i, v := range values {
		row := types.TrackingRow{
			Index:      i,
			TrackingID: cellAt(v, TrackingIDColumn),
			ItemIDs:    make(map[string]string),
			Sold:       strings.EqualFold(cellAt(v, SoldColumn()), "TRUE"),
		}
		for _, p := range platform.All() {
			if id := cellAt(v, p.Column()); id != "" {
				row.ItemIDs[p.Code()] = id
			}
		}
		rows[i] = row
	}
	return rows
}

// IndexByItemID maps each non-empty item ID of p to its row index.
func IndexByItemID(rows []types.TrackingRow, p *platform.Platform) map[string]int {
	idx := make(map[string]int)
	for _, r := range rows {
		if id := r.ItemID(p.Code()); id != "" {
			idx[id] = r.Index
		}
	}
	return idx
}

// FindTrackingID returns the data row index of a tracking ID within a
// TrackingIDRange column.
func FindTrackingID(column []string, trackingID string) (int, bool) {
	for i, v := range column {
		if v == trackingID {
			return i, true
		}
	}
	return 0, false
}

func cellAt(row []string, col int) string {
	if col < len(row) {
		return strings.TrimSpace(row[col])
	}
	return ""
}

type rgb struct{ r, g, b float64 }

func (c rgb) color() *sh.Color { return &sh.Color{Red: c.r, Green: c.g, Blue: c.b} }

var white = rgb{1, 1, 1}

type columnStyle struct {
	index    int
	width    int64
	header   string
	fill     rgb
	headFill rgb
	headText *rgb
}

func columnStyles() []columnStyle {
	styles := []columnStyle{
		{TrackingIDColumn, 100, "TrackingID", rgb{0.8117, 0.8862, 0.9529}, rgb{0.2392, 0.5215, 0.7764}, &white},
		{NameColumn, 250, "商品名", rgb{0.8510, 0.9176, 0.8274}, rgb{0.2196, 0.4627, 0.1137}, &white},
	}
	for _, p := range platform.All() {
		s := columnStyle{index: p.Column(), width: 200}
		switch p {
		case platform.Mercari:
			s.header = "メルカリ商品ID"
			s.fill, s.headFill, s.headText = rgb{0.8509, 0.8235, 0.9137}, rgb{0.6, 0, 1}, &white
		case platform.YahooAuction:
			s.header = "ヤフオク!オークションID"
			s.fill, s.headFill = rgb{1, 0.9490, 0.8}, rgb{1, 1, 0}
		default:
			s.header = p.Name() + " ID"
			s.fill, s.headFill = rgb{0.95, 0.95, 0.95}, rgb{0.7, 0.7, 0.7}
		}
		styles = append(styles, s)
	}
	return styles
}

func columnRange(col int) *sh.GridRange {
	return &sh.GridRange{
		SheetId:          0,
		StartColumnIndex: int64(col),
		EndColumnIndex:   int64(col + 1),
		ForceSendFields:  []string{"SheetId"},
	}
}

func headerRange(col int) *sh.GridRange {
	r := columnRange(col)
	r.StartRowIndex = 0
	r.EndRowIndex = 1
	return r
}

func styleRequests(s columnStyle) []*sh.Request {
	header := s.header
	headFormat := &sh.CellFormat{BackgroundColor: s.headFill.color()}
	if s.headText != nil {
		headFormat.TextFormat = &sh.TextFormat{ForegroundColor: s.headText.color()}
	}
	return []*sh.Request{
		{UpdateDimensionProperties: &sh.UpdateDimensionPropertiesRequest{
			Range: &sh.DimensionRange{
				SheetId:         0,
				Dimension:       "COLUMNS",
				StartIndex:      int64(s.index),
				EndIndex:        int64(s.index + 1),
				ForceSendFields: []string{"SheetId"},
			},
			Properties: &sh.DimensionProperties{PixelSize: s.width},
			Fields:     "pixelSize",
		}},
		{RepeatCell: &sh.RepeatCellRequest{
			Range:  columnRange(s.index),
			Cell:   &sh.CellData{UserEnteredFormat: &sh.CellFormat{BackgroundColor: s.fill.color()}},
			Fields: "userEnteredFormat",
		}},
		{RepeatCell: &sh.RepeatCellRequest{
			Range: headerRange(s.index),
			Cell: &sh.CellData{
				UserEnteredValue:  &sh.ExtendedValue{StringValue: &header},
				UserEnteredFormat: headFormat,
			},
			Fields: "userEnteredFormat,userEnteredValue",
		}},
	}
}

func soldRequests() []*sh.Request {
	col := SoldColumn()
	unsold := false
	header := "売却済み"
	fill := rgb{0.8509, 0.8509, 0.8509}
	soldRows := columnRange(col)
	soldRows.StartRowIndex = 1

	return []*sh.Request{
		{UpdateDimensionProperties: &sh.UpdateDimensionPropertiesRequest{
			Range: &sh.DimensionRange{
				SheetId:         0,
				Dimension:       "COLUMNS",
				StartIndex:      int64(col),
				EndIndex:        int64(col + 1),
				ForceSendFields: []string{"SheetId"},
			},
			Properties: &sh.DimensionProperties{PixelSize: 100},
			Fields:     "pixelSize",
		}},
		{RepeatCell: &sh.RepeatCellRequest{
			Range: columnRange(col),
			Cell: &sh.CellData{
				UserEnteredFormat: &sh.CellFormat{BackgroundColor: fill.color()},
				UserEnteredValue:  &sh.ExtendedValue{BoolValue: &unsold},
			},
			Fields: "userEnteredFormat,userEnteredValue",
		}},
		{RepeatCell: &sh.RepeatCellRequest{
			Range: headerRange(col),
			Cell: &sh.CellData{
				UserEnteredFormat: &sh.CellFormat{
					BackgroundColor: rgb{0.6, 0.6, 0.6}.color(),
					TextFormat:      &sh.TextFormat{ForegroundColor: white.color()},
				},
				UserEnteredValue: &sh.ExtendedValue{StringValue: &header},
			},
			Fields: "userEnteredFormat,userEnteredValue",
		}},
		{AddConditionalFormatRule: &sh.AddConditionalFormatRuleRequest{
			Rule: &sh.ConditionalFormatRule{
				Ranges: []*sh.GridRange{soldRows},
				BooleanRule: &sh.BooleanRule{
					Condition: &sh.BooleanCondition{
						Type:   "TEXT_EQ",
						Values: []*sh.ConditionValue{{UserEnteredValue: "TRUE"}},
					},
					Format: &sh.CellFormat{BackgroundColor: rgb{0.9529, 0.9529, 0.9529}.color()},
				},
			},
		}},
	}
}

// InitRequests formats the first sheet as a tracking sheet. With clear, the
// tracked columns are deleted first.
func InitRequests(clear bool) []*sh.Request {
	var reqs []*sh.Request
	if clear {
		reqs = append(reqs, &sh.Request{DeleteRange: &sh.DeleteRangeRequest{
			Range: &sh.GridRange{
				SheetId:          0,
				StartColumnIndex: 0,
				EndColumnIndex:   int64(SoldColumn() + 1),
				ForceSendFields:  []string{"SheetId"},
			},
			ShiftDimension: "COLUMNS",
		}})
	}
	reqs = append(reqs, &sh.Request{UpdateSheetProperties: &sh.UpdateSheetPropertiesRequest{
		Properties: &sh.SheetProperties{SheetId: 0, Title: sheetTitle, ForceSendFields: []string{"SheetId"}},
		Fields:     "title",
	}})
	for _, s := range columnStyles() {
		reqs = append(reqs, styleRequests(s)...)
	}
	return append(reqs, soldRequests()...)
}
