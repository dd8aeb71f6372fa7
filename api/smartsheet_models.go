package api

import "strings"

// Hyperlink はセルに設定されたハイパーリンクを表します
type Hyperlink struct {
	URL string `json:"url"`
}

// Cell はSmartsheetのセルを表します
// Value はカラム型によって数値・文字列・真偽値になりえます
type Cell struct {
	ColumnID     int64       `json:"columnId"`
	Value        interface{} `json:"value,omitempty"`
	DisplayValue string      `json:"displayValue,omitempty"`
	Hyperlink    *Hyperlink  `json:"hyperlink,omitempty"`
}

// Row はSmartsheetの行を表します
type Row struct {
	ID    int64  `json:"id"`
	Cells []Cell `json:"cells"`
}

// Column はSmartsheetのカラム定義を表します
type Column struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Sheet はSmartsheetのシート全体（カラム定義と全行）を表します
type Sheet struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// ColumnIDByTitle はタイトルでカラムを検索してIDを返します
// 大文字小文字と前後の空白は無視します。見つからない場合は (0, false)
func (s *Sheet) ColumnIDByTitle(title string) (int64, bool) {
	target := strings.ToLower(strings.TrimSpace(title))
	for _, c := range s.Columns {
		if strings.ToLower(strings.TrimSpace(c.Title)) == target {
			return c.ID, true
		}
	}
	return 0, false
}

// CellByColumn は指定カラムのセルを返します（存在しない場合は nil）
func (r *Row) CellByColumn(columnID int64) *Cell {
	for i := range r.Cells {
		if r.Cells[i].ColumnID == columnID {
			return &r.Cells[i]
		}
	}
	return nil
}

// CellUpdate は行更新リクエストの1セル分を表します
type CellUpdate struct {
	ColumnID int64       `json:"columnId"`
	Value    interface{} `json:"value"`
}

// RowUpdate は行更新リクエストの1行分を表します
type RowUpdate struct {
	ID    int64        `json:"id"`
	Cells []CellUpdate `json:"cells"`
}
