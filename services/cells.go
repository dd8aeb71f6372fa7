package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"jiratosmartsheet/api"
)

// jiraKeyRe はJIRAキー（PROJECT-123形式）を検出します
var jiraKeyRe = regexp.MustCompile(`\b([A-Z][A-Z0-9]+-\d+)\b`)

// ExtractJiraKey はセルからJIRAキーを抽出します
// ハイパーリンクURLを優先し、次にセル値、表示値の順で検索します
// 見つからない場合は空文字を返します
func ExtractJiraKey(cell *api.Cell) string {
	if cell == nil {
		return ""
	}

	if cell.Hyperlink != nil {
		if m := jiraKeyRe.FindStringSubmatch(cell.Hyperlink.URL); m != nil {
			return m[1]
		}
	}

	if v, ok := cell.Value.(string); ok {
		if m := jiraKeyRe.FindStringSubmatch(v); m != nil {
			return m[1]
		}
	}
	if m := jiraKeyRe.FindStringSubmatch(cell.DisplayValue); m != nil {
		return m[1]
	}

	return ""
}

// ParsePercentCell はパーセントセルを 0..1 の小数として解釈します
// 数値セルはそのまま、'25%' のような表示値は 100 で割って返します
// 解釈できない場合は nil を返します（エラーにはしない）
func ParsePercentCell(cell *api.Cell) *float64 {
	if cell == nil {
		return nil
	}

	if v, ok := cell.Value.(float64); ok {
		return &v
	}

	dv := strings.TrimSpace(cell.DisplayValue)
	if strings.HasSuffix(dv, "%") {
		s := strings.TrimSpace(strings.TrimSuffix(dv, "%"))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			f /= 100.0
			return &f
		}
	}

	return nil
}

// TextCellValue はセルのテキスト値を返します（値→表示値の順、どちらも無ければ空文字）
func TextCellValue(cell *api.Cell) string {
	if cell == nil {
		return ""
	}

	if v, ok := cell.Value.(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	if strings.TrimSpace(cell.DisplayValue) != "" {
		return cell.DisplayValue
	}
	return ""
}

// DateCellISO は日付らしいセルをISO形式（YYYY-MM-DD）の文字列にして返します
// セル値（Smartsheetは ISO-8601 を返す）を優先し、時刻部分は切り捨てます
// 表示値の MM/DD/YY・MM/DD/YYYY は世紀補完（70未満→20xx、以上→19xx）で変換します
// 解釈できない場合は空文字を返します
func DateCellISO(cell *api.Cell) string {
	if cell == nil {
		return ""
	}

	if v, ok := cell.Value.(string); ok && v != "" {
		s := strings.TrimSpace(v)
		if idx := strings.Index(s, "T"); idx >= 0 {
			s = s[:idx]
		}
		if len(s) == 10 && s[4] == '-' && s[7] == '-' {
			return s
		}
		return s // そのまま返してみる
	}

	dv := strings.TrimSpace(cell.DisplayValue)
	if dv == "" {
		return ""
	}

	if strings.Contains(dv, "/") && len(dv) >= 8 && len(dv) <= 10 {
		parts := strings.Split(dv, "/")
		if len(parts) == 3 {
			mm, dd, yy := parts[0], parts[1], parts[2]
			if len(yy) == 2 {
				if n, err := strconv.Atoi(yy); err == nil {
					if n < 70 {
						yy = "20" + yy
					} else {
						yy = "19" + yy
					}
				}
			}
			return fmt.Sprintf("%s-%s-%s", zfill(yy, 4), zfill(mm, 2), zfill(dd, 2))
		}
	}

	if strings.Contains(dv, "-") && len(dv) >= 10 {
		return dv[:10]
	}

	return ""
}

// zfill は文字列を指定幅までゼロ埋めします
func zfill(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// chunk はスライスを固定サイズのバッチに分割します（最後のバッチは小さくてよい）
func chunk[T any](items []T, n int) [][]T {
	if n <= 0 || len(items) == 0 {
		return nil
	}

	var batches [][]T
	for start := 0; start < len(items); start += n {
		end := start + n
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
