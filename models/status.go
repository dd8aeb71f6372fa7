package models

import "strings"

// StatusCategory はJIRAのステータスカテゴリを3値に正規化したものです
type StatusCategory int

const (
	// StatusNotStarted は未着手を表します
	StatusNotStarted StatusCategory = iota
	// StatusInProgress は進行中を表します
	StatusInProgress
	// StatusDone は完了を表します
	StatusDone
)

// NormalizeStatusCategory はJIRAのステータスカテゴリのキーと名前から
// 正規化されたカテゴリを導出します。全域関数であり、認識できない入力は
// StatusNotStarted にマップされます
func NormalizeStatusCategory(rawKey, rawName string) StatusCategory {
	switch strings.ToLower(rawKey) {
	case "new":
		return StatusNotStarted
	case "indeterminate":
		return StatusInProgress
	case "done":
		return StatusDone
	}

	// キーが未知の場合は名前から推測する
	name := strings.ToLower(rawName)
	if strings.Contains(name, "progress") {
		return StatusInProgress
	}
	if strings.Contains(name, "done") || strings.Contains(name, "complete") {
		return StatusDone
	}
	return StatusNotStarted
}

// Label はSmartsheetのステータス欄に表示するラベルを返します
func (c StatusCategory) Label() string {
	switch c {
	case StatusDone:
		return "Complete"
	case StatusInProgress:
		return "In Progress"
	default:
		return "Not Started"
	}
}
