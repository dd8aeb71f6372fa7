package models

// Metric は進捗率の算出方法を表します
const (
	// MetricPoints はストーリーポイントの重み付けによる算出です
	MetricPoints = "points"
	// MetricCount は子イシューの件数による算出です
	MetricCount = "count"
	// MetricStory はストーリー単体の二値（完了/未完了）による算出です
	MetricStory = "story"
	// MetricSubtasks はサブタスクの完了割合による算出です
	MetricSubtasks = "subtasks"
)

// ProgressResult は1つのイシューに対する進捗計算の結果を表します
// Fraction が nil の場合は算出根拠がない（子イシューゼロのエピック等）ことを示します
type ProgressResult struct {
	Fraction  *float64 // 0..1
	Metric    string
	Completed float64
	Total     float64
	Category  StatusCategory
	RawStatus string // JIRA上の生のステータス名（診断用）
}

// RowState はSmartsheetの1行とJIRAキーの対応を表します
// 1回の同期処理の中でのみ使用され、実行後は破棄されます
type RowState struct {
	RowID           int64
	IssueKey        string
	ExistingPercent *float64 // 0..1（セルが空または解釈不能の場合は nil）
	ExistingStatus  string
	StartISO        string // シート上の開始日（YYYY-MM-DD、空は未設定）
	EndISO          string // シート上の終了日（YYYY-MM-DD、空は未設定）
}

// PreviewRow は1行分の同期結果プレビューを表します
// ドライランかどうかに関わらず、処理された全行について生成されます
type PreviewRow struct {
	IssueKey string
	Type     string // "epic" または "story"
	Metric   string

	Completed float64
	Total     float64

	// パーセントは 0..100 のスケール
	ExistingPct float64
	NewPct      float64
	FinalPct    float64
	Protected   bool

	ExistingStatus string
	NewStatus      string
	FinalStatus    string

	StartOld   string
	StartNew   string
	StartFinal string
	EndOld     string
	EndNew     string
	EndFinal   string
}

// SyncResult は同期処理全体の結果を表します
type SyncResult struct {
	UpdatedRows int
	Preview     []PreviewRow
}
