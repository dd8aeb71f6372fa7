package services

import (
	"math"
	"strings"

	"jiratosmartsheet/config"
	"jiratosmartsheet/models"
)

// percentEpsilon は書き込み要否判定の許容誤差（0..1スケール）です
const percentEpsilon = 0.000001

// mergeDecision はマージ結果とSmartsheetへの書き込み要否を表します
type mergeDecision struct {
	FinalPct    float64 // 0..100
	FinalStatus string
	StartFinal  string
	EndFinal    string

	WritePercent bool
	WriteStatus  bool
	WriteStart   bool
	WriteEnd     bool
}

// NeedsWrite はいずれかのセルに書き込みが必要かどうかを返します
func (d *mergeDecision) NeedsWrite() bool {
	return d.WritePercent || d.WriteStatus || d.WriteStart || d.WriteEnd
}

// mergeColumns はマージに関係するカラムの有無を表します
type mergeColumns struct {
	HasStatus bool
	HasStart  bool
	HasEnd    bool
}

// mergeRow は既存のシート値と新しく計算した値を保護ルールに従って統合します
//
// 保護ルール:
//   - PROTECT_EXISTING_NONZERO: 既存が非ゼロでJIRAが0%なら既存値を保持する
//   - "Blocked" ステータスは常に保持する（100%→Complete の強制よりも優先）
//   - FinalPct がちょうど100ならステータスを "Complete" に強制する
//   - PROTECT_EXISTING_DATES: シートが空欄でも日付を消さない
func mergeRow(cfg *config.Config, st models.RowState, prog models.ProgressResult,
	jiraStart, jiraEnd string, cols mergeColumns) (models.PreviewRow, mergeDecision) {

	// パーセントのマージ
	newPct := 0.0
	if prog.Fraction != nil {
		newPct = *prog.Fraction * 100.0
	}

	existingPct := 0.0
	if st.ExistingPercent != nil {
		existingPct = *st.ExistingPercent * 100.0
	}

	protected := false
	finalPct := newPct
	if cfg.ProtectExistingNonzero && st.ExistingPercent != nil && *st.ExistingPercent > 0 && newPct == 0 {
		protected = true
		finalPct = existingPct
	}

	// ステータスのマージ
	newStatus := prog.Category.Label()
	existingBlocked := strings.EqualFold(strings.TrimSpace(st.ExistingStatus), "blocked")

	finalStatus := newStatus
	switch {
	case existingBlocked:
		// Blocked は手動設定なので無条件に保持する
		finalStatus = st.ExistingStatus
	case finalPct == 100.0:
		finalStatus = models.StatusDone.Label()
	case protected && newStatus == models.StatusNotStarted.Label() && st.ExistingStatus != "":
		// 進捗保護が効いているのに "Not Started" へ戻さない
		finalStatus = st.ExistingStatus
	}

	// 日付のマージ（開始・終了それぞれ独立）
	startOld := firstNonEmpty(st.StartISO, jiraStart)
	endOld := firstNonEmpty(st.EndISO, jiraEnd)
	startFinal := mergeDate(cfg.ProtectExistingDates, st.StartISO, startOld)
	endFinal := mergeDate(cfg.ProtectExistingDates, st.EndISO, endOld)

	preview := models.PreviewRow{
		IssueKey:       st.IssueKey,
		Metric:         prog.Metric,
		Completed:      prog.Completed,
		Total:          prog.Total,
		ExistingPct:    existingPct,
		NewPct:         newPct,
		FinalPct:       finalPct,
		Protected:      protected,
		ExistingStatus: st.ExistingStatus,
		NewStatus:      newStatus,
		FinalStatus:    finalStatus,
		StartOld:       startOld,
		StartNew:       st.StartISO,
		StartFinal:     startFinal,
		EndOld:         endOld,
		EndNew:         st.EndISO,
		EndFinal:       endFinal,
	}

	decision := mergeDecision{
		FinalPct:    finalPct,
		FinalStatus: finalStatus,
		StartFinal:  startFinal,
		EndFinal:    endFinal,
	}

	// パーセントの書き込み要否
	// 算出根拠がない（Fraction が nil）の場合は「変化なし」として書き込まない
	if prog.Fraction != nil || protected {
		newVal := finalPct / 100.0
		if st.ExistingPercent == nil || math.Abs(*st.ExistingPercent-newVal) > percentEpsilon {
			decision.WritePercent = true
		}
	}

	// ステータスの書き込み要否（Blocked はシート上でも決して上書きしない）
	if cols.HasStatus && finalStatus != "" && !existingBlocked && st.ExistingStatus != finalStatus {
		decision.WriteStatus = true
	}

	// 日付の書き込み要否（最終値がシートの現在値と異なる場合のみ）
	if cols.HasStart && startFinal != st.StartISO && startFinal != "" {
		decision.WriteStart = true
	}
	if cols.HasEnd && endFinal != st.EndISO && endFinal != "" {
		decision.WriteEnd = true
	}

	return preview, decision
}

// mergeDate は1つの日付について最終値を決めます
// trackerDate はシート側から取り出した（JIRAへ送る候補の）日付です
func mergeDate(protectDates bool, trackerDate, existingDate string) string {
	if protectDates && trackerDate == "" {
		return existingDate
	}
	if trackerDate != "" {
		return trackerDate
	}
	return existingDate
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
