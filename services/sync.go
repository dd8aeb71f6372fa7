package services

import (
	"errors"
	"fmt"
	"time"

	"jiratosmartsheet/api"
	"jiratosmartsheet/config"
	"jiratosmartsheet/models"
	"jiratosmartsheet/utils"
)

// updateBatchSize は行更新1回あたりの最大行数です
const updateBatchSize = 400

// SyncService はJIRAの進捗をSmartsheetへ同期する処理全体を担当します
type SyncService struct {
	config *config.Config
	jira   JiraAPI
	sheet  SmartsheetAPI
}

// NewSyncService は新しい同期サービスを作成します
func NewSyncService(cfg *config.Config, jira JiraAPI, sheet SmartsheetAPI) *SyncService {
	return &SyncService{
		config: cfg,
		jira:   jira,
		sheet:  sheet,
	}
}

// Run は同期処理全体を実行します
func (s *SyncService) Run() (*models.SyncResult, error) {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "同期処理")

	// JIRA認証チェック
	if err := s.jira.CheckAuth(); err != nil {
		return nil, fmt.Errorf("JIRA認証エラー: %w", err)
	}
	utils.LogInfo("JIRA認証成功")

	// フィールドIDの解決
	fieldIDs, err := s.jira.ResolveFieldIDs()
	if err != nil {
		return nil, fmt.Errorf("フィールドID解決エラー: %w", err)
	}
	utils.LogInfo("ストーリーポイントフィールド: %v, Epic Link: %s", fieldIDs.StoryPoints, fieldIDs.EpicLink)

	startFieldID, err := s.jira.ResolveConfiguredField(s.config.JiraStartField)
	if err != nil {
		return nil, fmt.Errorf("開始日フィールド解決エラー: %w", err)
	}
	endFieldID, err := s.jira.ResolveConfiguredField(s.config.JiraEndField)
	if err != nil {
		return nil, fmt.Errorf("終了日フィールド解決エラー: %w", err)
	}
	utils.LogInfo("JIRA日付フィールド: start=%q end=%q", startFieldID, endFieldID)

	// シートの取得とカラム解決
	sheet, err := s.sheet.GetSheet(s.config.SheetID)
	if err != nil {
		return nil, fmt.Errorf("シート取得エラー: %w", err)
	}

	jiraCol, ok := sheet.ColumnIDByTitle(s.config.JiraColTitle)
	if !ok {
		return nil, fmt.Errorf("必須カラムが見つかりません: %s", s.config.JiraColTitle)
	}
	progCol, ok := sheet.ColumnIDByTitle(s.config.ProgressColTitle)
	if !ok {
		return nil, fmt.Errorf("必須カラムが見つかりません: %s", s.config.ProgressColTitle)
	}

	// オプションカラム（無ければその機能を無効化するだけ）
	cols := mergeColumns{}
	statusCol, hasStatus := sheet.ColumnIDByTitle(s.config.StatusColTitle)
	cols.HasStatus = hasStatus
	if hasStatus {
		utils.LogInfo("ステータスカラムを使用します: %s", s.config.StatusColTitle)
	} else {
		utils.LogInfo("ステータスカラムが見つからないためステータス更新をスキップします (検索名: %s)", s.config.StatusColTitle)
	}

	startCol, hasStart := sheet.ColumnIDByTitle(s.config.StartColTitle)
	cols.HasStart = hasStart
	if !hasStart {
		utils.LogInfo("開始日カラムが見つからないため開始日更新をスキップします (検索名: %s)", s.config.StartColTitle)
	}
	endCol, hasEnd := sheet.ColumnIDByTitle(s.config.EndColTitle)
	cols.HasEnd = hasEnd
	if !hasEnd {
		utils.LogInfo("終了日カラムが見つからないため終了日更新をスキップします (検索名: %s)", s.config.EndColTitle)
	}

	// 行のスキャン（JIRAキーを持つ行だけが対象）
	rowStates := s.scanRows(sheet, jiraCol, progCol, statusCol, hasStatus, startCol, hasStart, endCol, hasEnd)
	utils.LogInfo("シート %d から %d 件のJIRAキーを検出しました", s.config.SheetID, len(rowStates))

	progress := NewProgressService(s.jira, fieldIDs.StoryPoints, s.config.IncludeSubtasks)

	var updates []api.RowUpdate
	var preview []models.PreviewRow

	for _, st := range rowStates {
		issueType, err := progress.IssueType(st.IssueKey)
		if err != nil {
			if errors.Is(err, api.ErrIssueNotFound) {
				utils.LogWarn("JIRAイシュー %s が見つかりません (削除済みの可能性)。スキップします", st.IssueKey)
				continue
			}
			return nil, fmt.Errorf("イシュータイプ取得エラー: %w", err)
		}

		var prog models.ProgressResult
		rowType := "story"
		if issueType == "epic" {
			rowType = "epic"
			prog, err = progress.EpicProgress(st.IssueKey)
		} else {
			prog, err = progress.StoryProgress(st.IssueKey)
		}
		if err != nil {
			return nil, fmt.Errorf("進捗計算エラー (%s): %w", st.IssueKey, err)
		}

		// JIRA側の日付（プレビューとフォールバック用）
		jiraStart, jiraEnd := "", ""
		if startFieldID != "" || endFieldID != "" {
			jiraStart, jiraEnd, err = s.jira.GetIssueDates(st.IssueKey, startFieldID, endFieldID)
			if err != nil {
				return nil, fmt.Errorf("日付取得エラー (%s): %w", st.IssueKey, err)
			}
		}

		row, decision := mergeRow(s.config, st, prog, jiraStart, jiraEnd, cols)
		row.Type = rowType
		preview = append(preview, row)

		utils.LogDebug("行 %d (%s): existing=%.2f%% new=%.2f%% final=%.2f%% protected=%v status=%q",
			st.RowID, st.IssueKey, row.ExistingPct, row.NewPct, row.FinalPct, row.Protected, row.FinalStatus)

		if s.config.DryRun {
			continue
		}

		// シートへの書き込みセルを組み立てる
		if decision.NeedsWrite() {
			var cells []api.CellUpdate
			if decision.WritePercent {
				cells = append(cells, api.CellUpdate{ColumnID: progCol, Value: roundPercent(decision.FinalPct / 100.0)})
			}
			if decision.WriteStatus {
				cells = append(cells, api.CellUpdate{ColumnID: statusCol, Value: decision.FinalStatus})
			}
			if decision.WriteStart {
				cells = append(cells, api.CellUpdate{ColumnID: startCol, Value: decision.StartFinal})
			}
			if decision.WriteEnd {
				cells = append(cells, api.CellUpdate{ColumnID: endCol, Value: decision.EndFinal})
			}
			updates = append(updates, api.RowUpdate{ID: st.RowID, Cells: cells})
		}

		// JIRAへの日付プッシュ（シート側の日付が優先ソース）
		if err := s.pushDates(st, startFieldID, endFieldID, jiraStart, jiraEnd); err != nil {
			return nil, err
		}
	}

	// バッチ書き込み
	updatedRows := 0
	if !s.config.DryRun && len(updates) > 0 {
		for _, batch := range chunk(updates, updateBatchSize) {
			if err := s.sheet.UpdateRows(s.config.SheetID, batch); err != nil {
				return nil, fmt.Errorf("行更新エラー: %w", err)
			}
		}
		updatedRows = len(updates)
		utils.LogInfo("%d 行を更新しました", updatedRows)
	}

	return &models.SyncResult{UpdatedRows: updatedRows, Preview: preview}, nil
}

// scanRows はシートの全行からJIRAキーと既存値を取り出します
func (s *SyncService) scanRows(sheet *api.Sheet, jiraCol, progCol, statusCol int64, hasStatus bool,
	startCol int64, hasStart bool, endCol int64, hasEnd bool) []models.RowState {

	var states []models.RowState
	for i := range sheet.Rows {
		row := &sheet.Rows[i]

		key := ExtractJiraKey(row.CellByColumn(jiraCol))
		if key == "" {
			continue
		}

		st := models.RowState{
			RowID:           row.ID,
			IssueKey:        key,
			ExistingPercent: ParsePercentCell(row.CellByColumn(progCol)),
		}
		if hasStatus {
			st.ExistingStatus = TextCellValue(row.CellByColumn(statusCol))
		}
		if hasStart {
			st.StartISO = DateCellISO(row.CellByColumn(startCol))
		}
		if hasEnd {
			st.EndISO = DateCellISO(row.CellByColumn(endCol))
		}

		states = append(states, st)
	}
	return states
}

// pushDates はシート側の日付をJIRAへ送ります
// 値が存在し、かつJIRAの現在値と異なる場合のみ送信します
func (s *SyncService) pushDates(st models.RowState, startFieldID, endFieldID, jiraStart, jiraEnd string) error {
	pushStart := ""
	if startFieldID != "" && st.StartISO != "" && st.StartISO != jiraStart {
		pushStart = st.StartISO
	}
	pushEnd := ""
	if endFieldID != "" && st.EndISO != "" && st.EndISO != jiraEnd {
		pushEnd = st.EndISO
	}
	if pushStart == "" && pushEnd == "" {
		return nil
	}

	if err := s.jira.UpdateIssueDateFields(st.IssueKey, startFieldID, endFieldID, pushStart, pushEnd); err != nil {
		return fmt.Errorf("JIRA日付更新エラー (%s): %w", st.IssueKey, err)
	}
	utils.LogDebug("JIRA %s の日付を更新しました: start=%q end=%q", st.IssueKey, pushStart, pushEnd)
	return nil
}

// roundPercent はSmartsheetのパーセントカラム向けに小数第6位で丸めます
func roundPercent(v float64) float64 {
	const scale = 1e6
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}
