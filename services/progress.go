package services

import (
	"fmt"
	"strings"

	"jiratosmartsheet/api"
	"jiratosmartsheet/models"
	"jiratosmartsheet/utils"
)

// JiraAPI は同期処理が必要とするJIRAクライアントの操作を表します
type JiraAPI interface {
	CheckAuth() error
	ResolveFieldIDs() (api.FieldIDs, error)
	ResolveConfiguredField(nameOrID string) (string, error)
	SearchAll(jql string, fields []string) ([]api.Issue, error)
	GetIssue(key string, fields []string) (*api.Issue, error)
	GetIssueDates(key, startFieldID, endFieldID string) (string, string, error)
	UpdateIssueDateFields(key, startFieldID, endFieldID, startValue, endValue string) error
}

// SmartsheetAPI は同期処理が必要とするSmartsheetクライアントの操作を表します
type SmartsheetAPI interface {
	GetSheet(sheetID int64) (*api.Sheet, error)
	UpdateRows(sheetID int64, rows []api.RowUpdate) error
}

// ProgressService はJIRAイシューの進捗率を計算します
// キャッシュは1回の同期実行の間だけ有効で、挿入後は読み取り専用です
type ProgressService struct {
	jira            JiraAPI
	storyPointIDs   []string
	includeSubtasks bool

	epicCache map[string]models.ProgressResult
	typeCache map[string]string
}

// NewProgressService は新しい進捗計算サービスを作成します
func NewProgressService(jira JiraAPI, storyPointIDs []string, includeSubtasks bool) *ProgressService {
	return &ProgressService{
		jira:            jira,
		storyPointIDs:   storyPointIDs,
		includeSubtasks: includeSubtasks,
		epicCache:       make(map[string]models.ProgressResult),
		typeCache:       make(map[string]string),
	}
}

// IssueType はイシュータイプ名（小文字）を返します。キーごとにキャッシュします
func (p *ProgressService) IssueType(key string) (string, error) {
	if t, ok := p.typeCache[key]; ok {
		return t, nil
	}

	issue, err := p.jira.GetIssue(key, []string{"issuetype"})
	if err != nil {
		return "", err
	}

	t := ""
	if issue.Fields.IssueType != nil {
		t = lowerTrim(issue.Fields.IssueType.Name)
	}
	p.typeCache[key] = t
	return t, nil
}

// EpicProgress はエピックの進捗を計算します。エピックごとにキャッシュします
//
// エピック自体のステータスカテゴリがDoneの場合は、子イシューの状態に
// 関わらず 1.0 を返します（子を照会しないショートサーキット）
func (p *ProgressService) EpicProgress(key string) (models.ProgressResult, error) {
	if r, ok := p.epicCache[key]; ok {
		return r, nil
	}

	r, err := p.computeEpicProgress(key)
	if err != nil {
		return models.ProgressResult{}, err
	}
	p.epicCache[key] = r
	return r, nil
}

func (p *ProgressService) computeEpicProgress(key string) (models.ProgressResult, error) {
	epic, err := p.jira.GetIssue(key, []string{"status"})
	if err != nil {
		return models.ProgressResult{}, err
	}

	category, rawStatus := statusOf(epic)
	result := models.ProgressResult{
		Metric:    models.MetricCount,
		Category:  category,
		RawStatus: rawStatus,
	}

	if category == models.StatusDone {
		result.Fraction = floatPtr(1.0)
		return result, nil
	}

	children, err := p.epicChildren(key)
	if err != nil {
		return models.ProgressResult{}, err
	}
	if len(children) == 0 {
		utils.LogDebug("エピック %s に子イシューがありません", key)
		return result, nil
	}

	var totalSP, doneSP float64
	anySP := false
	doneCnt := 0

	for i := range children {
		child := &children[i]
		childDone := isDone(child)

		if sp, ok := p.storyPoints(child); ok {
			anySP = true
			totalSP += sp
			if childDone {
				doneSP += sp
			}
		}
		if childDone {
			doneCnt++
		}
	}

	totalCnt := len(children)

	if anySP && totalSP > 0 {
		result.Metric = models.MetricPoints
		result.Completed = doneSP
		result.Total = totalSP
		result.Fraction = floatPtr(clamp01(doneSP / totalSP))
		return result, nil
	}

	result.Metric = models.MetricCount
	result.Completed = float64(doneCnt)
	result.Total = float64(totalCnt)
	result.Fraction = floatPtr(clamp01(float64(doneCnt) / float64(totalCnt)))
	return result, nil
}

// epicChildren はエピックの子イシューを取得します
// parentEpic を優先し、空なら旧式の 'Epic Link' にフォールバックします
func (p *ProgressService) epicChildren(key string) ([]api.Issue, error) {
	fields := append([]string{"status"}, p.storyPointIDs...)

	queries := []string{
		fmt.Sprintf(`parentEpic = "%s" AND issuetype in standardIssueTypes()`, key),
		fmt.Sprintf(`"Epic Link" = "%s" AND issuetype in standardIssueTypes()`, key),
	}

	for _, jql := range queries {
		issues, err := p.jira.SearchAll(jql, fields)
		if err != nil {
			return nil, err
		}
		if len(issues) > 0 {
			return issues, nil
		}
	}
	return nil, nil
}

// StoryProgress はストーリー（非エピック）の進捗を計算します
//
// デフォルトは二値（Done = 1.0、それ以外 = 0.0）。includeSubtasks が
// 有効でサブタスクが存在する場合は完了割合を返します
func (p *ProgressService) StoryProgress(key string) (models.ProgressResult, error) {
	fields := []string{"status"}
	if p.includeSubtasks {
		fields = append(fields, "subtasks")
	}

	issue, err := p.jira.GetIssue(key, fields)
	if err != nil {
		return models.ProgressResult{}, err
	}

	category, rawStatus := statusOf(issue)
	result := models.ProgressResult{
		Metric:    models.MetricStory,
		Category:  category,
		RawStatus: rawStatus,
		Total:     1,
	}

	if category == models.StatusDone {
		result.Completed = 1
		result.Fraction = floatPtr(1.0)
		return result, nil
	}

	if !p.includeSubtasks || len(issue.Fields.Subtasks) == 0 {
		result.Fraction = floatPtr(0.0)
		return result, nil
	}

	done := 0
	for _, sub := range issue.Fields.Subtasks {
		si, err := p.jira.GetIssue(sub.Key, []string{"status"})
		if err != nil {
			return models.ProgressResult{}, err
		}
		if isDone(si) {
			done++
		}
	}

	total := len(issue.Fields.Subtasks)
	result.Metric = models.MetricSubtasks
	result.Completed = float64(done)
	result.Total = float64(total)
	result.Fraction = floatPtr(float64(done) / float64(total))
	return result, nil
}

// storyPoints は最初に値が見つかったストーリーポイントフィールドの数値を返します
func (p *ProgressService) storyPoints(issue *api.Issue) (float64, bool) {
	for _, id := range p.storyPointIDs {
		if v, ok := issue.NumberField(id); ok {
			return v, true
		}
	}
	return 0, false
}

// statusOf はイシューの正規化済みステータスカテゴリと生のステータス名を返します
func statusOf(issue *api.Issue) (models.StatusCategory, string) {
	if issue.Fields.Status == nil {
		return models.StatusNotStarted, ""
	}
	cat := issue.Fields.Status.StatusCategory
	return models.NormalizeStatusCategory(cat.Key, cat.Name), issue.Fields.Status.Name
}

// isDone はステータスカテゴリがDoneかどうかを返します
func isDone(issue *api.Issue) bool {
	c, _ := statusOf(issue)
	return c == models.StatusDone
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func floatPtr(v float64) *float64 {
	return &v
}
