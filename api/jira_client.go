package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"jiratosmartsheet/config"
)

// ErrIssueNotFound はJIRAイシューが存在しない（削除済み等）ことを表します
// 同期処理ではこのエラーの行だけをスキップし、処理を継続します
var ErrIssueNotFound = errors.New("JIRAイシューが見つかりません")

// searchPageSize はJQL検索の1ページあたりの取得件数です
const searchPageSize = 100

// JiraClient はJIRA APIとのやり取りを処理します
type JiraClient struct {
	config *config.Config
	client *http.Client
}

// NewJiraClient は新しいJIRAクライアントを作成します
func NewJiraClient(cfg *config.Config) *JiraClient {
	return &JiraClient{
		config: cfg,
		client: &http.Client{},
	}
}

// get はGETリクエストを実行し、レスポンスをvにデコードします
func (j *JiraClient) get(path string, v interface{}) error {
	reqURL := fmt.Sprintf("%s/rest/api/2%s", j.config.JiraBaseURL, path)

	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.SetBasicAuth(j.config.JiraEmail, j.config.JiraAPIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrIssueNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("APIリクエスト失敗 (status %d): %s", resp.StatusCode, string(body))
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("レスポンス解析エラー: %w", err)
		}
	}
	return nil
}

// put はJSONボディ付きのPUTリクエストを実行します
func (j *JiraClient) put(path string, body interface{}) error {
	reqURL := fmt.Sprintf("%s/rest/api/2%s", j.config.JiraBaseURL, path)

	payloadBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("JSONエンコードエラー: %w", err)
	}

	req, err := http.NewRequest("PUT", reqURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.SetBasicAuth(j.config.JiraEmail, j.config.JiraAPIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrIssueNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("APIリクエスト失敗 (status %d): %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// CheckAuth はJIRA認証をチェックします
func (j *JiraClient) CheckAuth() error {
	if err := j.get("/myself", nil); err != nil {
		return fmt.Errorf("認証失敗: %w", err)
	}
	return nil
}

// Fields は全フィールド定義（IDと表示名）を取得します
func (j *JiraClient) Fields() ([]Field, error) {
	var fields []Field
	if err := j.get("/field", &fields); err != nil {
		return nil, fmt.Errorf("フィールド一覧取得エラー: %w", err)
	}
	return fields, nil
}

// ResolveFieldIDs はストーリーポイント系フィールドと 'Epic Link' フィールドのIDを解決します
func (j *JiraClient) ResolveFieldIDs() (FieldIDs, error) {
	fields, err := j.Fields()
	if err != nil {
		return FieldIDs{}, err
	}

	var ids FieldIDs
	for _, f := range fields {
		name := strings.ToLower(strings.TrimSpace(f.Name))
		if name == "story points" || name == "story point estimate" {
			ids.StoryPoints = append(ids.StoryPoints, f.ID)
		}
		if name == "epic link" {
			ids.EpicLink = f.ID
		}
	}
	return ids, nil
}

// ResolveConfiguredField は設定値（表示名・組み込みID・customfield_XXXXX）から
// フィールドIDを解決します。解決できない場合は空文字を返します（エラーにはしない）
func (j *JiraClient) ResolveConfiguredField(nameOrID string) (string, error) {
	nameOrID = strings.TrimSpace(nameOrID)
	if nameOrID == "" {
		return "", nil
	}

	// 生のフィールドIDはそのまま通す
	if strings.HasPrefix(nameOrID, "customfield_") || strings.EqualFold(nameOrID, "duedate") {
		return strings.ToLower(nameOrID), nil
	}

	fields, err := j.Fields()
	if err != nil {
		return "", err
	}

	target := strings.ToLower(nameOrID)
	for _, f := range fields {
		if strings.ToLower(strings.TrimSpace(f.Name)) == target {
			return f.ID, nil
		}
	}
	return "", nil
}

// searchResponse はJQL検索レスポンスの1ページを表します
type searchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// SearchAll はJQLを実行し、ページネーションを辿って全件を返します
func (j *JiraClient) SearchAll(jql string, fields []string) ([]Issue, error) {
	var all []Issue

	startAt := 0
	for {
		path := fmt.Sprintf("/search?jql=%s&fields=%s&startAt=%d&maxResults=%d",
			url.QueryEscape(jql), url.QueryEscape(strings.Join(fields, ",")), startAt, searchPageSize)

		var page searchResponse
		if err := j.get(path, &page); err != nil {
			return nil, fmt.Errorf("JQL検索エラー: %w", err)
		}

		all = append(all, page.Issues...)

		if len(page.Issues) == 0 || len(all) >= page.Total {
			break
		}
		startAt += len(page.Issues)
	}

	return all, nil
}

// GetIssue はイシューを取得します。指定フィールドのみを要求します
// 存在しない場合は ErrIssueNotFound を返します
func (j *JiraClient) GetIssue(key string, fields []string) (*Issue, error) {
	path := fmt.Sprintf("/issue/%s", key)
	if len(fields) > 0 {
		path += "?fields=" + url.QueryEscape(strings.Join(fields, ","))
	}

	var issue Issue
	if err := j.get(path, &issue); err != nil {
		if errors.Is(err, ErrIssueNotFound) {
			return nil, fmt.Errorf("イシュー %s: %w", key, ErrIssueNotFound)
		}
		return nil, fmt.Errorf("イシュー %s 取得エラー: %w", key, err)
	}
	return &issue, nil
}

// GetIssueDates はイシューの開始日・終了日をISO形式（YYYY-MM-DD）で取得します
// フィールドが未解決（空文字）の場合、その日付は空で返します
func (j *JiraClient) GetIssueDates(key, startFieldID, endFieldID string) (string, string, error) {
	var fields []string
	if startFieldID != "" {
		fields = append(fields, startFieldID)
	}
	if endFieldID != "" {
		fields = append(fields, endFieldID)
	}
	if len(fields) == 0 {
		return "", "", nil
	}

	issue, err := j.GetIssue(key, fields)
	if err != nil {
		return "", "", err
	}

	start := isoDateOf(issue, startFieldID)
	end := isoDateOf(issue, endFieldID)
	return start, end, nil
}

// isoDateOf はフィールド値をYYYY-MM-DDに切り詰めます
func isoDateOf(issue *Issue, fieldID string) string {
	if fieldID == "" {
		return ""
	}
	v, ok := issue.StringField(fieldID)
	if !ok || v == "" {
		return ""
	}
	if idx := strings.Index(v, "T"); idx >= 0 {
		v = v[:idx]
	}
	return v
}

// UpdateIssueDateFields はイシューの日付フィールドを更新します
// 値が空のフィールドは送信しません（暗黙にクリアしない）
func (j *JiraClient) UpdateIssueDateFields(key, startFieldID, endFieldID, startValue, endValue string) error {
	fields := make(map[string]interface{})
	if startFieldID != "" && startValue != "" {
		fields[startFieldID] = startValue
	}
	if endFieldID != "" && endValue != "" {
		fields[endFieldID] = endValue
	}
	if len(fields) == 0 {
		return nil
	}

	payload := map[string]interface{}{"fields": fields}
	if err := j.put(fmt.Sprintf("/issue/%s", key), payload); err != nil {
		return fmt.Errorf("イシュー %s の日付更新エラー: %w", key, err)
	}
	return nil
}
