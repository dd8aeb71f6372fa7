package api

import "encoding/json"

// Field はJIRAのフィールド定義（IDと表示名）を表します
type Field struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FieldIDs は同期に必要なJIRAフィールドIDの解決結果です
type FieldIDs struct {
	StoryPoints []string // ストーリーポイント系フィールド（複数存在しうる）
	EpicLink    string   // レガシーの 'Epic Link' フィールド
}

// JiraStatusCategory はJIRAのステータスカテゴリ（生データ）を表します
type JiraStatusCategory struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// JiraStatus はイシューのステータスを表します
type JiraStatus struct {
	Name           string             `json:"name"`
	StatusCategory JiraStatusCategory `json:"statusCategory"`
}

// JiraIssueType はイシュータイプを表します
type JiraIssueType struct {
	Name string `json:"name"`
}

// JiraSubtask はサブタスクへの参照を表します
type JiraSubtask struct {
	Key string `json:"key"`
}

// IssueFields はイシューのフィールド群を表します
// 既知のフィールドは型付きで、カスタムフィールドは Custom に生のJSONとして保持します
type IssueFields struct {
	Status    *JiraStatus    `json:"status"`
	IssueType *JiraIssueType `json:"issuetype"`
	Subtasks  []JiraSubtask  `json:"subtasks"`

	// フィールドID → 生のJSON値（customfield_XXXXX や duedate の参照用）
	Custom map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON は型付きフィールドに加えて全フィールドの生JSONを保持します
func (f *IssueFields) UnmarshalJSON(data []byte) error {
	type alias IssueFields
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = IssueFields(a)
	f.Custom = raw
	return nil
}

// Issue はJIRAのイシューを表します
type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// NumberField は指定フィールドIDの数値を返します（存在しない/数値でない場合は false）
func (i *Issue) NumberField(fieldID string) (float64, bool) {
	raw, ok := i.Fields.Custom[fieldID]
	if !ok || string(raw) == "null" {
		return 0, false
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// StringField は指定フィールドIDの文字列を返します（存在しない/文字列でない場合は false）
func (i *Issue) StringField(fieldID string) (string, bool) {
	raw, ok := i.Fields.Custom[fieldID]
	if !ok || string(raw) == "null" {
		return "", false
	}

	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}
