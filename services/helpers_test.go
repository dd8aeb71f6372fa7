package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"jiratosmartsheet/api"
)

// fakeJira はテスト用のJIRAクライアント実装です
type fakeJira struct {
	issues   map[string]*api.Issue
	searches map[string][]api.Issue
	dates    map[string][2]string
	fieldIDs api.FieldIDs
	fields   []api.Field

	authErr     error
	getCalls    []string
	searchCalls []string
	dateUpdates []dateUpdate
}

type dateUpdate struct {
	Key        string
	StartField string
	EndField   string
	StartValue string
	EndValue   string
}

func newFakeJira() *fakeJira {
	return &fakeJira{
		issues:   make(map[string]*api.Issue),
		searches: make(map[string][]api.Issue),
		dates:    make(map[string][2]string),
	}
}

func (f *fakeJira) CheckAuth() error {
	return f.authErr
}

func (f *fakeJira) ResolveFieldIDs() (api.FieldIDs, error) {
	return f.fieldIDs, nil
}

func (f *fakeJira) ResolveConfiguredField(nameOrID string) (string, error) {
	nameOrID = strings.TrimSpace(nameOrID)
	if nameOrID == "" {
		return "", nil
	}
	if strings.HasPrefix(nameOrID, "customfield_") || strings.EqualFold(nameOrID, "duedate") {
		return strings.ToLower(nameOrID), nil
	}
	for _, fl := range f.fields {
		if strings.EqualFold(strings.TrimSpace(fl.Name), nameOrID) {
			return fl.ID, nil
		}
	}
	return "", nil
}

func (f *fakeJira) SearchAll(jql string, fields []string) ([]api.Issue, error) {
	f.searchCalls = append(f.searchCalls, jql)
	return f.searches[jql], nil
}

func (f *fakeJira) GetIssue(key string, fields []string) (*api.Issue, error) {
	f.getCalls = append(f.getCalls, key)
	issue, ok := f.issues[key]
	if !ok {
		return nil, fmt.Errorf("イシュー %s: %w", key, api.ErrIssueNotFound)
	}
	return issue, nil
}

func (f *fakeJira) GetIssueDates(key, startFieldID, endFieldID string) (string, string, error) {
	d := f.dates[key]
	start, end := "", ""
	if startFieldID != "" {
		start = d[0]
	}
	if endFieldID != "" {
		end = d[1]
	}
	return start, end, nil
}

func (f *fakeJira) UpdateIssueDateFields(key, startFieldID, endFieldID, startValue, endValue string) error {
	f.dateUpdates = append(f.dateUpdates, dateUpdate{
		Key:        key,
		StartField: startFieldID,
		EndField:   endFieldID,
		StartValue: startValue,
		EndValue:   endValue,
	})
	return nil
}

// countSearches は指定キーを含むJQL検索の回数を数えます
func (f *fakeJira) countSearches(key string) int {
	n := 0
	for _, jql := range f.searchCalls {
		if strings.Contains(jql, key) {
			n++
		}
	}
	return n
}

// fakeSheet はテスト用のSmartsheetクライアント実装です
type fakeSheet struct {
	sheet   *api.Sheet
	batches [][]api.RowUpdate
}

func (f *fakeSheet) GetSheet(sheetID int64) (*api.Sheet, error) {
	return f.sheet, nil
}

func (f *fakeSheet) UpdateRows(sheetID int64, rows []api.RowUpdate) error {
	batch := make([]api.RowUpdate, len(rows))
	copy(batch, rows)
	f.batches = append(f.batches, batch)
	return nil
}

// makeIssue は指定のステータスカテゴリとイシュータイプを持つイシューを作ります
func makeIssue(key, categoryKey, categoryName, issueType string) *api.Issue {
	return &api.Issue{
		Key: key,
		Fields: api.IssueFields{
			Status: &api.JiraStatus{
				Name:           categoryName,
				StatusCategory: api.JiraStatusCategory{Key: categoryKey, Name: categoryName},
			},
			IssueType: &api.JiraIssueType{Name: issueType},
		},
	}
}

// withStoryPoints はイシューにストーリーポイントを設定します
func withStoryPoints(issue *api.Issue, fieldID string, points float64) *api.Issue {
	if issue.Fields.Custom == nil {
		issue.Fields.Custom = make(map[string]json.RawMessage)
	}
	raw, _ := json.Marshal(points)
	issue.Fields.Custom[fieldID] = raw
	return issue
}

// parentEpicJQL / epicLinkJQL は進捗計算が発行するJQLを再現します
func parentEpicJQL(key string) string {
	return fmt.Sprintf(`parentEpic = "%s" AND issuetype in standardIssueTypes()`, key)
}

func epicLinkJQL(key string) string {
	return fmt.Sprintf(`"Epic Link" = "%s" AND issuetype in standardIssueTypes()`, key)
}
