package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jiratosmartsheet/api"
	"jiratosmartsheet/config"
	"jiratosmartsheet/models"
)

const (
	colJira   = int64(1001)
	colProg   = int64(1002)
	colStatus = int64(1003)
	colStart  = int64(1004)
	colEnd    = int64(1005)
)

func syncTestConfig() *config.Config {
	return &config.Config{
		JiraBaseURL:            "https://test.atlassian.net",
		JiraEmail:              "test@example.com",
		JiraAPIToken:           "token",
		SmartsheetToken:        "ss-token",
		SheetID:                12345,
		JiraColTitle:           "Jira",
		ProgressColTitle:       "% Complete",
		StatusColTitle:         "Status",
		StartColTitle:          "Start",
		EndColTitle:            "End",
		JiraStartField:         "customfield_10020",
		JiraEndField:           "duedate",
		ProtectExistingNonzero: true,
		ProtectExistingDates:   true,
	}
}

func testSheet(rows ...api.Row) *api.Sheet {
	return &api.Sheet{
		ID:   12345,
		Name: "Plan",
		Columns: []api.Column{
			{ID: colJira, Title: "Jira"},
			{ID: colProg, Title: "% Complete"},
			{ID: colStatus, Title: "Status"},
			{ID: colStart, Title: "Start"},
			{ID: colEnd, Title: "End"},
		},
		Rows: rows,
	}
}

func sheetRow(id int64, key string, percent interface{}, status string) api.Row {
	cells := []api.Cell{
		{ColumnID: colJira, Value: key, Hyperlink: &api.Hyperlink{URL: "https://test.atlassian.net/browse/" + key}},
	}
	if percent != nil {
		cells = append(cells, api.Cell{ColumnID: colProg, Value: percent})
	}
	if status != "" {
		cells = append(cells, api.Cell{ColumnID: colStatus, Value: status})
	}
	return api.Row{ID: id, Cells: cells}
}

func TestSyncRun(t *testing.T) {
	t.Run("done story updates percent and status", func(t *testing.T) {
		jira := newFakeJira()
		jira.issues["STORY-1"] = makeIssue("STORY-1", "done", "Done", "Story")

		sheet := &fakeSheet{sheet: testSheet(sheetRow(10, "STORY-1", 0.5, "In Progress"))}

		svc := NewSyncService(syncTestConfig(), jira, sheet)
		result, err := svc.Run()
		require.NoError(t, err)

		assert.Equal(t, 1, result.UpdatedRows)
		require.Len(t, sheet.batches, 1)
		require.Len(t, sheet.batches[0], 1)

		update := sheet.batches[0][0]
		assert.Equal(t, int64(10), update.ID)
		require.Len(t, update.Cells, 2)
		assert.Equal(t, api.CellUpdate{ColumnID: colProg, Value: 1.0}, update.Cells[0])
		assert.Equal(t, api.CellUpdate{ColumnID: colStatus, Value: "Complete"}, update.Cells[1])
	})

	t.Run("missing issue is skipped without aborting", func(t *testing.T) {
		jira := newFakeJira()
		jira.issues["STORY-1"] = makeIssue("STORY-1", "done", "Done", "Story")
		// GONE-1 はJIRA側に存在しない

		sheet := &fakeSheet{sheet: testSheet(
			sheetRow(10, "GONE-1", 0.5, ""),
			sheetRow(11, "STORY-1", nil, ""),
		)}

		svc := NewSyncService(syncTestConfig(), jira, sheet)
		result, err := svc.Run()
		require.NoError(t, err)

		require.Len(t, result.Preview, 1, "404の行はプレビューにも出さない")
		assert.Equal(t, "STORY-1", result.Preview[0].IssueKey)
	})

	t.Run("rows without a jira key are ignored", func(t *testing.T) {
		jira := newFakeJira()
		sheet := &fakeSheet{sheet: testSheet(api.Row{ID: 10, Cells: []api.Cell{
			{ColumnID: colJira, Value: "just a note"},
		}})}

		svc := NewSyncService(syncTestConfig(), jira, sheet)
		result, err := svc.Run()
		require.NoError(t, err)
		assert.Empty(t, result.Preview)
	})

	t.Run("dry run writes nothing", func(t *testing.T) {
		cfg := syncTestConfig()
		cfg.DryRun = true

		jira := newFakeJira()
		jira.issues["STORY-1"] = makeIssue("STORY-1", "done", "Done", "Story")
		sheet := &fakeSheet{sheet: testSheet(sheetRow(10, "STORY-1", 0.5, "In Progress"))}

		svc := NewSyncService(cfg, jira, sheet)
		result, err := svc.Run()
		require.NoError(t, err)

		assert.Equal(t, 0, result.UpdatedRows)
		assert.Empty(t, sheet.batches)
		assert.Empty(t, jira.dateUpdates)
		require.Len(t, result.Preview, 1)
		assert.InDelta(t, 100.0, result.Preview[0].FinalPct, 1e-9)
	})

	t.Run("epic progress is computed once per key", func(t *testing.T) {
		jira := newFakeJira()
		jira.issues["EPIC-1"] = makeIssue("EPIC-1", "indeterminate", "In Progress", "Epic")
		jira.searches[parentEpicJQL("EPIC-1")] = []api.Issue{
			*makeIssue("ST-1", "done", "Done", "Story"),
			*makeIssue("ST-2", "new", "To Do", "Story"),
		}

		// 同じエピックを参照する2行
		sheet := &fakeSheet{sheet: testSheet(
			sheetRow(10, "EPIC-1", nil, ""),
			sheetRow(11, "EPIC-1", nil, ""),
		)}

		svc := NewSyncService(syncTestConfig(), jira, sheet)
		result, err := svc.Run()
		require.NoError(t, err)

		require.Len(t, result.Preview, 2)
		assert.Equal(t, 1, jira.countSearches("EPIC-1"))
		assert.InDelta(t, 50.0, result.Preview[0].FinalPct, 1e-9)
	})

	t.Run("sheet date is pushed to jira when it differs", func(t *testing.T) {
		jira := newFakeJira()
		jira.issues["STORY-1"] = makeIssue("STORY-1", "indeterminate", "In Progress", "Story")
		jira.dates["STORY-1"] = [2]string{"2024-01-01", ""}

		row := sheetRow(10, "STORY-1", 0.5, "")
		row.Cells = append(row.Cells, api.Cell{ColumnID: colStart, Value: "2024-03-01"})
		sheet := &fakeSheet{sheet: testSheet(row)}

		svc := NewSyncService(syncTestConfig(), jira, sheet)
		_, err := svc.Run()
		require.NoError(t, err)

		require.Len(t, jira.dateUpdates, 1)
		assert.Equal(t, dateUpdate{
			Key:        "STORY-1",
			StartField: "customfield_10020",
			EndField:   "duedate",
			StartValue: "2024-03-01",
			EndValue:   "",
		}, jira.dateUpdates[0])
	})

	t.Run("preview reflects protection", func(t *testing.T) {
		jira := newFakeJira()
		jira.issues["STORY-1"] = makeIssue("STORY-1", "new", "To Do", "Story")

		sheet := &fakeSheet{sheet: testSheet(sheetRow(10, "STORY-1", 0.8, "In Progress"))}

		svc := NewSyncService(syncTestConfig(), jira, sheet)
		result, err := svc.Run()
		require.NoError(t, err)

		require.Len(t, result.Preview, 1)
		want := models.PreviewRow{
			IssueKey:       "STORY-1",
			Type:           "story",
			Metric:         models.MetricStory,
			Completed:      0,
			Total:          1,
			ExistingPct:    80.0,
			NewPct:         0.0,
			FinalPct:       80.0,
			Protected:      true,
			ExistingStatus: "In Progress",
			NewStatus:      "Not Started",
			FinalStatus:    "In Progress",
		}
		if diff := cmp.Diff(want, result.Preview[0]); diff != "" {
			t.Errorf("preview mismatch (-want +got):\n%s", diff)
		}

		assert.Empty(t, sheet.batches, "保護された行は書き込み不要")
	})

	t.Run("required column missing is fatal", func(t *testing.T) {
		cfg := syncTestConfig()
		cfg.JiraColTitle = "Nonexistent"

		svc := NewSyncService(cfg, newFakeJira(), &fakeSheet{sheet: testSheet()})
		_, err := svc.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Nonexistent")
	})

	t.Run("missing optional status column disables the feature", func(t *testing.T) {
		jira := newFakeJira()
		jira.issues["STORY-1"] = makeIssue("STORY-1", "done", "Done", "Story")

		sheet := &fakeSheet{sheet: &api.Sheet{
			ID: 12345,
			Columns: []api.Column{
				{ID: colJira, Title: "Jira"},
				{ID: colProg, Title: "% Complete"},
			},
			Rows: []api.Row{sheetRow(10, "STORY-1", 0.5, "")},
		}}

		svc := NewSyncService(syncTestConfig(), jira, sheet)
		result, err := svc.Run()
		require.NoError(t, err)

		require.Len(t, sheet.batches, 1)
		update := sheet.batches[0][0]
		require.Len(t, update.Cells, 1, "ステータスセルは書き込まれない")
		assert.Equal(t, colProg, update.Cells[0].ColumnID)
		assert.Equal(t, 1, result.UpdatedRows)
	})
}
