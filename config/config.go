package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// JIRA API設定
	JiraBaseURL  string
	JiraEmail    string
	JiraAPIToken string

	// Smartsheet API設定
	SmartsheetToken string
	SheetID         int64

	// Smartsheetカラムタイトル
	JiraColTitle     string
	ProgressColTitle string
	StatusColTitle   string // オプション
	StartColTitle    string // オプション
	EndColTitle      string // オプション

	// JIRA日付フィールド（表示名、'duedate'、または 'customfield_XXXXX'）
	JiraStartField string
	JiraEndField   string

	// 動作設定
	DryRun                 bool
	ProtectExistingNonzero bool // JIRAが0%のとき既存の進捗を保護する
	IncludeSubtasks        bool
	ProtectExistingDates   bool // Smartsheetが空欄のときJIRAの日付を消さない

	// ログ設定
	LogLevel string
}

// LoadConfig は環境変数から設定を読み込みます
// ENV_FILE が指定されていればそのファイルを、なければ .env を読み込みます
func LoadConfig() (*Config, error) {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	config := &Config{
		JiraBaseURL:            strings.TrimRight(os.Getenv("JIRA_BASE_URL"), "/"),
		JiraEmail:              os.Getenv("JIRA_EMAIL"),
		JiraAPIToken:           os.Getenv("JIRA_API_TOKEN"),
		SmartsheetToken:        os.Getenv("SMARTSHEET_ACCESS_TOKEN"),
		JiraColTitle:           getEnvWithDefault("SS_JIRA_COL", "Jira"),
		ProgressColTitle:       getEnvWithDefault("SS_PROG_COL", "% Complete"),
		StatusColTitle:         getEnvWithDefault("SS_STATUS_COL", "Status"),
		StartColTitle:          getEnvWithDefault("SS_START_COL", "Start"),
		EndColTitle:            getEnvWithDefault("SS_END_COL", "End"),
		JiraStartField:         getEnvWithDefault("JIRA_START_FIELD", "Start date"),
		JiraEndField:           getEnvWithDefault("JIRA_END_FIELD", "Due date"),
		DryRun:                 getEnvAsBool("DRY_RUN", false),
		ProtectExistingNonzero: getEnvAsBool("PROTECT_EXISTING_NONZERO", true),
		IncludeSubtasks:        getEnvAsBool("INCLUDE_SUBTASKS", false),
		ProtectExistingDates:   getEnvAsBool("PROTECT_EXISTING_DATES", true),
		LogLevel:               getEnvWithDefault("LOG_LEVEL", "INFO"),
	}

	sheetIDStr := getEnvWithDefault("SS_SHEET_ID", "0")
	sheetID, err := strconv.ParseInt(sheetIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("SS_SHEET_ID は整数である必要があります (指定値: %q)", sheetIDStr)
	}
	config.SheetID = sheetID

	if config.JiraBaseURL == "" || config.JiraEmail == "" || config.JiraAPIToken == "" {
		return nil, fmt.Errorf("JIRA設定が不足しています: JIRA_BASE_URL, JIRA_EMAIL, JIRA_API_TOKEN")
	}
	if config.SmartsheetToken == "" || config.SheetID <= 0 {
		return nil, fmt.Errorf("Smartsheet設定が不足しています: SMARTSHEET_ACCESS_TOKEN, SS_SHEET_ID")
	}

	return config, nil
}

// デフォルト値付きで環境変数を取得
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// デフォルト値付きで環境変数を真偽値として取得
// 1/true/yes/y/on を真とみなします（大文字小文字は区別しない）
func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
