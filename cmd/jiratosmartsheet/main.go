package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"jiratosmartsheet/api"
	"jiratosmartsheet/config"
	"jiratosmartsheet/models"
	"jiratosmartsheet/services"
	"jiratosmartsheet/utils"
)

var (
	logLevel string
	dryRun   bool
)

// rootCmd はCLIのルートコマンドです
var rootCmd = &cobra.Command{
	Use:           "jiratosmartsheet",
	Short:         "JIRAの進捗をSmartsheetへ同期するツール",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// syncCmd は同期処理を実行します
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "JIRAの進捗・ステータス・日付をSmartsheetへ同期する",
	Long: `シートの各行からJIRAキーを読み取り、進捗率とステータスを計算して
Smartsheetへ書き戻します。

環境変数（.env ファイルからも読み込み可能）:
  JIRA_BASE_URL            JIRA URL (必須)
  JIRA_EMAIL               JIRA APIアカウントのメールアドレス (必須)
  JIRA_API_TOKEN           JIRA APIトークン (必須)
  SMARTSHEET_ACCESS_TOKEN  Smartsheetアクセストークン (必須)
  SS_SHEET_ID              対象シートID (必須)
  SS_JIRA_COL              JIRAキーカラム名 (デフォルト: Jira)
  SS_PROG_COL              進捗カラム名 (デフォルト: % Complete)
  SS_STATUS_COL            ステータスカラム名 (デフォルト: Status)
  SS_START_COL             開始日カラム名 (デフォルト: Start)
  SS_END_COL               終了日カラム名 (デフォルト: End)
  JIRA_START_FIELD         JIRA開始日フィールド (デフォルト: Start date)
  JIRA_END_FIELD           JIRA終了日フィールド (デフォルト: Due date)
  DRY_RUN                  書き込みを行わずプレビューのみ表示する
  PROTECT_EXISTING_NONZERO 既存の非ゼロ進捗を保護する (デフォルト: true)
  INCLUDE_SUBTASKS         サブタスクの完了割合を使用する (デフォルト: false)
  PROTECT_EXISTING_DATES   シート空欄時に日付を消さない (デフォルト: true)
  LOG_LEVEL                ログレベル (デフォルト: INFO)`,
	RunE: runSync,
}

// checkCmd はJIRA認証を確認します
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "JIRAの認証情報を確認する",
	RunE:  runCheck,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "ログレベルを上書きする (例: DEBUG)")
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "書き込みを行わずプレビューのみ表示する")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		utils.LogError("%v", err)
		os.Exit(1)
	}
}

// loadConfig は設定を読み込み、フラグによる上書きを適用します
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := utils.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("ログレベルが不正です: %w", err)
	}

	return cfg, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dryRun {
		cfg.DryRun = true
	}

	jiraClient := api.NewJiraClient(cfg)
	sheetClient := api.NewSmartsheetClient(cfg)
	syncService := services.NewSyncService(cfg, jiraClient, sheetClient)

	result, err := syncService.Run()
	if err != nil {
		return fmt.Errorf("同期処理に失敗しました: %w", err)
	}

	if cfg.DryRun {
		printPreview(result.Preview)
	} else {
		fmt.Printf("%d 行を更新しました。\n", result.UpdatedRows)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	jiraClient := api.NewJiraClient(cfg)
	if err := jiraClient.CheckAuth(); err != nil {
		return fmt.Errorf("JIRA認証エラー: %w", err)
	}

	fmt.Println("JIRA認証成功")
	return nil
}

// printPreview はドライラン結果を表形式で表示します
func printPreview(preview []models.PreviewRow) {
	sorted := make([]models.PreviewRow, len(preview))
	copy(sorted, preview)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Type != sorted[j].Type {
			return sorted[i].Type < sorted[j].Type
		}
		return sorted[i].IssueKey < sorted[j].IssueKey
	})

	fmt.Println("\nJira rows (existing → new → final) with protection:")
	header := fmt.Sprintf("%-18s %-7s %-9s %10s %10s %10s %10s %10s %9s",
		"Issue", "Type", "Metric", "Done", "Total", "Existing", "New", "Final", "Protected")
	fmt.Println(header)
	fmt.Println(strings.Repeat("-", len(header)))

	for _, r := range sorted {
		comp := fmt.Sprintf("%d", int(r.Completed))
		tot := fmt.Sprintf("%d", int(r.Total))
		if r.Metric == models.MetricPoints {
			comp = fmt.Sprintf("%.2f", r.Completed)
			tot = fmt.Sprintf("%.2f", r.Total)
		}

		fmt.Printf("%-18s %-7s %-9s %10s %10s %9.2f%% %9.2f%% %9.2f%% %9v\n",
			r.IssueKey, r.Type, r.Metric, comp, tot,
			r.ExistingPct, r.NewPct, r.FinalPct, r.Protected)
	}
}
