package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"jiratosmartsheet/config"
)

// smartsheetBaseURL はSmartsheet API v2のベースURLです
const smartsheetBaseURL = "https://api.smartsheet.com/2.0"

// SmartsheetClient はSmartsheet APIとのやり取りを処理します
type SmartsheetClient struct {
	// BaseURL はテストで差し替えられるよう公開しています
	BaseURL string

	config *config.Config
	client *http.Client
}

// NewSmartsheetClient は新しいSmartsheetクライアントを作成します
func NewSmartsheetClient(cfg *config.Config) *SmartsheetClient {
	return &SmartsheetClient{
		BaseURL: smartsheetBaseURL,
		config:  cfg,
		client:  &http.Client{},
	}
}

// GetSheet はシート全体（カラム定義と全行）を取得します
func (s *SmartsheetClient) GetSheet(sheetID int64) (*Sheet, error) {
	reqURL := fmt.Sprintf("%s/sheets/%d", s.BaseURL, sheetID)

	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.SmartsheetToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("シート取得失敗 (status %d): %s", resp.StatusCode, string(body))
	}

	var sheet Sheet
	if err := json.NewDecoder(resp.Body).Decode(&sheet); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return &sheet, nil
}

// UpdateRows は行の一括更新を実行します（1バッチ分）
func (s *SmartsheetClient) UpdateRows(sheetID int64, rows []RowUpdate) error {
	if len(rows) == 0 {
		return nil
	}

	reqURL := fmt.Sprintf("%s/sheets/%d/rows", s.BaseURL, sheetID)

	payloadBytes, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("JSONエンコードエラー: %w", err)
	}

	req, err := http.NewRequest("PUT", reqURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.SmartsheetToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("行更新失敗 (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}
