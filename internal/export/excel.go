// Package export はタスク一覧をxlsxスプレッドシートに変換するコーデックを提供する。
package export

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hitoshi/taskman/internal/model"
)

// sheetName は出力するシート名。
const sheetName = "Tasks"

// timestampFormat はタイムスタンプ列の表示形式。ロケール非依存の固定フォーマット。
const timestampFormat = "2006-01-02 15:04"

// headers はヘッダー行の列名。データ行も同じ列順で出力する。
var headers = []string{"ID", "Title", "Description", "Status", "Priority", "Created At", "Updated At", "Due Date"}

// ExcelWriter はタスク一覧をxlsxドキュメントのバイト列に変換する。
type ExcelWriter struct{}

// NewExcelWriter はExcelWriterを生成する。
func NewExcelWriter() *ExcelWriter {
	return &ExcelWriter{}
}

// Write はタスク一覧をシリアライズ済みxlsxドキュメントとして返す。
// 1行目は太字・グレー背景のヘッダー行。以降はタスクの順序どおりの1行1タスク。
// 省略可能フィールドは空文字列で出力し、列幅は内容に合わせて調整する。
// 空のタスク一覧でもヘッダー行のみの有効なドキュメントを返す。
func (w *ExcelWriter) Write(tasks []*model.Task) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// デフォルトシートをリネームして使用する
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"C0C0C0"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 列幅算出のため各列の最大文字数を追跡する
	widths := make([]int, len(headers))

	for col, name := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to build cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return nil, fmt.Errorf("failed to write header cell: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to style header cell: %w", err)
		}
		widths[col] = len(name)
	}

	for i, task := range tasks {
		values := []string{
			strconv.FormatInt(task.ID, 10),
			task.Title,
			task.Description,
			string(task.Status),
			string(task.Priority),
			formatTimestamp(&task.CreatedAt),
			formatTimestamp(&task.UpdatedAt),
			formatTimestamp(task.DueDate),
		}

		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("failed to build cell name: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write task cell: %w", err)
			}
			if len(value) > widths[col] {
				widths[col] = len(value)
			}
		}
	}

	// 列幅を内容に合わせる
	for col := range headers {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to build column name: %w", err)
		}
		if err := f.SetColWidth(sheetName, name, name, float64(widths[col])+2); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	return buf.Bytes(), nil
}

// formatTimestamp はタイムスタンプを固定フォーマットで文字列化する。
// nilの場合は空文字列を返す。
func formatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timestampFormat)
}
