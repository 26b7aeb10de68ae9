// Package export 将求解结果导出为日历 CSV 或 PDF 表格
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/paiban/mito/pkg/scheduler"
)

// 日历导入使用的列名
const (
	HeaderSubject   = "Subject"
	HeaderStartDate = "Start Date"
	HeaderStartTime = "Start Time"
	HeaderEndDate   = "End Date"
	HeaderEndTime   = "End Time"
)

const (
	dateLayout = "01/02/2006"
	timeLayout = "15:04:05"
)

// CalendarHeaders 日历 CSV 的列
var CalendarHeaders = []string{HeaderSubject, HeaderStartDate, HeaderStartTime, HeaderEndDate, HeaderEndTime}

// Dataset 表格数据
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CalendarDataset 按槽位顺序将已绑定的分配转为日历行，主题为 "{人员} - {任务}"
func CalendarDataset(assignments []scheduler.Assignment) Dataset {
	data := Dataset{Headers: CalendarHeaders, Rows: make([]map[string]string, 0, len(assignments))}
	for _, a := range assignments {
		if !a.Bound() {
			continue
		}
		data.Rows = append(data.Rows, map[string]string{
			HeaderSubject:   fmt.Sprintf("%s - %s", a.PersonName, a.TaskName),
			HeaderStartDate: a.Start.Format(dateLayout),
			HeaderStartTime: a.Start.Format(timeLayout),
			HeaderEndDate:   a.End.Format(dateLayout),
			HeaderEndTime:   a.End.Format(timeLayout),
		})
	}
	return data
}

// CSVExporter 将表格数据渲染为 CSV
type CSVExporter struct{}

// NewCSVExporter 创建 CSV 导出器
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render 返回 CSV 字节
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := e.Write(buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write 将 CSV 写入 w，字段按 RFC 4180 转义
func (e *CSVExporter) Write(w io.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("csv requires at least one header")
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(data.Headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
