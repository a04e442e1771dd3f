package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/JuventudHub/internal/processor"
	"github.com/xuri/excelize/v2"
)

// Columns 表格文件的列，顺序固定
var Columns = []string{"date", "title", "source", "city", "url", "summary"}

const dateLayout = "2006-01-02"

// legacyUnidentified 旧版文件中“未识别城市”的写法
const legacyUnidentified = "Sin identificar"

// headerAliases 兼容旧版西班牙语表头
var headerAliases = map[string]string{
	"date":    "date",
	"fecha":   "date",
	"title":   "title",
	"titulo":  "title",
	"título":  "title",
	"source":  "source",
	"fuente":  "source",
	"city":    "city",
	"ciudad":  "city",
	"url":     "url",
	"summary": "summary",
	"resumen": "summary",
}

// 读取单元格日期时依次尝试的格式；excelize 对日期型单元格默认输出 mm-dd-yy
var dateLayouts = []string{
	dateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01-02-06",
	"02/01/2006",
}

// ExcelStore 以 xlsx 文件保存全部文章
type ExcelStore struct {
	path string
	loc  *time.Location
}

func NewExcelStore(path string, loc *time.Location) *ExcelStore {
	if loc == nil {
		loc = time.Local
	}
	return &ExcelStore{path: path, loc: loc}
}

func (s *ExcelStore) Path() string {
	return s.path
}

// Load 文件不存在时返回空集合；文件损坏时返回 ErrCorrupt
func (s *ExcelStore) Load(ctx context.Context) ([]processor.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrCorrupt, s.path, err)
	}
	defer f.Close()

	return readWorkbook(f, s.loc)
}

// Save 先完整写入同目录下的临时文件，再原子替换；旧文件内容保留为 .bak
func (s *ExcelStore) Save(ctx context.Context, articles []processor.Article) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", ErrPersist, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".articles-*.xlsx")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrPersist, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := WriteWorkbook(tmp, articles); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync temp file: %v", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", ErrPersist, err)
	}

	if err := s.backup(); err != nil {
		return fmt.Errorf("%w: backup previous file: %v", ErrPersist, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrPersist, s.path, err)
	}
	committed = true
	return nil
}

// backup 把当前文件复制为 <path>.bak；当前文件不存在时什么也不做
func (s *ExcelStore) backup() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.WriteFile(s.path+".bak", data, 0o644)
}

// WriteWorkbook 按 Columns 的列顺序把文章写成 xlsx
func WriteWorkbook(w io.Writer, articles []processor.Article) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("new stream writer: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, a := range articles {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{formatDate(a), a.Title, a.Source, a.City, a.URL, a.Summary}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func readWorkbook(f *excelize.File, loc *time.Location) ([]processor.Article, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrCorrupt)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read rows: %v", ErrCorrupt, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	idx := make(map[string]int, len(Columns))
	for i, h := range rows[0] {
		key, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	if _, ok := idx["url"]; !ok {
		return nil, fmt.Errorf("%w: missing url column", ErrCorrupt)
	}

	out := make([]processor.Article, 0, len(rows)-1)
	for _, row := range rows[1:] {
		raw := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}
		cell := func(name string) string { return strings.TrimSpace(raw(name)) }

		// url 是记录身份，按原文保留；没有 url 的行直接丢弃
		u := raw("url")
		if strings.TrimSpace(u) == "" {
			continue
		}
		// 缺少 city 列的旧文件在读取时补齐
		city := cell("city")
		if city == "" || city == legacyUnidentified {
			city = processor.CityUnidentified
		}
		a := processor.Article{
			Title:   cell("title"),
			Source:  cell("source"),
			City:    city,
			URL:     u,
			Summary: cell("summary"),
		}
		dateText := cell("date")
		if d, ok := parseDate(dateText, loc); ok {
			a.Date = d
		} else {
			a.DateText = dateText
		}
		out = append(out, a)
	}
	return out, nil
}

func formatDate(a processor.Article) string {
	if a.Date.IsZero() {
		return a.DateText
	}
	return a.Date.Format(dateLayout)
}

// parseDate 无法识别时返回 false，调用方保留原文
func parseDate(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return dateIn(t, loc), true
		}
	}
	// 日期型单元格未格式化时是序列号
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(v, false); err == nil {
			return dateIn(t, loc), true
		}
	}
	return time.Time{}, false
}

func dateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
