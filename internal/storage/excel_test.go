package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LJTian/JuventudHub/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var bogota = time.FixedZone("COT", -5*60*60)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, bogota)
}

func sampleArticles() []processor.Article {
	return []processor.Article{
		{Date: day(2024, 3, 5), Title: "Jóvenes marchan en Bogotá", Source: "Blu Radio", City: "Bogotá", URL: "https://a/1", Summary: "Cientos de jóvenes..."},
		{Date: day(2024, 3, 4), Title: "Estudiantes en paro", Source: "Pulzo", City: processor.CityUnidentified, URL: "https://b/2"},
	}
}

// writeSheet 直接用 excelize 写入任意表头与行，模拟旧版文件
func writeSheet(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestExcelStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "noticias.xlsx")
	s := NewExcelStore(path, bogota)
	ctx := context.Background()

	want := sampleArticles()
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExcelStoreAbsentFileIsEmpty(t *testing.T) {
	s := NewExcelStore(filepath.Join(t.TempDir(), "missing.xlsx"), bogota)
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExcelStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noticias.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a workbook"), 0o644))

	_, err := NewExcelStore(path, bogota).Load(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestExcelStoreMissingURLColumnIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noticias.xlsx")
	writeSheet(t, path, [][]interface{}{
		{"date", "title", "source"},
		{"2024-03-05", "Jóvenes", "Pulzo"},
	})

	_, err := NewExcelStore(path, bogota).Load(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestExcelStoreMissingCityColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noticias.xlsx")
	writeSheet(t, path, [][]interface{}{
		{"date", "title", "source", "url", "summary"},
		{"2024-03-05", "Jóvenes en Cali", "Pulzo", "https://p/1", ""},
	})

	got, err := NewExcelStore(path, bogota).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, processor.CityUnidentified, got[0].City)
	assert.Equal(t, "https://p/1", got[0].URL)
}

func TestExcelStoreLegacyHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noticias.xlsx")
	writeSheet(t, path, [][]interface{}{
		{"Fecha", "Título", "Fuente", "Ciudad", "URL", "Resumen"},
		{"2024-03-05", "Niños en Medellín", "Infobae", "Sin identificar", "https://i/1", "Resumen corto"},
		{"2024-03-04", "Sin enlace", "Infobae", "Cali", "", ""},
	})

	got, err := NewExcelStore(path, bogota).Load(context.Background())
	require.NoError(t, err)
	// 没有 url 的行被丢弃
	require.Len(t, got, 1)
	assert.Equal(t, processor.Article{
		Date:    day(2024, 3, 5),
		Title:   "Niños en Medellín",
		Source:  "Infobae",
		City:    processor.CityUnidentified,
		URL:     "https://i/1",
		Summary: "Resumen corto",
	}, got[0])
}

func TestExcelStoreKeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noticias.xlsx")
	s := NewExcelStore(path, bogota)
	ctx := context.Background()

	first := sampleArticles()[:1]
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, sampleArticles()))

	backup, err := NewExcelStore(path+".bak", bogota).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, backup)

	current, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, current, 2)

	// 临时文件不应残留
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestExcelStoreSaveFailureLeavesFileIntact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noticias.xlsx")
	s := NewExcelStore(path, bogota)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleArticles()))

	// 父路径是普通文件，Save 必然失败
	blocked := NewExcelStore(filepath.Join(path, "nested.xlsx"), bogota)
	err := blocked.Save(ctx, sampleArticles())
	assert.ErrorIs(t, err, ErrPersist)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleArticles(), got)
}

func TestExcelStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewExcelStore(filepath.Join(t.TempDir(), "x.xlsx"), bogota).Save(ctx, nil)
	assert.ErrorIs(t, err, ErrPersist)
}

func TestWriteWorkbookHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, sampleArticles()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "2024-03-05", rows[1][0])
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-03-05", day(2024, 3, 5), true},
		{"2024-03-05 10:11:12", day(2024, 3, 5), true},
		{"03-05-24", day(2024, 3, 5), true},
		{"45356", day(2024, 3, 5), true},
		{"", time.Time{}, false},
		{"ayer", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseDate(tt.in, bogota)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExcelStoreKeepsUnrecognisedDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noticias.xlsx")
	writeSheet(t, path, [][]interface{}{
		{"fecha", "titulo", "fuente", "url"},
		{"2024/05/01", "Jóvenes", "Pulzo", "https://x/1"},
	})
	s := NewExcelStore(path, bogota)
	ctx := context.Background()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Date.IsZero())
	assert.Equal(t, "2024/05/01", got[0].DateText)

	require.NoError(t, s.Save(ctx, got))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024/05/01", rows[1][0])

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestExcelStoreKeepsURLVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noticias.xlsx")
	writeSheet(t, path, [][]interface{}{
		{"date", "title", "source", "city", "url", "summary"},
		{"2024-03-05", "Jóvenes", "Pulzo", "Cali", "https://x/1 ", ""},
		{"2024-03-05", "Sin enlace", "Pulzo", "Cali", "   ", ""},
	})

	got, err := NewExcelStore(path, bogota).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://x/1 ", got[0].URL)
}
