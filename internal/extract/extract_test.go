package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "Jio telecom results\n"},
		{Number: 3, Text: "Retail stores"},
	}

	got := Join(pages, "")
	assert.Equal(t, "--- PAGE 1 ---\nJio telecom results\n--- PAGE 3 ---\nRetail stores\n", got)

	custom := Join(pages[:1], "=== PAGE")
	assert.True(t, strings.HasPrefix(custom, "=== PAGE 1 ---\n"))
	assert.Empty(t, Join(nil, ""))
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("report.pdf"))
	assert.True(t, Supported("REPORT.PDF"))
	assert.True(t, Supported("/tmp/notes.txt"))
	assert.False(t, Supported("sheet.xlsx"))
	assert.False(t, Supported("noext"))
}

func TestFile_Text(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "annual.txt")
	content := "--- PAGE 1 ---\nJio platforms grew.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	got, err := File(path, DefaultDelimiter)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFile_Unsupported(t *testing.T) {
	_, err := File("book.epub", DefaultDelimiter)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadText_InvalidUTF8(t *testing.T) {
	_, err := ReadText(strings.NewReader("ok \xff\xfe"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UTF-8")
}

func TestPDF_MissingFile(t *testing.T) {
	_, err := PDF(filepath.Join(t.TempDir(), "absent.pdf"), DefaultDelimiter)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open PDF")
}

func TestPDF_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is plain text, not a pdf"), 0600))

	_, err := PDF(path, DefaultDelimiter)
	assert.Error(t, err)
}
