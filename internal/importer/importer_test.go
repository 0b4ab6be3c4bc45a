package importer

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// header that differs from the documented layout, so data lines are parsed.
const exportHeader = "title,url,username,password,note\n"

func TestParse_RejectsDocumentedHeader(t *testing.T) {
	cases := []string{
		"name,url,username,password,note\n",
		"NAME,URL,USERNAME,PASSWORD,NOTE\n",
		"   Name,Url,Username,Password,Note  \r\nsite,https://a,b,c,d\n",
		"\ufeffname,url,username,password,note\n",
	}
	for _, in := range cases {
		recs, err := Parse(strings.NewReader(in))
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, ErrImportFormat), "want ErrImportFormat, got %v", err)
		var fe *FormatError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, Header, fe.Header)
		assert.Nil(t, recs, "no partial records on rejection")
	}
}

func TestParse_OtherHeaderProceeds(t *testing.T) {
	cases := []string{
		"name,url,username,password\n",
		"name, url, username, password, note\n",
		"whatever\n",
		"\n",
	}
	for _, h := range cases {
		recs, err := Parse(strings.NewReader(h + "a,b,c,d,e\n"))
		require.NoError(t, err, "header %q", h)
		assert.Equal(t, []IncomingCredential{{"a", "b", "c", "d", "e"}}, recs)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	recs, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestParse_ShortLineIsPadded(t *testing.T) {
	recs, err := Parse(strings.NewReader(exportHeader + "a,b,c\n"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].Name)
	assert.Equal(t, "b", recs[0].URL)
	assert.Equal(t, "c", recs[0].Username)
	assert.Equal(t, "", recs[0].Password)
	assert.Equal(t, "", recs[0].Note)
}

func TestParse_QuotedFields(t *testing.T) {
	cases := []struct {
		line string
		want IncomingCredential
	}{
		{`"x","y","z","w","v"`, IncomingCredential{"x", "y", "z", "w", "v"}},
		{`""x"",""y"",""z"",""w"",""v""`, IncomingCredential{"x", "y", "z", "w", "v"}},
		{` "x" , " y ",z,  w ,"v"`, IncomingCredential{"x", "y", "z", "w", "v"}},
		{`"a"`, IncomingCredential{Name: "a"}},
		{`"unterminated,b,c,d,e`, IncomingCredential{`"unterminated`, "b", "c", "d", "e"}},
	}
	for _, tc := range cases {
		recs, err := Parse(strings.NewReader(exportHeader + tc.line + "\n"))
		require.NoError(t, err)
		require.Len(t, recs, 1, "line %q", tc.line)
		assert.Equal(t, tc.want, recs[0], "line %q", tc.line)
	}
}

func TestParse_NoteKeepsExtraCommas(t *testing.T) {
	recs, err := Parse(strings.NewReader(exportHeader + "a,b,c,d,note, with, commas\n"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "note, with, commas", recs[0].Note)
}

func TestParse_Deduplicates(t *testing.T) {
	in := exportHeader +
		"site,https://a.example,alice,pw,\n" +
		"\n" +
		"other,https://b.example,bob,pw2,n\n" +
		"site,https://a.example,alice,pw,\n" +
		`"site","https://a.example","alice","pw",""` + "\n"
	recs, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []IncomingCredential{
		{"site", "https://a.example", "alice", "pw", ""},
		{"other", "https://b.example", "bob", "pw2", "n"},
	}, recs)

	set, err := ParseSet(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, set, 2)
}

func TestParse_SkipsBlankLinesAndHandlesCRLF(t *testing.T) {
	in := "title,url\r\n\r\n   \r\na,b,c,d,e\r\n"
	recs, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []IncomingCredential{{"a", "b", "c", "d", "e"}}, recs)
}

func TestParse_KeepsNonUTF8Bytes(t *testing.T) {
	// Latin-1 export: 0xe4 is "ä" and not valid UTF-8 on its own.
	in := "h\nsite,u,us\xe9r,p\xe4ss,n\n"
	recs, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "p\xe4ss", recs[0].Password)
	assert.Equal(t, "us\xe9r", recs[0].Username)
	assert.NotContains(t, recs[0].Password, "\ufffd")
}

func TestParse_BOMStrippedBytesKept(t *testing.T) {
	in := "\ufeffh\nsite,u,user,p\xe4ss,n\n"
	recs, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "site", recs[0].Name)
	assert.Equal(t, "p\xe4ss", recs[0].Password)
}

func TestParse_LineTooLong(t *testing.T) {
	in := exportHeader + strings.Repeat("x", maxLineSize+1) + "\n"
	_, err := Parse(strings.NewReader(in))
	require.Error(t, err)
	assert.True(t, errors.Is(err, bufio.ErrTooLong))
	assert.False(t, errors.Is(err, ErrImportFormat))
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestParse_ReadError(t *testing.T) {
	boom := errors.New("disk gone")
	_, err := Parse(failingReader{err: boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
