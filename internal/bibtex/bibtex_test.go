// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibtex

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bibsync/pkg/types"
)

const sampleBib = `@article{lecun2015,
  title = {Deep learning},
  author = {LeCun, Yann and Bengio, Yoshua},
  journal = {Nature},
  year = {2015}
}

@inproceedings{vaswani2017,
  title = {Attention is all you need},
  author = {Vaswani, Ashish},
  booktitle = {NIPS}
}
`

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleBib))
	require.NoError(t, err)

	assert.Equal(t, []string{"lecun2015", "vaswani2017"}, doc.Order)
	require.Contains(t, doc.Entries, "lecun2015")

	e := doc.Entries["lecun2015"]
	assert.Equal(t, "article", e.Type)
	assert.Equal(t, "lecun2015", e.Key)
	assert.Equal(t, "Deep learning", e.Value("title"))
	assert.Equal(t, "LeCun, Yann and Bengio, Yoshua", e.Value("author"))
	assert.Equal(t, "2015", e.Value("year"))

	assert.Equal(t, "inproceedings", doc.Entries["vaswani2017"].Type)
	assert.Empty(t, doc.Duplicates)
}

func TestParse_Duplicates(t *testing.T) {
	in := sampleBib + `
@misc{lecun2015,
  title = {Another}
}
`
	doc, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"lecun2015"}, doc.Duplicates)
	assert.Equal(t, "Deep learning", doc.Entries["lecun2015"].Value("title"))
	assert.Len(t, doc.Order, 2)
}

func TestParse_ExpandsConcatenationsAndMacros(t *testing.T) {
	in := `@string{pre = "Proc. "}
@string{conf = pre # {ICML}}

@inproceedings{icml2020,
  note = "foo" # "bar",
  booktitle = pre # "ICML",
  series = conf,
  month = jan,
  year = 2020,
  title = {Plain # title}
}
`
	doc, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Contains(t, doc.Entries, "icml2020")

	e := doc.Entries["icml2020"]
	assert.Equal(t, "foobar", e.Value("note"))
	assert.Equal(t, "Proc. ICML", e.Value("booktitle"))
	assert.Equal(t, "Proc. ICML", e.Value("series"))
	assert.Equal(t, "January", e.Value("month"))
	assert.Equal(t, "2020", e.Value("year"))
	assert.Equal(t, "Plain # title", e.Value("title"))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc, Format{}))
	assert.Contains(t, buf.String(), "note = {foobar}")
	assert.Contains(t, buf.String(), "booktitle = {Proc. ICML}")
}

func TestParse_UndefinedMacro(t *testing.T) {
	_, err := Parse(strings.NewReader("@article{k,\n  journal = jacm\n}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undefined string macro "jacm"`)
}

func TestExpandValues(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"literal values untouched",
			`@misc{k, title = {A}, note = "B", year = 2020}`,
			`@misc{k, title = {A}, note = "B", year = 2020}`},
		{"concatenation",
			`@misc{k, note = "foo" # "bar", year = 2020}`,
			`@misc{k, note = {foobar}, year = 2020}`},
		{"month macro",
			`@misc(k, month = Mar)`,
			`@misc(k, month = {March})`},
		{"comment left alone",
			`@comment{ a # b } @misc{k, note = "x" # {y}}`,
			`@comment{ a # b } @misc{k, note = {xy}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandValues(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrite(t *testing.T) {
	doc := &Document{
		Order: []string{"b", "a"},
		Entries: map[string]types.Entry{
			"a": types.NewEntry("a", "article", map[string]string{
				"title": "Deep learning", "author": "LeCun, Yann", "doi": "10.1038/nature14539",
				"keywords": "ml", "year": "2015",
			}),
			"b": types.NewEntry("b", "", map[string]string{"title": `Say "hi"`}),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc, Format{Delimiter: types.DelimiterBraces}))

	want := `@misc{b,
  title = {Say "hi"}
}

@article{a,
  author = {LeCun, Yann},
  title = {Deep learning},
  year = {2015},
  doi = {10.1038/nature14539},
  keywords = {ml}
}
`
	assert.Equal(t, want, buf.String())
}

func TestWrite_QuotesTabsSorted(t *testing.T) {
	doc := &Document{
		Order: []string{"b", "a"},
		Entries: map[string]types.Entry{
			"a": types.NewEntry("a", "misc", map[string]string{"title": "Alpha"}),
			"b": types.NewEntry("b", "misc", map[string]string{"title": `Say "hi"`}),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc, Format{Delimiter: types.DelimiterQuotes, TabIndent: true, SortByKey: true}))

	want := "@misc{a,\n\ttitle = \"Alpha\"\n}\n\n@misc{b,\n\ttitle = {Say \"hi\"}\n}\n"
	assert.Equal(t, want, buf.String())
}

func TestRoundTrip(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleBib))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc, Format{}))

	again, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc.Entries, again.Entries)
	assert.Equal(t, doc.Order, again.Order)
}

func TestUpdate(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleBib))
	require.NoError(t, err)

	e := doc.Entries["lecun2015"].Clone()
	e.Set("doi", "10.1038/nature14539")
	doc.Update(map[string]types.Entry{
		"lecun2015": e,
		"zz":        types.NewEntry("zz", "misc", nil),
	})

	assert.Equal(t, "10.1038/nature14539", doc.Entries["lecun2015"].Value("doi"))
	assert.Equal(t, []string{"lecun2015", "vaswani2017", "zz"}, doc.Order)
}
