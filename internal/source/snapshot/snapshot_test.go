package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/jobimport/internal/source"
)

func TestWriteThenRead(t *testing.T) {
	fetched := time.Date(2024, 11, 2, 8, 0, 0, 0, time.UTC)
	in := []*source.Vacancy{
		{SourceID: "3", TitleUz: "Oshpaz", Raw: json.RawMessage(`{"id":3}`)},
		nil,
		{SourceID: "1", TitleUz: "Sotuvchi", StatusCode: 1, Raw: json.RawMessage(`{"id":1,"filial":{"region":{"name_uz":"Andijon viloyati"}}}`)},
		{SourceID: "2", TitleUz: "Haydovchi", StatusCode: 2},
	}

	var buf bytes.Buffer
	n, err := Write(&buf, "osonish", fetched, in)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rd, err := Read(&buf, 2)
	require.NoError(t, err)
	assert.Equal(t, "osonish", rd.Name())
	assert.Equal(t, 3, rd.Len())

	p1, err := rd.FetchList(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, p1.HasMore)
	assert.Equal(t, []source.ListItem{{SourceID: "1", StatusCode: 1}, {SourceID: "2", StatusCode: 2}}, p1.Items)

	p2, err := rd.FetchList(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, p2.HasMore)
	assert.Len(t, p2.Items, 1)

	v, err := rd.FetchDetail(context.Background(), "1")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.JSONEq(t, `{"id":1,"filial":{"region":{"name_uz":"Andijon viloyati"}}}`, string(v.Raw))

	missing, err := rd.FetchDetail(context.Background(), "42")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReadSkipsBadLines(t *testing.T) {
	in := strings.Join([]string{
		`{"source":"osonish","vacancy":{"source_id":"1"}}`,
		``,
		`not json`,
		`{"source":"osonish","vacancy":{"title_uz":"no id"}}`,
		`{"source":"osonish","vacancy":{"source_id":"1","title_uz":"newer"}}`,
	}, "\n")

	rd, err := Read(strings.NewReader(in), 10)
	require.NoError(t, err)
	require.Equal(t, 1, rd.Len())
	v, err := rd.FetchDetail(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "newer", v.TitleUz)
}

func TestReadRejectsMixedSources(t *testing.T) {
	in := `{"source":"osonish","vacancy":{"source_id":"1"}}
{"source":"hh","vacancy":{"source_id":"2"}}`

	_, err := Read(strings.NewReader(in), 10)
	assert.Error(t, err)
}
