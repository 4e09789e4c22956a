package mimepart_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mailshape/internal/mimepart"
)

// gmailMessage is trimmed from a users.messages.get response with format=full.
const gmailMessage = `{
  "id": "18c1f0a2b3c4d5e6",
  "threadId": "18c1f0a2b3c4d5e6",
  "payload": {
    "partId": "",
    "mimeType": "multipart/mixed",
    "filename": "",
    "headers": [
      {"name": "From", "value": "Alice <alice@example.com>"},
      {"name": "To", "value": "bob@example.com"},
      {"name": "Subject", "value": "=?UTF-8?B?aMOpbGxv?="}
    ],
    "body": {"size": 0},
    "parts": [
      {
        "partId": "0",
        "mimeType": "multipart/alternative",
        "filename": "",
        "headers": [{"name": "Content-Type", "value": "multipart/alternative; boundary=\"b2\""}],
        "body": {"size": 0},
        "parts": [
          {"partId": "0.0", "mimeType": "text/plain", "filename": "", "headers": [], "body": {"size": 5, "data": "SGVsbG8="}},
          {"partId": "0.1", "mimeType": "text/html", "filename": "", "body": {"size": 12, "data": "PHA-SGk8L3A-"}}
        ]
      },
      {
        "partId": null,
        "mimeType": "application/pdf",
        "filename": "report.pdf",
        "headers": null,
        "body": {"attachmentId": "ANGjdJ8", "size": 2048, "data": null},
        "parts": null
      }
    ]
  }
}`

func TestParseJSON_TriState(t *testing.T) {
	t.Parallel()

	raw, err := mimepart.ParseJSON([]byte(gmailMessage))
	require.NoError(t, err)

	id, ok := raw.PartID.Get()
	assert.True(t, ok)
	assert.Equal(t, "", id)

	children, ok := raw.Parts.Get()
	require.True(t, ok)
	require.Len(t, children, 2)

	att := children[1]
	assert.True(t, att.PartID.IsNull())
	assert.True(t, att.Headers.IsNull())
	assert.True(t, att.Parts.IsNull())

	html := mustChildren(t, children[0])[1]
	assert.True(t, html.Headers.IsZero(), "missing headers stay absent, not null")
	assert.False(t, html.Headers.IsNull())
}

func TestParseJSON_BarePart(t *testing.T) {
	t.Parallel()

	raw, err := mimepart.ParseJSON([]byte(`{"partId": null, "mimeType": "text/plain"}`))
	require.NoError(t, err)
	assert.True(t, raw.PartID.IsNull())

	mt, ok := raw.MimeType.Get()
	assert.True(t, ok)
	assert.Equal(t, "text/plain", mt)

	_, err = mimepart.ParseJSON([]byte(`[1, 2]`))
	assert.Error(t, err)
}

func TestAdapt_NullPartIDBecomesAbsent(t *testing.T) {
	t.Parallel()

	p := mimepart.Adapt(&mimepart.RawPart{
		PartID:   mimepart.Null[string](),
		MimeType: mimepart.Value("text/plain"),
	})
	require.NotNil(t, p)
	assert.Nil(t, p.PartID)
	require.NotNil(t, p.MimeType)
	assert.Equal(t, "text/plain", *p.MimeType)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mimeType": "text/plain"}`, string(out))
}

func TestAdapt_Gmail(t *testing.T) {
	t.Parallel()

	raw, err := mimepart.ParseJSON([]byte(gmailMessage))
	require.NoError(t, err)

	p := mimepart.Adapt(raw)
	require.NotNil(t, p)
	assert.Equal(t, 5, mimepart.Count(p))

	require.Len(t, p.Headers, 3)
	assert.Equal(t, mimepart.Header{Name: "Subject", Value: "=?UTF-8?B?aMOpbGxv?="}, p.Headers[2])

	require.Len(t, p.Parts, 2)
	alt, att := p.Parts[0], p.Parts[1]

	require.Len(t, alt.Parts, 2)
	assert.Equal(t, "0.0", *alt.Parts[0].PartID)
	assert.Equal(t, "0.1", *alt.Parts[1].PartID)
	assert.NotNil(t, alt.Parts[0].Headers, "empty headers list stays present")
	assert.Empty(t, alt.Parts[0].Headers)
	assert.Nil(t, alt.Parts[1].Headers)
	assert.Equal(t, "SGVsbG8=", *alt.Parts[0].Body.Data)

	assert.Nil(t, att.PartID)
	assert.Nil(t, att.Headers)
	assert.Nil(t, att.Parts)
	assert.Equal(t, "report.pdf", *att.Filename)
	require.NotNil(t, att.Body)
	assert.Equal(t, "ANGjdJ8", *att.Body.AttachmentID)
	assert.Equal(t, int64(2048), *att.Body.Size)
	assert.Nil(t, att.Body.Data)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "null")
	assert.Contains(t, string(out), `"headers":[]`)
}

func TestAdapt_AbsentBodyAndParts(t *testing.T) {
	t.Parallel()

	p := mimepart.Adapt(&mimepart.RawPart{})
	require.NotNil(t, p)
	assert.Equal(t, &mimepart.Part{}, p)

	p = mimepart.Adapt(&mimepart.RawPart{
		Body:  mimepart.Null[mimepart.RawBody](),
		Parts: mimepart.Value([]*mimepart.RawPart{}),
	})
	assert.Nil(t, p.Body)
	assert.NotNil(t, p.Parts)
	assert.Empty(t, p.Parts)

	assert.Nil(t, mimepart.Adapt(nil))
}

func TestAdapt_PreservesShape(t *testing.T) {
	t.Parallel()

	raw := buildTree(3, 3, "")
	p := mimepart.Adapt(raw)

	assert.Equal(t, countRaw(raw), mimepart.Count(p))
	assertSameShape(t, raw, p)
}

func TestAdapt_Idempotent(t *testing.T) {
	t.Parallel()

	raw, err := mimepart.ParseJSON([]byte(gmailMessage))
	require.NoError(t, err)

	once := mimepart.Adapt(raw)
	twice := mimepart.Adapt(once.Raw())
	assert.Equal(t, once, twice)

	tree := mimepart.Adapt(buildTree(2, 4, "x"))
	assert.Equal(t, tree, mimepart.Adapt(tree.Raw()))
}

func TestPart_RawWritesNulls(t *testing.T) {
	t.Parallel()

	mt := "text/plain"
	p := &mimepart.Part{MimeType: &mt}

	out, err := json.Marshal(p.Raw())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"partId": null,
		"mimeType": "text/plain",
		"filename": null,
		"headers": null,
		"body": null,
		"parts": null
	}`, string(out))
}

func TestRawPart_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	in := `{"partId":null,"mimeType":"text/plain","body":{"size":3,"data":null}}`
	var raw mimepart.RawPart
	require.NoError(t, json.Unmarshal([]byte(in), &raw))

	out, err := json.Marshal(&raw)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestAdapt_DeepTree(t *testing.T) {
	t.Parallel()

	const depth = 5000
	root := &mimepart.RawPart{MimeType: mimepart.Value("multipart/mixed")}
	cur := root
	for i := 0; i < depth; i++ {
		child := &mimepart.RawPart{MimeType: mimepart.Value("multipart/mixed")}
		cur.Parts = mimepart.Value([]*mimepart.RawPart{child})
		cur = child
	}

	p := mimepart.Adapt(root)
	assert.Equal(t, depth+1, mimepart.Count(p))
}

func TestWalk_SkipChildren(t *testing.T) {
	t.Parallel()

	p := mimepart.Adapt(buildTree(2, 2, ""))

	var depths []int
	mimepart.Walk(p, func(_ *mimepart.Part, depth int) bool {
		depths = append(depths, depth)
		return depth < 1
	})
	assert.Equal(t, []int{0, 1, 1}, depths)
}

func TestFprint(t *testing.T) {
	t.Parallel()

	raw, err := mimepart.ParseJSON([]byte(gmailMessage))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, mimepart.Fprint(&buf, mimepart.Adapt(raw)))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"- multipart/mixed [0 bytes]",
		"  0 multipart/alternative [0 bytes]",
		"    0.0 text/plain [5 bytes]",
		"    0.1 text/html [12 bytes]",
		`  - application/pdf "report.pdf" [attachment ANGjdJ8]`,
	}, lines)
}

// buildTree returns a complete tree with the given depth and fan-out.
// Part ids follow the Gmail dotted scheme under prefix.
func buildTree(depth, fanout int, prefix string) *mimepart.RawPart {
	node := &mimepart.RawPart{
		PartID:  mimepart.Value(prefix),
		Headers: mimepart.Value([]mimepart.Header{{Name: "X-Id", Value: prefix}}),
		Body:    mimepart.Value(mimepart.RawBody{Size: mimepart.Value(int64(len(prefix)))}),
	}
	if depth == 0 {
		node.MimeType = mimepart.Value("text/plain")
		node.Parts = mimepart.Null[[]*mimepart.RawPart]()
		return node
	}

	node.MimeType = mimepart.Value("multipart/mixed")
	children := make([]*mimepart.RawPart, fanout)
	for i := range children {
		id := string(rune('0' + i))
		if prefix != "" {
			id = prefix + "." + id
		}
		children[i] = buildTree(depth-1, fanout, id)
	}
	node.Parts = mimepart.Value(children)
	return node
}

func countRaw(r *mimepart.RawPart) int {
	n := 1
	children, _ := r.Parts.Get()
	for _, c := range children {
		n += countRaw(c)
	}
	return n
}

func assertSameShape(t *testing.T, r *mimepart.RawPart, p *mimepart.Part) {
	t.Helper()

	id, _ := r.PartID.Get()
	require.NotNil(t, p.PartID)
	assert.Equal(t, id, *p.PartID)

	children, _ := r.Parts.Get()
	require.Len(t, p.Parts, len(children))
	for i := range children {
		assertSameShape(t, children[i], p.Parts[i])
	}
}

func mustChildren(t *testing.T, r *mimepart.RawPart) []*mimepart.RawPart {
	t.Helper()
	children, ok := r.Parts.Get()
	require.True(t, ok)
	return children
}
