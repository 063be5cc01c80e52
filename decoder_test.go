package xmlrpc

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrapResponse(value string) []byte {
	return []byte("<?xml version=\"1.0\"?>\n<methodResponse>\n<params>\n<param>\n" + value + "\n</param>\n</params>\n</methodResponse>\n")
}

func TestParseMethodResponseScalars(t *testing.T) {
	t.Parallel()

	//nolint:govet //Do not reorder struct
	testCases := []struct {
		name  string
		value string
		want  *Value
	}{
		{name: "implicit string", value: "<value>hello world</value>", want: NewString("hello world")},
		{name: "empty value", value: "<value></value>", want: NewString("")},
		{name: "self closed value", value: "<value/>", want: NewString("")},
		{name: "string", value: "<value><string>a &lt; b</string></value>", want: NewString("a < b")},
		{name: "int", value: "<value><int>42</int></value>", want: NewInt(42)},
		{name: "i4", value: "<value><i4>-3</i4></value>", want: NewI4(-3)},
		{name: "double", value: "<value><double>-3.14</double></value>", want: NewDouble(-3.14)},
		{name: "boolean one", value: "<value><boolean>1</boolean></value>", want: NewBoolean(true)},
		{name: "boolean zero", value: "<value><boolean>0</boolean></value>", want: NewBoolean(false)},
		{name: "boolean text is false", value: "<value><boolean>true</boolean></value>", want: NewBoolean(false)},
		{name: "datetime", value: "<value><dateTime.iso8601>19980717T14:08:55</dateTime.iso8601></value>", want: &Value{kind: KindScalar, typ: DateTime, text: "19980717T14:08:55"}},
		{name: "base64 with line breaks", value: "<value><base64>eW91IGNhbid0\nIHJlYWQgdGhpcyE=</base64></value>", want: NewBase64([]byte("you can't read this!"))},
		{name: "upper case tags", value: "<VALUE><INT>7</INT></VALUE>", want: NewInt(7)},
		{name: "blanks around typed scalar", value: "<value>\n  <int>9</int>\n</value>", want: NewInt(9)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp, err := ParseMethodResponse(wrapResponse(tc.value))
			require.NoError(t, err)
			require.False(t, resp.IsFault())
			assert.True(t, tc.want.Equal(resp.Value()), "got %s", Serialize(resp.Value()))
		})
	}
}

func TestParseMethodResponseNumericValidation(t *testing.T) {
	t.Parallel()

	//nolint:govet //Do not reorder struct
	testCases := []struct {
		text    string
		wantErr bool
	}{
		{text: "42"},
		{text: "-3.14"},
		{text: "+7"},
		{text: " 1 2 "},
		{text: "abc", wantErr: true},
		{text: "1,000", wantErr: true},
		{text: "1e10", wantErr: true},
		{text: "", wantErr: true},
	}

	for _, tc := range testCases {
		for _, tag := range []string{"int", "i4", "double"} {
			doc := wrapResponse("<value><" + tag + ">" + tc.text + "</" + tag + "></value>")

			_, err := ParseMethodResponse(doc)

			if tc.wantErr {
				require.ErrorIs(t, err, ErrNonNumericValue, "%s %q", tag, tc.text)
			} else {
				require.NoError(t, err, "%s %q", tag, tc.text)
			}
		}
	}
}

func TestParseMethodResponseContainers(t *testing.T) {
	t.Parallel()

	doc := wrapResponse(`<value><struct>
<member><name>name</name><value>Alice</value></member>
<member>
  <name>tags</name>
  <value><array><data>
    <value><int>1</int></value>
    <value>two</value>
    <value><array><data></data></array></value>
  </data></array></value>
</member>
<member><name>nested</name><value><struct><member><name>ok</name><value><boolean>1</boolean></value></member></struct></value></member>
<member><name>empty</name><value></value></member>
</struct></value>`)

	resp, err := ParseMethodResponse(doc)
	require.NoError(t, err)

	want := NewStruct(
		Member{Name: "name", Value: NewString("Alice")},
		Member{Name: "tags", Value: NewArray(NewInt(1), NewString("two"), NewArray())},
		Member{Name: "nested", Value: NewStruct(Member{Name: "ok", Value: NewBoolean(true)})},
		Member{Name: "empty", Value: NewString("")},
	)

	assert.True(t, want.Equal(resp.Value()), "got %s", Serialize(resp.Value()))

	members := resp.Value().Members()
	require.Len(t, members, 4)
	assert.Equal(t, "name", members[0].Name)
	assert.Equal(t, "empty", members[3].Name)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	values := []*Value{
		NewString(`<tag attr="x"> & 'quote'`),
		NewString(""),
		NewInt(-99),
		NewI4(12),
		NewBoolean(true),
		NewDouble(2.5),
		NewDateTime(mustParseTime(t, "20240102T03:04:05")),
		NewBase64([]byte{0, 255, 10, 13}),
		NewArray(),
		NewStruct(),
		NewArray(NewInt(1), NewArray(NewString("deep")), NewStruct(Member{Name: "k", Value: NewDouble(1)})),
		NewStruct(
			Member{Name: "a<b", Value: NewBoolean(false)},
			Member{Name: "list", Value: NewArray(NewString("x"), NewString("y"))},
		),
	}

	for _, v := range values {
		resp, err := ParseMethodResponse(NewResponse(v).Serialize())
		require.NoError(t, err, Serialize(v))
		assert.True(t, v.Equal(resp.Value()), "want %s got %s", Serialize(v), Serialize(resp.Value()))
		assert.Equal(t, Serialize(v), Serialize(resp.Value()))
	}
}

func TestParseMethodResponseFault(t *testing.T) {
	t.Parallel()

	docs := []string{
		`<methodResponse><fault><value><struct>
<member><name>faultCode</name><value><int>4</int></value></member>
<member><name>faultString</name><value><string>Too many parameters.</string></value></member>
</struct></value></fault></methodResponse>`,
		`<methodResponse><fault><value><struct>
<member><name>faultString</name><value>Too many parameters.</value></member>
<member><name>faultCode</name><value><i4>4</i4></value></member>
</struct></value></fault></methodResponse>`,
	}

	for _, doc := range docs {
		resp, err := ParseMethodResponse([]byte(doc))
		require.NoError(t, err)
		require.True(t, resp.IsFault())
		assert.Nil(t, resp.Value())
		assert.Equal(t, 4, resp.FaultCode())
		assert.Equal(t, "Too many parameters.", resp.FaultString())
		require.ErrorIs(t, resp.Err(), FaultIntrospectUnknown)
	}
}

func TestParseMethodResponseErrors(t *testing.T) {
	t.Parallel()

	//nolint:govet //Do not reorder struct
	testCases := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{name: "empty", doc: "", wantErr: ErrEmptyPayload},
		{name: "no value", doc: "<methodResponse><params></params></methodResponse>", wantErr: ErrEmptyPayload},
		{name: "param without value", doc: "<methodResponse><params><param></param></params></methodResponse>", wantErr: ErrInvalidReturn},
		{name: "unbalanced containers", doc: "<methodResponse><params><param><value><array><data></data></struct></value></param></params></methodResponse>", wantErr: ErrInvalidReturn},
		{name: "malformed xml", doc: "<methodResponse><params></methodResponse>", wantErr: ErrInvalidReturn},
		{name: "bad base64", doc: string(wrapResponse("<value><base64>!!!</base64></value>")), wantErr: ErrInvalidReturn},
		{name: "fault without code", doc: "<methodResponse><fault><value><struct><member><name>faultString</name><value>x</value></member></struct></value></fault></methodResponse>", wantErr: ErrInvalidReturn},
		{name: "fault not a struct", doc: "<methodResponse><fault><value>x</value></fault></methodResponse>", wantErr: ErrInvalidReturn},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp, err := ParseMethodResponse([]byte(tc.doc))
			require.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, resp)
		})
	}
}

func TestSyntaxErrorLine(t *testing.T) {
	t.Parallel()

	_, err := ParseMethodResponse([]byte("<methodResponse><params></methodResponse>"))

	var serr *SyntaxError

	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 1, serr.Line)
	assert.True(t, strings.HasPrefix(serr.Error(), "XML error at line 1, check URL: "), serr.Error())

	_, err = ParseMethodResponse([]byte("<methodResponse>\n<params>\n</param>\n</methodResponse>"))
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 3, serr.Line)
	assert.Contains(t, serr.Error(), "at line 3")
}

func TestParseMethodCall(t *testing.T) {
	t.Parallel()

	msg := NewMessage("examples.getStateName", NewInt(41), NewStruct(Member{Name: "x", Value: NewString("y\nz")}))

	parsed, err := ParseMethodCall(msg.Payload())
	require.NoError(t, err)
	assert.Equal(t, "examples.getStateName", parsed.Method())
	require.Equal(t, 2, parsed.NumParams())
	assert.True(t, NewInt(41).Equal(parsed.Param(0)))

	x, ok := parsed.Param(1).StructMember("x")
	require.True(t, ok)
	// The tokenizer normalizes the CRLF written on the wire
	assert.Equal(t, "y\nz", x.Text())

	parsed, err = ParseMethodCall([]byte("<methodCall><methodName>\n\t system.listMethods</methodName></methodCall>"))
	require.NoError(t, err)
	assert.Equal(t, "system.listMethods", parsed.Method())
	assert.Zero(t, parsed.NumParams())

	_, err = ParseMethodCall([]byte("<methodCall><params></params></methodCall>"))
	require.ErrorIs(t, err, ErrInvalidReturn)
}

func TestDecodeCharset(t *testing.T) {
	t.Parallel()

	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<methodResponse><params><param><value><string>caf\xe9</string></value></param></params></methodResponse>"

	assert.Equal(t, "ISO-8859-1", DetectEncoding([]byte(doc)))

	resp, err := ParseMethodResponse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "café", resp.Value().Text())
}

func TestDetectEncoding(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultEncoding, DetectEncoding([]byte("<methodResponse/>")))
	assert.Equal(t, "US-ASCII", DetectEncoding([]byte(`<?xml version="1.0" encoding='us-ascii'?>`)))
	assert.Equal(t, "UTF-8", DetectEncoding([]byte(`<?xml version="1.0" encoding="utf-8"?>`)))
	assert.Equal(t, DefaultEncoding, DetectEncoding([]byte(`<?xml version="1.0" encoding="Shift_JIS"?>`)))
}

type recordingHandler struct {
	events []string
}

func (h *recordingHandler) StartElement(name string, _ []xml.Attr) error {
	h.events = append(h.events, "start:"+name)
	return nil
}

func (h *recordingHandler) EndElement(name string) error {
	h.events = append(h.events, "end:"+name)
	return nil
}

func (h *recordingHandler) CharData(text string) error {
	h.events = append(h.events, "text:"+text)
	return nil
}

func TestDecodeEvents(t *testing.T) {
	t.Parallel()

	h := new(recordingHandler)

	require.NoError(t, Decode(strings.NewReader("<value><dateTime.iso8601>x</dateTime.iso8601></value>"), h))
	assert.Equal(t, []string{
		"start:VALUE",
		"start:DATETIME.ISO8601",
		"text:x",
		"end:DATETIME.ISO8601",
		"end:VALUE",
	}, h.events)
}
