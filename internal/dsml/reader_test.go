package dsml

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/dirconv/internal/format"
	"github.com/isometry/dirconv/internal/ldap"
	"github.com/isometry/dirconv/internal/ldap/ldaptest"
)

const v1Open = `<dsml:dsml xmlns:dsml="http://www.dsml.org/DSML"><dsml:directory-entries>`
const v1Close = `</dsml:directory-entries></dsml:dsml>`

func readV1(t *testing.T, doc string) ([]*ldap.Record, error) {
	t.Helper()

	r, err := NewV1Reader(strings.NewReader(doc), nil)
	if err != nil {
		return nil, err
	}
	return format.ReadAll(r)
}

func readV2(t *testing.T, doc string) ([]*ldap.Record, error) {
	t.Helper()

	r, err := NewV2Reader(strings.NewReader(doc), nil)
	if err != nil {
		return nil, err
	}
	return format.ReadAll(r)
}

func TestV1ReaderEntry(t *testing.T) {
	doc := v1Open +
		`<dsml:entry dn="cn=a,dc=com"><dsml:objectclass><dsml:oc-value>top</dsml:oc-value></dsml:objectclass>` +
		`<dsml:attr name="cn"><dsml:value>a</dsml:value></dsml:attr></dsml:entry>` +
		v1Close

	records, err := readV1(t, doc)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, ldap.KindContent, rec.Kind())
	assert.Equal(t, "cn=a,dc=com", rec.DN())
	assert.Equal(t, []string{"top"}, rec.Attribute("objectClass").Strings())
	assert.Equal(t, []string{"a"}, rec.Attribute("cn").Strings())
	assert.Equal(t, 2, rec.Len())
}

func TestV1ReaderRecords(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
		want func() []*ldap.Record
	}{
		{
			name: "objectclass last, multiple values, base64",
			doc: `<?xml version="1.0"?>
<dsml:dsml xmlns:dsml="http://www.dsml.org/DSML">
  <dsml:directory-schema><dsml:class id="person"><dsml:name>person</dsml:name></dsml:class></dsml:directory-schema>
  <dsml:directory-entries>
    <!-- first entry -->
    <dsml:entry dn="cn=a,dc=com">
      <dsml:attr name="cn"><dsml:value>a</dsml:value><dsml:value>b</dsml:value></dsml:attr>
      <dsml:attr name="jpegPhoto"><dsml:value encoding="base64">AAEC</dsml:value></dsml:attr>
      <dsml:attr name="sn"><dsml:value encoding="base64">Y2Fmw6k=</dsml:value></dsml:attr>
      <dsml:objectclass><dsml:oc-value>top</dsml:oc-value><dsml:oc-value>person</dsml:oc-value></dsml:objectclass>
    </dsml:entry>
    <dsml:entry dn="cn=b,dc=com"/>
  </dsml:directory-entries>
</dsml:dsml>`,
			want: func() []*ldap.Record {
				a := ldap.NewContent("cn=a,dc=com")
				_ = a.Add(ldap.NewAttribute("cn", "a", "b"))
				_ = a.Add(ldap.NewBinaryAttribute("jpegPhoto", []byte{0, 1, 2}))
				_ = a.Add(ldap.NewAttribute("sn", "café"))
				_ = a.Add(ldap.NewAttribute("objectClass", "top", "person"))
				return []*ldap.Record{a, ldap.NewContent("cn=b,dc=com")}
			},
		},
		{
			name: "default namespace",
			doc:  `<dsml xmlns="http://www.dsml.org/DSML"><directory-entries><entry dn="cn=a"><attr name="cn"><value>a &amp; &lt;b&gt;</value></attr></entry></directory-entries></dsml>`,
			want: func() []*ldap.Record {
				a := ldap.NewContent("cn=a")
				_ = a.Add(ldap.NewAttribute("cn", "a & <b>"))
				return []*ldap.Record{a}
			},
		},
		{
			name: "empty document",
			doc:  `<dsml:dsml xmlns:dsml="http://www.dsml.org/DSML"></dsml:dsml>`,
			want: func() []*ldap.Record { return nil },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := readV1(t, tc.doc)
			require.NoError(t, err)
			assert.Empty(t, ldaptest.DiffAll(tc.want(), got))
		})
	}
}

func TestV1ReaderErrors(t *testing.T) {
	testCases := []struct {
		name     string
		doc      string
		sentinel error
		line     int
	}{
		{
			name:     "wrong root",
			doc:      `<batchRequest xmlns="urn:oasis:names:tc:DSML:2:0:core"/>`,
			sentinel: ldap.ErrGrammarViolation,
			line:     1,
		},
		{
			name:     "entry without dn",
			doc:      v1Open + "\n<dsml:entry></dsml:entry>" + v1Close,
			sentinel: ldap.ErrMissingAttribute,
			line:     2,
		},
		{
			name:     "duplicate dn through both paths",
			doc:      v1Open + `<dsml:entry dn="cn=a" dsml:dn="cn=b"></dsml:entry>` + v1Close,
			sentinel: ldap.ErrDuplicateAttribute,
			line:     1,
		},
		{
			name:     "unexpected child",
			doc:      v1Open + "<dsml:entry dn=\"cn=a\">\n\n<dsml:bogus/></dsml:entry>" + v1Close,
			sentinel: ldap.ErrGrammarViolation,
			line:     3,
		},
		{
			name:     "text between entries",
			doc:      v1Open + `stray<dsml:entry dn="cn=a"/>` + v1Close,
			sentinel: ldap.ErrGrammarViolation,
			line:     1,
		},
		{
			name:     "malformed xml",
			doc:      v1Open + "\n<dsml:entry dn=\"cn=a\"></dsml:attr>",
			sentinel: ldap.ErrGrammarViolation,
			line:     2,
		},
		{
			name:     "bad base64",
			doc:      v1Open + `<dsml:entry dn="cn=a"><dsml:attr name="cn"><dsml:value encoding="base64">!!</dsml:value></dsml:attr></dsml:entry>` + v1Close,
			sentinel: ldap.ErrGrammarViolation,
			line:     1,
		},
		{
			name:     "dn attribute",
			doc:      v1Open + `<dsml:entry dn="cn=a"><dsml:attr name="dn"><dsml:value>x</dsml:value></dsml:attr></dsml:entry>` + v1Close,
			sentinel: ldap.ErrProtocolViolation,
			line:     1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readV1(t, tc.doc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.sentinel), "got %v", err)

			var ie *ldap.Error
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tc.line, ie.Line)
		})
	}
}

func TestV1ReaderCharset(t *testing.T) {
	doc := `<?xml version="1.0" encoding="ISO-8859-1"?>` + "\n" + v1Open +
		`<dsml:entry dn="cn=a"><dsml:attr name="sn"><dsml:value>caf` + "\xe9" + `</dsml:value></dsml:attr></dsml:entry>` +
		v1Close

	records, err := readV1(t, doc)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"café"}, records[0].Attribute("sn").Strings())

	_, err = readV1(t, `<?xml version="1.0" encoding="x-no-such-charset"?>`+v1Open+v1Close)
	assert.ErrorIs(t, err, ldap.ErrUnsupportedFormat)
}

func TestV1ReaderFilters(t *testing.T) {
	opts := &format.Options{Filters: format.NewFilters()}
	opts.Filters.RegisterExclude("userPassword")

	doc := v1Open + `<dsml:entry dn="cn=a"><dsml:attr name="cn"><dsml:value>a</dsml:value></dsml:attr>` +
		`<dsml:attr name="userPassword"><dsml:value>secret</dsml:value></dsml:attr></dsml:entry>` + v1Close

	r, err := NewV1Reader(strings.NewReader(doc), opts)
	require.NoError(t, err)
	records, err := format.ReadAll(r)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Attribute("userPassword"))
	assert.Equal(t, 1, records[0].Len())
}

const v2Open = `<dsml:batchRequest xmlns:dsml="urn:oasis:names:tc:DSML:2:0:core" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`
const v2Close = `</dsml:batchRequest>`

func TestV2ReaderRequests(t *testing.T) {
	doc := v2Open + `
  <dsml:addRequest dn="cn=a,dc=com">
    <dsml:control type="1.2.840.113556.1.4.417" criticality="true"/>
    <dsml:attr name="objectClass"><dsml:value>top</dsml:value></dsml:attr>
    <dsml:attr name="cn"><dsml:value>a</dsml:value></dsml:attr>
    <dsml:attr name="jpegPhoto"><dsml:value xsi:type="xsd:base64Binary">AAEC</dsml:value></dsml:attr>
  </dsml:addRequest>
  <dsml:modifyRequest dn="cn=a,dc=com">
    <dsml:modification name="mail" operation="add"><dsml:value>a@example.com</dsml:value></dsml:modification>
    <dsml:modification name="telephoneNumber" operation="delete"/>
    <dsml:modification name="sn" operation="replace"><dsml:value>b</dsml:value></dsml:modification>
  </dsml:modifyRequest>
  <dsml:delRequest dn="cn=a,dc=com">
    <dsml:control type="1.2.3"><dsml:controlValue xsi:type="xsd:base64Binary">YWJj</dsml:controlValue></dsml:control>
  </dsml:delRequest>
  <dsml:modDNRequest dn="cn=b,dc=com" newrdn="cn=c" newSuperior="ou=x,dc=com" deleteoldrdn="false"/>
  <dsml:modDNRequest dn="cn=d,dc=com" newrdn="cn=e"/>
` + v2Close

	add := ldap.NewAdd("cn=a,dc=com")
	add.AddControl(ldap.Control{OID: "1.2.840.113556.1.4.417", Critical: true})
	_ = add.Add(ldap.NewAttribute("objectClass", "top"))
	_ = add.Add(ldap.NewAttribute("cn", "a"))
	_ = add.Add(ldap.NewBinaryAttribute("jpegPhoto", []byte{0, 1, 2}))

	modify := ldap.NewModify("cn=a,dc=com")
	_ = modify.AddModification(ldap.ModAdd, ldap.NewAttribute("mail", "a@example.com"))
	_ = modify.AddModification(ldap.ModDelete, ldap.NewAttribute("telephoneNumber"))
	_ = modify.AddModification(ldap.ModReplace, ldap.NewAttribute("sn", "b"))

	del := ldap.NewDelete("cn=a,dc=com")
	del.AddControl(ldap.Control{OID: "1.2.3", Value: []byte("abc")})

	want := []*ldap.Record{
		add,
		modify,
		del,
		ldap.NewRename("cn=b,dc=com", "cn=c", "ou=x,dc=com", false),
		ldap.NewRename("cn=d,dc=com", "cn=e", "", true),
	}

	got, err := readV2(t, doc)
	require.NoError(t, err)
	assert.Empty(t, ldaptest.DiffAll(want, got))
}

func TestV2ReaderBatchAttributes(t *testing.T) {
	testCases := []struct {
		name string
		root string
		want BatchRequest
	}{
		{
			name: "defaults",
			root: `<batchRequest xmlns="urn:oasis:names:tc:DSML:2:0:core">`,
			want: BatchRequest{Processing: "sequential", ResponseOrder: "sequential", OnError: "exit"},
		},
		{
			name: "unqualified under default namespace",
			root: `<batchRequest xmlns="urn:oasis:names:tc:DSML:2:0:core" requestID="r1" processing="parallel" responseOrder="unordered" onError="resume">`,
			want: BatchRequest{RequestID: "r1", Processing: "parallel", ResponseOrder: "unordered", OnError: "resume"},
		},
		{
			name: "qualified with declared prefix",
			root: `<dsml:batchRequest xmlns:dsml="urn:oasis:names:tc:DSML:2:0:core" dsml:requestID="r2" dsml:processing="parallel">`,
			want: BatchRequest{RequestID: "r2", Processing: "parallel", ResponseOrder: "sequential", OnError: "exit"},
		},
		{
			name: "qualified with undeclared prefix",
			root: `<batchRequest xmlns="urn:oasis:names:tc:DSML:2:0:core" other:requestID="r3">`,
			want: BatchRequest{Processing: "sequential", ResponseOrder: "sequential", OnError: "exit"},
		},
		{
			name: "unrecognized values fall back",
			root: `<batchRequest xmlns="urn:oasis:names:tc:DSML:2:0:core" processing="random" onError="explode">`,
			want: BatchRequest{Processing: "sequential", ResponseOrder: "sequential", OnError: "exit"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			closing := "</batchRequest>"
			if strings.HasPrefix(tc.root, "<dsml:") {
				closing = v2Close
			}
			r, err := NewV2Reader(strings.NewReader(tc.root+closing), nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, r.Batch())

			_, err = r.Next()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestV2ReaderErrors(t *testing.T) {
	testCases := []struct {
		name     string
		doc      string
		sentinel error
	}{
		{
			name:     "modification without operation",
			doc:      v2Open + `<dsml:modifyRequest dn="cn=a"><dsml:modification name="cn"/></dsml:modifyRequest>` + v2Close,
			sentinel: ldap.ErrMissingAttribute,
		},
		{
			name:     "modification with empty operation",
			doc:      v2Open + `<dsml:modifyRequest dn="cn=a"><dsml:modification name="cn" operation=""/></dsml:modifyRequest>` + v2Close,
			sentinel: ldap.ErrMissingAttribute,
		},
		{
			name:     "modification with unknown operation",
			doc:      v2Open + `<dsml:modifyRequest dn="cn=a"><dsml:modification name="cn" operation="merge"/></dsml:modifyRequest>` + v2Close,
			sentinel: ldap.ErrUnknownChangeOperation,
		},
		{
			name:     "modification without name",
			doc:      v2Open + `<dsml:modifyRequest dn="cn=a"><dsml:modification operation="add"/></dsml:modifyRequest>` + v2Close,
			sentinel: ldap.ErrMissingAttribute,
		},
		{
			name:     "moddn without newrdn",
			doc:      v2Open + `<dsml:modDNRequest dn="cn=a"/>` + v2Close,
			sentinel: ldap.ErrMissingAttribute,
		},
		{
			name:     "request without dn",
			doc:      v2Open + `<dsml:delRequest/>` + v2Close,
			sentinel: ldap.ErrMissingAttribute,
		},
		{
			name:     "unknown request",
			doc:      v2Open + `<dsml:searchRequest dn="cn=a"/>` + v2Close,
			sentinel: ldap.ErrGrammarViolation,
		},
		{
			name:     "attr inside delete",
			doc:      v2Open + `<dsml:delRequest dn="cn=a"><dsml:attr name="cn"/></dsml:delRequest>` + v2Close,
			sentinel: ldap.ErrGrammarViolation,
		},
		{
			name:     "bad criticality",
			doc:      v2Open + `<dsml:delRequest dn="cn=a"><dsml:control type="1.2.3" criticality="maybe"/></dsml:delRequest>` + v2Close,
			sentinel: ldap.ErrGrammarViolation,
		},
		{
			name:     "control without type",
			doc:      v2Open + `<dsml:delRequest dn="cn=a"><dsml:control/></dsml:delRequest>` + v2Close,
			sentinel: ldap.ErrMissingAttribute,
		},
		{
			name:     "wrong root",
			doc:      v1Open + v1Close,
			sentinel: ldap.ErrGrammarViolation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readV2(t, tc.doc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.sentinel), "got %v", err)
		})
	}
}

func TestCursorPositions(t *testing.T) {
	c := NewCursor(strings.NewReader("<a>\n  <b x=\"1\"/>\n</a>"), "test")

	ev, err := c.ExpectStart("", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Line)

	ev, err = c.Next()
	require.NoError(t, err)
	assert.Equal(t, Text, ev.Kind)

	ev, err = c.NextTag()
	require.NoError(t, err)
	assert.Equal(t, StartElement, ev.Kind)
	assert.Equal(t, "b", ev.Name.Local)
	assert.Equal(t, 2, ev.Line)
	assert.Equal(t, 3, ev.Column)

	v, err := c.Attr(ev, "", "x")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, c.Skip())

	ev, err = c.NextTag()
	require.NoError(t, err)
	assert.Equal(t, EndElement, ev.Kind)

	ev, err = c.NextTag()
	require.NoError(t, err)
	assert.Equal(t, EndDocument, ev.Kind)
}
