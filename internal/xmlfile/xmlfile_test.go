package xmlfile_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"gtd/internal/dates"
	"gtd/internal/searches"
	"gtd/internal/tags"
	"gtd/internal/tasks"
	"gtd/internal/utils"
	"gtd/internal/xmlfile"
)

func encode(t testing.TB, ts *tasks.Store, tg *tags.Store, ss *searches.Store) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := xmlfile.Encode(&buf, ts, tg, ss); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.Bytes()
}

// =============================================================================
// Round trip
// =============================================================================

func TestRoundTrip(t *testing.T) {
	tg := tags.NewStore()
	work, _ := tg.New("work", uuid.Nil)
	work.Color = &tags.Color{R: 0x1234, G: 0, B: 0xffff}
	meetings, _ := tg.New("meetings", work.ID())
	meetings.Icon = "calendar"

	ss := searches.NewStore()
	urgent, _ := ss.New("urgent", "@urgent", uuid.Nil)
	ss.New("urgent work", "@urgent & @work", urgent.ID())

	ts := tasks.NewStore()
	parent, _ := ts.New("Plan offsite", uuid.Nil)
	child, _ := ts.New("Book room", parent.ID())
	other, _ := ts.New("Water plants", uuid.Nil)
	parent.AddTag(meetings)
	parent.SetDueDate(dates.OnDay(time.Date(2026, 5, 4, 0, 0, 0, 0, time.Local)))
	parent.DateStart = dates.Fuzzy(dates.KindSomeday)
	parent.Content = "@meetings, agenda <b>bold</b> ]]> and ]]&gt; & more"
	child.ToggleStatus(false)
	other.Dismiss()

	first := encode(t, ts, tg, ss)
	if !bytes.HasPrefix(first, []byte(`<?xml version="1.0" encoding="UTF-8"?>`)) {
		t.Errorf("missing XML declaration:\n%s", first)
	}
	for _, section := range []string{"<taglist>", "<searchlist>", "<tasklist>"} {
		if !bytes.Contains(first, []byte(section)) {
			t.Errorf("missing section %s", section)
		}
	}

	got, err := xmlfile.Decode(bytes.NewReader(first))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Tasks.Count() != 3 || got.Tags.Count() != 2 || got.Searches.Count() != 2 {
		t.Fatalf("counts = %d tasks, %d tags, %d searches",
			got.Tasks.Count(), got.Tags.Count(), got.Searches.Count())
	}

	dp, err := got.Tasks.Get(parent.ID())
	if err != nil {
		t.Fatalf("Get parent: %v", err)
	}
	if dp.Content != parent.Content {
		t.Errorf("content = %q, want %q", dp.Content, parent.Content)
	}
	if kids := dp.Children(); len(kids) != 1 || kids[0].ID() != child.ID() {
		t.Errorf("children = %v", kids)
	}
	if !dp.DueDate().Equal(parent.DueDate()) || dp.DateStart.Kind() != dates.KindSomeday {
		t.Errorf("dates = due %s start %s", dp.DueDate(), dp.DateStart)
	}
	if !dp.HasTag("meetings") {
		t.Error("tag reference lost")
	}

	dm, _ := got.Tags.Find("meetings")
	if dm.Parent() == nil || dm.Parent().Name() != "work" || dm.Icon != "calendar" {
		t.Errorf("decoded tag = %+v", dm)
	}
	dw, _ := got.Tags.Find("work")
	if dw.Color == nil || *dw.Color != *work.Color {
		t.Errorf("colour = %v", dw.Color)
	}

	second := encode(t, got.Tasks, got.Tags, got.Searches)
	if !bytes.Equal(first, second) {
		t.Errorf("re-encode differs:\n%s\n---\n%s", first, second)
	}
}

const forwardRefs = `<?xml version="1.0" encoding="UTF-8"?>
<gtgData appVersion="0.5" xmlVersion="2">
  <taglist>
    <tag id="6a1c4ad2-5f3c-4e0b-8a55-6f7c3c2e0001" name="calls" parent="errands"/>
    <tag id="6a1c4ad2-5f3c-4e0b-8a55-6f7c3c2e0002" name="errands"/>
  </taglist>
  <searchlist/>
  <tasklist>
    <task id="0b6c7a8e-1111-4b2a-9a6e-000000000001" status="Active">
      <title>parent</title>
      <dates>
        <added>2020-01-01T10:00:00</added>
        <modified>2020-01-02 11:30:00</modified>
        <fuzzyDue>someday</fuzzyDue>
        <due>2020-03-01</due>
      </dates>
      <subtasks>
        <sub>0b6c7a8e-1111-4b2a-9a6e-000000000002</sub>
        <sub>0b6c7a8e-1111-4b2a-9a6e-00000000ffff</sub>
      </subtasks>
      <content><![CDATA[call ]]&gt; later]]></content>
    </task>
    <task id="0b6c7a8e-1111-4b2a-9a6e-000000000002" status="Done">
      <title>child</title>
      <tags>
        <tag>calls</tag>
        <tag>6a1c4ad2-5f3c-4e0b-8a55-6f7c3c2e0002</tag>
        <tag>missing</tag>
      </tags>
      <dates>
        <added>2020-01-01T10:00:00</added>
        <modified>2020-01-01T10:00:00</modified>
        <done>2020-01-05</done>
      </dates>
      <content/>
    </task>
  </tasklist>
</gtgData>
`

func TestDecodeForwardReferences(t *testing.T) {
	got, err := xmlfile.Decode(strings.NewReader(forwardRefs))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	calls, err := got.Tags.Find("calls")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if calls.Parent() == nil || calls.Parent().Name() != "errands" {
		t.Error("tag parent given by name should resolve")
	}

	parent, _ := got.Tasks.Get(uuid.MustParse("0b6c7a8e-1111-4b2a-9a6e-000000000001"))
	child, _ := got.Tasks.Get(uuid.MustParse("0b6c7a8e-1111-4b2a-9a6e-000000000002"))
	if child.Parent() != parent {
		t.Error("subtask declared before its node should be linked")
	}
	if roots := got.Tasks.Roots(); len(roots) != 1 || roots[0] != parent {
		t.Errorf("roots = %v", roots)
	}
	if parent.DueDate().Kind() != dates.KindSomeday {
		t.Errorf("fuzzy due should win, got %s", parent.DueDate())
	}
	if parent.Content != "call ]]> later" {
		t.Errorf("content = %q", parent.Content)
	}
	if parent.DateModified.Time().Hour() != 11 {
		t.Errorf("naive modified date = %s", parent.DateModified)
	}
	if len(child.Tags()) != 2 || !child.HasTag("errands") {
		t.Errorf("child tags = %v", child.Tags())
	}
	if child.Status != tasks.StatusDone || child.DateClosed.String() != "2020-01-05" {
		t.Errorf("child status %s closed %s", child.Status, child.DateClosed)
	}
}

func TestDecodeMergesRepeatedTagNames(t *testing.T) {
	doc := `<gtgData><taglist>
		<tag id="0b6c7a8e-2222-4b2a-9a6e-000000000001" name="work"/>
		<tag id="0b6c7a8e-2222-4b2a-9a6e-000000000002" name="@work"/>
		<tag id="0b6c7a8e-2222-4b2a-9a6e-000000000003" name="meetings" parent="0b6c7a8e-2222-4b2a-9a6e-000000000002"/>
	</taglist><tasklist>
		<task id="0b6c7a8e-1111-4b2a-9a6e-000000000001" status="Active"><title>x</title>
			<tags><tag>0b6c7a8e-2222-4b2a-9a6e-000000000002</tag></tags></task>
	</tasklist></gtgData>`

	got, err := xmlfile.Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Tags.Count() != 2 {
		t.Fatalf("tag count = %d, want 2", got.Tags.Count())
	}
	work, err := got.Tags.Find("work")
	if err != nil || work.ID() != uuid.MustParse("0b6c7a8e-2222-4b2a-9a6e-000000000001") {
		t.Fatalf("Find(work) = %v, %v", work, err)
	}
	meetings, _ := got.Tags.Find("meetings")
	if meetings.Parent() != work {
		t.Error("parent given by the repeated tag's id should resolve to the first tag")
	}
	task, _ := got.Tasks.Get(uuid.MustParse("0b6c7a8e-1111-4b2a-9a6e-000000000001"))
	if tt := task.Tags(); len(tt) != 1 || tt[0] != work {
		t.Errorf("task tags = %v, want [work]", tt)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]string{
		"not xml":    "this is not xml",
		"truncated":  `<gtgData><taglist>`,
		"bad tag id": `<gtgData><taglist><tag id="nope" name="x"/></taglist></gtgData>`,
		"bad status": `<gtgData><tasklist><task id="0b6c7a8e-1111-4b2a-9a6e-000000000001" status="Maybe"><title>x</title></task></tasklist></gtgData>`,
		"bad date":   `<gtgData><tasklist><task id="0b6c7a8e-1111-4b2a-9a6e-000000000001"><title>x</title><dates><due>next tuesday</due></dates></task></tasklist></gtgData>`,
		"duplicate": `<gtgData><tasklist>
			<task id="0b6c7a8e-1111-4b2a-9a6e-000000000001"><title>x</title></task>
			<task id="0b6c7a8e-1111-4b2a-9a6e-000000000001"><title>y</title></task>
		</tasklist></gtgData>`,
		"cycle": `<gtgData><tasklist>
			<task id="0b6c7a8e-1111-4b2a-9a6e-000000000001"><title>x</title><subtasks><sub>0b6c7a8e-1111-4b2a-9a6e-000000000002</sub></subtasks></task>
			<task id="0b6c7a8e-1111-4b2a-9a6e-000000000002"><title>y</title><subtasks><sub>0b6c7a8e-1111-4b2a-9a6e-000000000001</sub></subtasks></task>
		</tasklist></gtgData>`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := xmlfile.Decode(strings.NewReader(doc))
			if !errors.Is(err, utils.ErrMalformedDocument) {
				t.Errorf("expected ErrMalformedDocument, got %v", err)
			}
		})
	}
}

func TestEncodeEmpty(t *testing.T) {
	out := encode(t, tasks.NewStore(), tags.NewStore(), searches.NewStore())
	got, err := xmlfile.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Tasks.Count() != 0 || got.Tags.Count() != 0 {
		t.Error("empty document should decode to empty stores")
	}
}

// =============================================================================
// Content escaping
// =============================================================================

func TestEscapeContent(t *testing.T) {
	cases := map[string]string{
		"plain":       "plain",
		"a]]>b":       "a]]&gt;b",
		"a]]&gt;b":    "a]]&amp;gt;b",
		"]]]>":        "]]]&gt;",
		"]]>]]>":      "]]&gt;]]&gt;",
		"x]]&amp;y":   "x]]&amp;amp;y",
		"a\x1b[31m":   "a]]&#x1b;[31m",
		"cr\r\n":      "cr]]&#xd;\n",
		"bad\xffbyte": "bad]]&#bff;byte",
		"\ufffe":      "]]&#xfffe;",
		"]]\x00":      "]]]]&#x0;",
		"]]&#x1b;":    "]]&amp;#x1b;",
		"héllo ✓":     "héllo ✓",
	}
	for in, want := range cases {
		if got := xmlfile.EscapeContent(in); got != want {
			t.Errorf("EscapeContent(%q) = %q, want %q", in, got, want)
		}
		if back := xmlfile.UnescapeContent(want); back != in {
			t.Errorf("UnescapeContent(%q) = %q, want %q", want, back, in)
		}
	}
}

// contentGen mixes escape-prone text, arbitrary runes and raw bytes that
// are not valid UTF-8.
func contentGen() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.StringMatching(`[\]>&gtamp;#xb0-9 \x1b\r]{0,40}`),
		rapid.String(),
		rapid.Map(rapid.SliceOf(rapid.Byte()), func(b []byte) string { return string(b) }),
	)
}

func testEscape_Roundtrip_Properties(t *rapid.T) {
	s := contentGen().Draw(t, "content")
	escaped := xmlfile.EscapeContent(s)
	if strings.Contains(escaped, "]]>") {
		t.Fatalf("escaped %q still contains the CDATA terminator", escaped)
	}
	if !utf8.ValidString(escaped) {
		t.Fatalf("escaped %q is not valid UTF-8", escaped)
	}
	for _, r := range escaped {
		if r == '\r' || r < 0x20 && r != '\t' && r != '\n' || r == 0xFFFE || r == 0xFFFF {
			t.Fatalf("escaped %q contains %U", escaped, r)
		}
	}
	if back := xmlfile.UnescapeContent(escaped); back != s {
		t.Fatalf("round trip %q -> %q -> %q", s, escaped, back)
	}
}

func TestEscape_Roundtrip_Properties(t *testing.T) {
	rapid.Check(t, testEscape_Roundtrip_Properties)
}

func FuzzEscape_Roundtrip_Properties(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testEscape_Roundtrip_Properties))
}

func testContent_Roundtrip_Properties(t *rapid.T) {
	content := rapid.OneOf(
		rapid.StringMatching(`[\]>&<a-z "'\n]{0,60}`),
		contentGen(),
	).Draw(t, "content")

	ts := tasks.NewStore()
	task, err := ts.New("t", uuid.Nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	task.Content = content

	var buf bytes.Buffer
	if err := xmlfile.Encode(&buf, ts, tags.NewStore(), searches.NewStore()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := xmlfile.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	decoded, err := got.Tasks.Get(task.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if decoded.Content != content {
		t.Fatalf("content %q decoded as %q", content, decoded.Content)
	}
}

func TestContent_Roundtrip_Properties(t *testing.T) {
	rapid.Check(t, testContent_Roundtrip_Properties)
}
