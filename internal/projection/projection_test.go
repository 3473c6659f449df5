package projection

import (
	"reflect"
	"testing"
	"time"

	"github.com/lotas/tabspeicher/internal/types"
)

var renderNow = time.Date(2024, time.May, 15, 12, 0, 0, 0, time.Local)

func recAt(id int64, title, url string, t time.Time) types.Record {
	return types.Record{
		ID:    types.RecordID(id),
		Title: title,
		URL:   url,
		Date:  t.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

func sampleRecords() []types.Record {
	return []types.Record{
		recAt(1, "Go docs", "https://go.dev/doc", renderNow.Add(-2*time.Hour)),
		recAt(2, "Example", "https://www.example.com/x", renderNow.AddDate(0, 0, -1)),
		recAt(3, "Bubble Tea", "https://github.com/charmbracelet/bubbletea", renderNow.AddDate(0, 0, -10)),
		recAt(4, "another example", "https://example.com/y", renderNow.Add(-1*time.Hour)),
	}
}

func TestDateModeSortsDescendingAndGroupsByDay(t *testing.T) {
	p := Project(sampleRecords(), types.ViewByDate, "", renderNow)

	if len(p.Groups) != 3 {
		t.Fatalf("expected 3 day groups, got %d", len(p.Groups))
	}
	if p.Groups[0].Label != "Today" {
		t.Errorf("first group label = %q, want Today", p.Groups[0].Label)
	}
	if p.Groups[1].Label != "Yesterday" {
		t.Errorf("second group label = %q, want Yesterday", p.Groups[1].Label)
	}
	// 2024-05-05 was a Sunday.
	if p.Groups[2].Label != "Sunday, May 5" {
		t.Errorf("third group label = %q, want weekday label", p.Groups[2].Label)
	}

	today := p.Groups[0].Records
	if len(today) != 2 || today[0].ID != 4 || today[1].ID != 1 {
		t.Errorf("today group not sorted most recent first: %+v", today)
	}
}

func TestTitleModeFlatLocaleSort(t *testing.T) {
	p := Project(sampleRecords(), types.ViewByTitle, "", renderNow)

	if p.Groups != nil {
		t.Fatalf("title mode must be flat")
	}
	got := make([]string, len(p.Flat))
	for i, r := range p.Flat {
		got[i] = r.Title
	}
	// Collation orders case-insensitively at the primary level, so
	// "another example" sorts before "Bubble Tea".
	want := []string{"another example", "Bubble Tea", "Example", "Go docs"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("title order = %v, want %v", got, want)
	}
}

func TestDomainModeGroupsAndStripsWWW(t *testing.T) {
	p := Project(sampleRecords(), types.ViewByDomain, "", renderNow)

	labels := make([]string, len(p.Groups))
	for i, g := range p.Groups {
		labels[i] = g.Label
	}
	want := []string{"example.com", "github.com", "go.dev"}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("domain groups = %v, want %v", labels, want)
	}
	// www.example.com and example.com share a group.
	if len(p.Groups[0].Records) != 2 {
		t.Errorf("expected both example.com records in one group, got %d", len(p.Groups[0].Records))
	}
}

func TestMalformedURLIsItsOwnGroup(t *testing.T) {
	records := []types.Record{
		recAt(1, "ok", "https://example.com", renderNow),
		recAt(2, "broken", "not a url", renderNow),
	}
	p := Project(records, types.ViewByDomain, "", renderNow)

	found := false
	for _, g := range p.Groups {
		if g.Label == "not a url" {
			found = true
		}
	}
	if !found {
		t.Errorf("malformed URL did not become its own group key: %+v", p.Groups)
	}
}

func TestExtractDomain(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://www.example.com/x", "example.com"},
		{"https://go.dev/doc", "go.dev"},
		{"not a url", "not a url"},
		{"about:config", "about:config"},
	}
	for _, c := range cases {
		if got := ExtractDomain(c.in); got != c.want {
			t.Errorf("ExtractDomain(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSearchMatchesTitleOrURL(t *testing.T) {
	records := []types.Record{
		recAt(1, "Foobar", "https://a.example", renderNow),
		recAt(2, "other", "https://b.example/foo/page", renderNow),
		recAt(3, "unrelated", "https://c.example", renderNow),
	}
	p := Project(records, types.ViewByDate, "foo", renderNow)

	visible := p.Visible()
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible records, got %d", len(visible))
	}
	for _, r := range visible {
		if r.ID == 3 {
			t.Errorf("non-matching record remained visible")
		}
	}
}

func TestSearchHidesEmptyGroups(t *testing.T) {
	records := []types.Record{
		recAt(1, "match me", "https://a.example", renderNow),
		recAt(2, "old and unrelated", "https://b.example", renderNow.AddDate(0, 0, -5)),
	}
	p := Project(records, types.ViewByDate, "match", renderNow)

	if len(p.Groups) != 1 {
		t.Fatalf("group with no visible records kept its header: %+v", p.Groups)
	}
	if p.Groups[0].Label != "Today" {
		t.Errorf("surviving group = %q, want Today", p.Groups[0].Label)
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	records := []types.Record{recAt(1, "FooBar", "https://a.example", renderNow)}
	p := Project(records, types.ViewByDate, "fOOb", renderNow)
	if p.Empty() {
		t.Errorf("case-insensitive match failed")
	}
}

func TestProjectionIsDeterministic(t *testing.T) {
	records := sampleRecords()
	for _, mode := range []types.ViewMode{types.ViewByDate, types.ViewByTitle, types.ViewByDomain} {
		a := Project(records, mode, "e", renderNow)
		b := Project(records, mode, "e", renderNow)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("mode %q: two projections of identical input differ", mode)
		}
	}
}

func TestProjectDoesNotMutateInput(t *testing.T) {
	records := sampleRecords()
	before := make([]types.Record, len(records))
	copy(before, records)

	Project(records, types.ViewByTitle, "", renderNow)

	if !reflect.DeepEqual(records, before) {
		t.Errorf("Project reordered the caller's slice")
	}
}

func TestEmptySetProjectsEmpty(t *testing.T) {
	p := Project(nil, types.ViewByDate, "", renderNow)
	if !p.Empty() {
		t.Errorf("expected empty projection")
	}
}

func TestUnparsableDateDoesNotPanic(t *testing.T) {
	records := []types.Record{
		{ID: 1, Title: "bad date", URL: "https://example.com", Date: "yesterday-ish"},
		recAt(2, "good", "https://go.dev", renderNow),
	}
	p := Project(records, types.ViewByDate, "", renderNow)
	if got := len(p.Visible()); got != 2 {
		t.Errorf("expected 2 visible records, got %d", got)
	}
	// Zero-time records sort last.
	last := p.Groups[len(p.Groups)-1].Records
	if last[len(last)-1].ID != 1 {
		t.Errorf("unparsable date should sort last")
	}
}
